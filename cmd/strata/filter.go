package main

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/aretw0/strata/pkg/adapters/mongo"
	"github.com/aretw0/strata/pkg/core"
)

// parseFilter reads a Mongo Extended JSON filter with plain maps and slices in
// place of the driver's document types, e.g.
// {"label": {"$ne": "draft"}} or {"_id": {"$oid": "..."}}.
func parseFilter(s string) (core.Criteria, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &m); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return core.Criteria(mongo.Normalize(m).(map[string]any)), nil
}
