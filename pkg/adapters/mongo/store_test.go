package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aretw0/strata/pkg/core"
)

func TestNormalize(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := bson.M{
		"_id":   int32(1),
		"label": "foo",
		"meta":  primitive.M{"nested": primitive.A{"a", primitive.D{{Key: "k", Value: int64(2)}}}},
		"at":    primitive.NewDateTimeFromTime(when),
	}

	assert.Equal(t, core.Record{
		"_id":   int32(1),
		"label": "foo",
		"meta":  map[string]any{"nested": []any{"a", map[string]any{"k": int64(2)}}},
		"at":    when,
	}, NormalizeRecord(raw))
}

func TestSortDoc(t *testing.T) {
	assert.Nil(t, sortDoc(nil))
	assert.Equal(t, bson.D{
		{Key: "label", Value: 1},
		{Key: "_id", Value: -1},
	}, sortDoc([]core.SortField{{Field: "label", Order: 1}, {Field: "_id", Order: -5}}))
}

func TestFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, filter(nil))
	assert.Equal(t, bson.M{"type": "radio"}, filter(core.Criteria{"type": "radio"}))
}

func TestConnect_RequiresDatabase(t *testing.T) {
	_, err := Connect(context.Background(), Config{URI: "mongodb://localhost:27017"})
	assert.Error(t, err)
}

// TestStore_Integration runs against a live server when STRATA_MONGO_URI is set.
func TestStore_Integration(t *testing.T) {
	uri := os.Getenv("STRATA_MONGO_URI")
	if uri == "" {
		t.Skip("STRATA_MONGO_URI not set")
	}
	ctx := context.Background()

	s, err := Connect(ctx, Config{URI: uri, Database: "strata_test", Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer s.Close(ctx)

	coll := "model_formelement_" + primitive.NewObjectID().Hex()
	defer s.coll(coll).Drop(ctx)

	id, err := s.Insert(ctx, coll, core.Record{"label": "a", "meta": map[string]any{"k": "v"}})
	require.NoError(t, err)
	_, err = s.Insert(ctx, coll, core.Record{"label": "b", "type": "textarea"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateByID(ctx, coll, id, core.Record{"label": "aa"}))

	n, err := s.Count(ctx, coll, core.Criteria{"type": core.Criteria{"$in": []any{"textarea"}}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rec, err := s.FindOne(ctx, coll, core.Criteria{core.IDField: id})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "aa", rec["label"])
	assert.Equal(t, map[string]any{"k": "v"}, rec["meta"])

	found, err := s.Find(ctx, coll, nil, core.FindOptions{Sort: []core.SortField{{Field: "label", Order: -1}}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0]["label"])

	require.NoError(t, s.Remove(ctx, coll, nil))
	rec, err = s.FindOne(ctx, coll, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
