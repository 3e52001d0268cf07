// Package core holds the domain types shared by the mapper and its storage adapters.
package core

import (
	"fmt"
	"time"
)

// IDField is the record key that carries the store-assigned primary key.
const IDField = "_id"

// Record is a raw document as exchanged with a Store.
type Record map[string]any

// Criteria is an opaque filter handed to the Store largely unchanged.
// Adapters understand the Mongo query dialect ($and, $in, $regex, ...).
type Criteria map[string]any

// SortField orders query results. Order is 1 for ascending, -1 for descending.
type SortField struct {
	Field string
	Order int
}

// FindOptions carries the deferred paging and ordering of a query.
type FindOptions struct {
	Limit int64
	Skip  int64
	Sort  []SortField
}

// EventKind names a lifecycle hook.
type EventKind string

const (
	PreInserting  EventKind = "PreInserting"
	PostInserting EventKind = "PostInserting"
	PreUpdating   EventKind = "PreUpdating"
	PostUpdating  EventKind = "PostUpdating"
	PreDeleting   EventKind = "PreDeleting"
	PostDeleting  EventKind = "PostDeleting"
)

// EventKinds lists every hook kind in dispatch order of a persistence cycle.
var EventKinds = []EventKind{
	PreInserting, PostInserting,
	PreUpdating, PostUpdating,
	PreDeleting, PostDeleting,
}

// Valid reports whether k is a known hook kind.
func (k EventKind) Valid() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsPre reports whether k fires before the store write.
func (k EventKind) IsPre() bool {
	return k == PreInserting || k == PreUpdating || k == PreDeleting
}

// Event is emitted for every hook fired by the dispatcher.
type Event struct {
	ID        string
	Kind      EventKind
	Type      string // concrete type of the document
	Label     string // e.g. "ElementPreInserting"
	Key       string // stringified identifier, empty before the first insert
	Timestamp time.Time
}

// String implements fmt.Stringer (and lifecycle.Event).
func (e Event) String() string {
	if e.Key == "" {
		return fmt.Sprintf("%s(%s)", e.Label, e.Type)
	}
	return fmt.Sprintf("%s(%s:%s)", e.Label, e.Type, e.Key)
}

type contextKey string

// OperationKey is the context key under which the mapper records the current
// persistence operation ("insert", "update", "delete") for hooks and stores.
const OperationKey contextKey = "strata_operation"
