package core

import "context"

// Store defines the contract of the external document store.
// The mapper never retries: every error returned here reaches the caller.
// Records returned by Find and FindOne carry the primary key under IDField.
type Store interface {
	// Insert writes a new record and returns the identifier assigned by the store.
	Insert(ctx context.Context, collection string, record Record) (any, error)

	// UpdateByID sets the given fields on the record with the given identifier.
	UpdateByID(ctx context.Context, collection string, id any, fields Record) error

	// Count returns the number of records matching criteria (nil matches all).
	Count(ctx context.Context, collection string, criteria Criteria) (int64, error)

	// Remove deletes every record matching criteria (nil matches all).
	Remove(ctx context.Context, collection string, criteria Criteria) error

	// Find returns the matching records in store order.
	Find(ctx context.Context, collection string, criteria Criteria, opts FindOptions) ([]Record, error)

	// FindOne returns the first matching record, or nil when nothing matches.
	FindOne(ctx context.Context, collection string, criteria Criteria) (Record, error)
}
