// Package docstore defines the document database contract the dashboard is
// built on: schemaless documents grouped in collections, equality queries,
// partial updates and live snapshot subscriptions.
package docstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("document not found")

// Fields is the content of a document. Values are JSON-compatible; times are
// stored as RFC 3339 strings and numbers decode as float64.
type Fields map[string]any

type Document struct {
	ID     string
	Fields Fields
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Filter matches documents whose Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection. A nil Where reads the whole
// collection; an empty OrderBy leaves the order unspecified.
type Query struct {
	Collection string
	Where      *Filter
	OrderBy    string
	Direction  Direction
}

// Store is implemented by every backend.
type Store interface {
	// Create inserts a document and returns its generated id. ServerTimestamp
	// values are replaced by the store clock.
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Update merges fields into an existing document. Returns ErrNotFound if
	// the document does not exist.
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers a full snapshot of q immediately and after every
	// change to the collection until the subscription is closed or ctx ends.
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
	Close() error
}

type serverTimestamp struct{}

// ServerTimestamp is a field value placeholder resolved by the store at write
// time, so that record timestamps never come from a client clock.
var ServerTimestamp any = serverTimestamp{}

func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}
