package storage

import (
	"context"
	"errors"

	"tesouro-scraper/models"
)

// ErrUnknownField is returned when a query or write names a field the
// collection does not have.
var ErrUnknownField = errors.New("storage: unknown field")

// ErrUnknownCollection is returned for collections other than the two the
// pipeline persists.
var ErrUnknownCollection = errors.New("storage: unknown collection")

// Fields is a document body keyed by field name.
type Fields map[string]any

// Ref addresses one document. The ID is allocated by NewRef before the
// document exists, so it can be used as a foreign key inside the same batch.
type Ref struct {
	Collection string
	ID         string
}

// Store is the document-store contract the reconciler depends on.
type Store interface {
	// FindOne returns the first document whose field equals value, or nil.
	FindOne(ctx context.Context, collection, field string, value any) (*Ref, error)
	// NewRef allocates an identifier for a document not yet written.
	NewRef(collection string) Ref
	// Batch starts an empty all-or-nothing write set.
	Batch() Batch
	// Count returns the number of documents in collection.
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}

// Batch buffers writes in memory until Commit applies them atomically.
type Batch interface {
	Set(ref Ref, fields Fields)
	Update(ref Ref, fields Fields)
	Commit(ctx context.Context) error
	Len() int
}

// RawRowWriter is the interface for persisting unprocessed scraped data.
type RawRowWriter interface {
	WriteRaw(rows []*models.RawRow) (string, error)
}

var collectionFields = map[string]map[string]bool{
	models.InvestmentsCollection: {
		"id": true, "title": true, "slug": true, "created_at": true, "updated_at": true,
	},
	models.InvestmentDetailsCollection: {
		"id": true, "investment_id": true,
		"minimum_investment": true, "minimum_investment_value": true,
		"annual_yield": true, "annual_yield_value": true,
		"due_date": true, "extraction_date": true, "created_at": true,
	},
}

func checkField(collection, field string) error {
	fields, ok := collectionFields[collection]
	if !ok {
		return ErrUnknownCollection
	}
	if !fields[field] {
		return ErrUnknownField
	}
	return nil
}

func checkFields(collection string, fields Fields) error {
	for name := range fields {
		if err := checkField(collection, name); err != nil {
			return err
		}
	}
	return nil
}

type opKind int

const (
	opSet opKind = iota
	opUpdate
)

type op struct {
	kind   opKind
	ref    Ref
	fields Fields
}
