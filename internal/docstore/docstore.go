// Package docstore defines the document collection contract the list view
// is written against: opaque documents addressed by collection and id,
// create/patch, and live queries that push full snapshots.
//
// Backends live in sub-packages and share the Hub for live-query fan-out.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidName = errors.New("invalid name")
	ErrClosed      = errors.New("store closed")
)

// Document is an opaque key/value record.
type Document map[string]any

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// DocumentSnapshot is one document as seen by a query.
type DocumentSnapshot struct {
	ID   string
	Data Document
}

// Snapshot is the full result of a query at one point in time.
type Snapshot struct {
	Collection string
	Docs       []DocumentSnapshot
}

// Query selects a collection, optionally ordered ascending by one field.
type Query struct {
	Collection string
	OrderBy    string
}

// Service is what a collection backend offers.
type Service interface {
	Append(ctx context.Context, collection string, doc Document) (string, error)
	Patch(ctx context.Context, collection, id string, fields Document) error
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName checks a collection or field name.
func ValidateName(kind, name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%s %q: %w", kind, name, ErrInvalidName)
	}
	return nil
}

// Validate checks the query names.
func (q Query) Validate() error {
	if err := ValidateName("collection", q.Collection); err != nil {
		return err
	}
	if q.OrderBy != "" {
		return ValidateName("field", q.OrderBy)
	}
	return nil
}

// ValidateFields checks every key of a document.
func ValidateFields(doc Document) error {
	for k := range doc {
		if err := ValidateName("field", k); err != nil {
			return err
		}
	}
	return nil
}
