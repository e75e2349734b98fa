package resource

import (
	"context"
	"errors"
)

// Row is one database row keyed by column name.
type Row map[string]any

// ErrNotFound is returned when no row matches the given id.
var ErrNotFound = errors.New("row not found")

// ErrConflict is returned when a statement violates a uniqueness or other
// integrity constraint.
var ErrConflict = errors.New("conflicting row")

// ErrEmptyPayload is returned when a create or update carries no fields.
var ErrEmptyPayload = errors.New("payload must contain at least one field")

// ErrImmutableID is returned when an update tries to rewrite the row id.
var ErrImmutableID = errors.New("id cannot be changed")

// UnknownColumnError is returned when a payload names a column the schema
// does not declare.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return "unknown column: " + e.Column
}

// Store executes generic CRUD statements against managed tables. Update and
// Delete return the row pre-image so callers can audit it.
type Store interface {
	List(ctx context.Context, s *Schema) ([]Row, error)
	Insert(ctx context.Context, s *Schema, fields Row) (Row, error)
	Update(ctx context.Context, s *Schema, id any, patch Row) (before Row, after Row, err error)
	Delete(ctx context.Context, s *Schema, id any) (Row, error)
}
