package municipality

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no municipality matches the given id.
var ErrNotFound = errors.New("municipality not found")

// StatusUpsert carries the writable fields of a status row.
type StatusUpsert struct {
	Day     string
	COCOpen bool
	Phone   string
	Notes   string
}

// Repository provides municipality lookups, status upserts and contact-list
// replacement.
type Repository interface {
	// EnsureByName finds a municipality by case-insensitive name match,
	// creating it when absent. Losing a concurrent creation race is benign:
	// the row is re-fetched once.
	EnsureByName(ctx context.Context, name string) (*Municipality, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Municipality, error)

	// UpsertStatus inserts or updates the status row keyed on
	// (day, municipality_id). Identical payloads converge on the same row.
	UpsertStatus(ctx context.Context, municipalityID uuid.UUID, su StatusUpsert) (*Status, error)
	ListStatus(ctx context.Context, day string) ([]Status, error)

	// ReplaceContacts transactionally replaces the municipality's whole
	// contact list.
	ReplaceContacts(ctx context.Context, municipalityID uuid.UUID, contacts []Contact) ([]Contact, error)
	ListContacts(ctx context.Context, municipalityID uuid.UUID) ([]Contact, error)
}
