// Package roster manages on-call shift assignments. Assignments are unique
// on (kind, day, shift, slot) for slot > 0; negative slots are a transient
// parking space used only inside the swap transaction.
package roster

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the source slot of a swap holds no assignment.
var ErrNotFound = errors.New("assignment not found")

// Assignment is one person covering one slot of a shift.
type Assignment struct {
	ID        int64
	Kind      string
	Day       string
	Shift     string
	Slot      int
	Person    string
	Phone     string
	UpdatedAt time.Time
}

// SwapRequest identifies the source and destination slots of an exchange.
type SwapRequest struct {
	Kind     string
	Day      string
	Shift    string
	FromSlot int
	ToSlot   int
}

// SwapResult reports the rows as they stand after the exchange.
type SwapResult struct {
	Moved     Assignment
	Displaced *Assignment
}

// Swapper atomically exchanges two slot assignments.
type Swapper interface {
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}
