package accessrequest

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opsboard/opsboard/internal/auth"
)

// ErrNotFound is returned when no request matches the given id.
var ErrNotFound = errors.New("access request not found")

// ErrDuplicateEmail is returned when a pending or approved request already
// exists for the email.
var ErrDuplicateEmail = errors.New("access request already exists for this email")

// ErrProcessed is returned when a state transition is attempted on a
// request that is not in the required status.
var ErrProcessed = errors.New("access request already processed")

// Repository manages the access-request queue and its state machine:
// pending -> approved | rejected, approved -> revoked.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	List(ctx context.Context) ([]Request, error)

	// Approve marks a pending request approved and creates the viewer
	// account it spawns, linked back via access_request_id, in one
	// transaction.
	Approve(ctx context.Context, id uuid.UUID) (*Request, *auth.User, error)

	// Reject marks a pending request rejected.
	Reject(ctx context.Context, id uuid.UUID) (*Request, error)

	// Revoke marks an approved request revoked and deactivates the account
	// it spawned.
	Revoke(ctx context.Context, id uuid.UUID) (*Request, error)
}
