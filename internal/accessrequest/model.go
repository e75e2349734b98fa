package accessrequest

import (
	"time"

	"github.com/google/uuid"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusRevoked  = "revoked"
)

// Request is a self-service account request awaiting admin action.
type Request struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Organization string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
