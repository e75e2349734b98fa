package auth

import (
	"time"

	"github.com/google/uuid"
)

// Roles, in decreasing order of privilege.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ValidRole reports whether s is one of the known roles.
func ValidRole(s string) bool {
	return s == RoleAdmin || s == RoleEditor || s == RoleViewer
}

// User represents a row in the users table. Email is stored lowercased and
// is unique. AccessRequestID links back to the access request that spawned
// this account, when there is one.
type User struct {
	ID              uuid.UUID
	Email           string
	PasswordHash    string
	Name            string
	Role            string
	Active          bool
	AccessRequestID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Identity is stored in the request context after authentication.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   string
}
