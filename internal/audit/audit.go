// Package audit provides the append-only mutation log. Recording is
// best-effort: a failed write is logged and swallowed, never surfaced to
// the request that triggered it.
package audit

import (
	"context"
	"time"

	"github.com/opsboard/opsboard/internal/auth"
)

// Actions recorded against entities.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// Entry is one immutable audit record. Before and After hold row snapshots
// where applicable: create has no Before, delete has no After.
type Entry struct {
	ID         string
	At         time.Time
	ActorID    string
	ActorEmail string
	ActorRole  string
	Section    string
	EntityKind string
	EntityID   string
	Action     string
	Summary    string
	Before     map[string]any
	After      map[string]any
	Metadata   map[string]any
}

// Recorder persists audit entries. Record never reports failure to the
// caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Filter narrows audit log retrieval.
type Filter struct {
	Section string
	Action  string
	Limit   int
}

// Reader retrieves audit entries, newest first.
type Reader interface {
	List(ctx context.Context, f Filter) ([]Entry, error)
}

// ForActor pre-fills the actor fields of an Entry from a verified identity.
func ForActor(id *auth.Identity) Entry {
	e := Entry{}
	if id != nil {
		e.ActorID = id.UserID.String()
		e.ActorEmail = id.Email
		e.ActorRole = id.Role
	}
	return e
}
