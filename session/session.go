package session

import (
	"context"
	"errors"
	"time"

	"github.com/newsfactory/ssofact/oidc"
)

// ErrNotFound is returned by a Store when a session doesn't exist or has
// expired.
var ErrNotFound = errors.New("session not found")

// Session is the server side state of a browser session.
type Session struct {
	ID string `json:"id"`

	// AccountID is empty while the session is anonymous.
	AccountID string `json:"account_id,omitempty"`

	// PendingState is the State of the authorization in progress, if any.
	PendingState *oidc.State `json:"pending_state,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsAnonymous reports whether no user is logged in to the session.
func (s *Session) IsAnonymous() bool {
	return s == nil || s.AccountID == ""
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.PendingState != nil {
		st := *s.PendingState
		cp.PendingState = &st
	}
	return &cp
}

// Store persists sessions. Implementations must be concurrently safe.
type Store interface {
	// Get returns a copy of the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Save creates or replaces the session and resets its expiry.
	Save(ctx context.Context, s *Session) error

	// Delete removes the session. Deleting a missing session isn't an error.
	Delete(ctx context.Context, id string) error

	// Update atomically applies fn to the stored session and saves the
	// result. Nothing is saved when fn returns an error.
	Update(ctx context.Context, id string, fn func(*Session) error) error
}
