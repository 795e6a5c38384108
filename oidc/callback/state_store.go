package callback

import (
	"context"
	"net/http"
	"sync"

	"github.com/newsfactory/ssofact/oidc"
)

// StateStore gives the callback handler access to the pending oidc.State of
// the request's session. Implementations must be concurrently safe, since the
// store will be used within a concurrent http.Handler.
type StateStore interface {
	// Consume removes the pending State from the session and returns it. It
	// returns a nil State when the session has none, so a State can be used
	// at most once.
	Consume(ctx context.Context, req *http.Request) (*oidc.State, error)
}

// SingleStateStore implements the StateStore interface for a single state,
// which is handy for tests. It is concurrently safe.
type SingleStateStore struct {
	mu    sync.Mutex
	state *oidc.State
}

// NewSingleStateStore creates a SingleStateStore holding s.
func NewSingleStateStore(s *oidc.State) *SingleStateStore {
	return &SingleStateStore{state: s}
}

// Consume returns the held state once, then nil. It satisfies the StateStore
// interface.
func (s *SingleStateStore) Consume(_ context.Context, _ *http.Request) (*oidc.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	s.state = nil
	return st, nil
}
