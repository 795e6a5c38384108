package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newsfactory/ssofact/oidc"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process Store, suitable for a single instance.
type MemoryStore struct {
	mu sync.Mutex
	c  *gocache.Cache
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore whose sessions expire after the TTL of
// their last save. Expired sessions are purged every cleanup interval.
//
// Supported options: WithTTL, WithCleanupInterval
func NewMemoryStore(opt ...oidc.Option) *MemoryStore {
	opts := getStoreOpts(opt...)
	return &MemoryStore{c: gocache.New(opts.withTTL, opts.withCleanupInterval)}
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	const op = "MemoryStore.Get"
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.clone(), nil
}

// Save stores a copy of the session.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	const op = "MemoryStore.Save"
	if s == nil || s.ID == "" {
		return fmt.Errorf("%s: session id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Set(s.ID, s.clone(), gocache.DefaultExpiration)
	return nil
}

// Delete removes the session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Delete(id)
	return nil
}

// Update applies fn to a copy of the session and stores the result.
func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Session) error) error {
	const op = "MemoryStore.Update"
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.get(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	cp := s.clone()
	if err := fn(cp); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	cp.ID = id
	m.c.Set(id, cp, gocache.DefaultExpiration)
	return nil
}

// Len returns the number of stored sessions, including expired ones which
// haven't been purged yet.
func (m *MemoryStore) Len() int {
	return m.c.ItemCount()
}

func (m *MemoryStore) get(id string) (*Session, error) {
	v, ok := m.c.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := v.(*Session)
	if !ok {
		return nil, fmt.Errorf("unexpected session type %T", v)
	}
	return s, nil
}

// storeOptions is the set of available options for Store backends
type storeOptions struct {
	withTTL             time.Duration
	withCleanupInterval time.Duration
	withKeyPrefix       string
}

func storeDefaults() storeOptions {
	return storeOptions{
		withTTL:             DefaultTTL,
		withCleanupInterval: DefaultCleanupInterval,
		withKeyPrefix:       DefaultKeyPrefix,
	}
}

func getStoreOpts(opt ...oidc.Option) storeOptions {
	opts := storeDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}
