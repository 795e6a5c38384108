package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/oidc/callback"
	"github.com/newsfactory/ssofact/sdk/id"
)

// Manager binds sessions in a Store to browsers with a session cookie.
type Manager struct {
	store      Store
	cookieName string
	secure     bool
	ttl        time.Duration
	logger     hclog.Logger
	now        func() time.Time
}

var _ callback.StateStore = (*Manager)(nil)

// NewManager creates a Manager.
//
// Supported options: WithTTL, WithCookieName, WithSecureCookie, WithLogger
func NewManager(store Store, opt ...oidc.Option) (*Manager, error) {
	const op = "session.NewManager"
	if store == nil {
		return nil, fmt.Errorf("%s: store is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getManagerOpts(opt...)
	return &Manager{
		store:      store,
		cookieName: opts.withCookieName,
		secure:     opts.withSecure,
		ttl:        opts.withTTL,
		logger:     opts.withLogger.Named("session"),
		now:        time.Now,
	}, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookieName }

// Load returns the request's session. A request without a live session gets a
// new anonymous session with an empty ID, which isn't stored.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	const op = "Manager.Load"
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return &Session{}, nil
	}
	s, err := m.store.Get(r.Context(), c.Value)
	switch {
	case errors.Is(err, ErrNotFound):
		return &Session{}, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Start returns the request's session, creating and storing a new one when
// it has none.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request) (*Session, error) {
	const op = "Manager.Start"
	s, err := m.Load(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.ID != "" {
		return s, nil
	}
	if s, err = m.create(r.Context(), ""); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.setCookie(w, s.ID)
	return s, nil
}

// Save stores the session.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	const op = "Manager.Save"
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Destroy removes the request's session and expires its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	const op = "Manager.Destroy"
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		if err := m.store.Delete(r.Context(), c.Value); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SetPendingState stores st as the pending State of the request's session,
// starting a session if needed. An earlier pending State is replaced.
func (m *Manager) SetPendingState(w http.ResponseWriter, r *http.Request, st *oidc.State) error {
	const op = "Manager.SetPendingState"
	if st == nil {
		return fmt.Errorf("%s: state is nil: %w", op, oidc.ErrNilParameter)
	}
	s, err := m.Start(w, r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = m.store.Update(r.Context(), s.ID, func(s *Session) error {
		s.PendingState = st
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		// expired between Start and Update
		s.PendingState = st
		err = m.store.Save(r.Context(), s)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Consume removes the pending State from the request's session and returns it,
// or nil when there is none. Concurrent calls for one session return the State
// at most once. It satisfies the callback.StateStore interface.
func (m *Manager) Consume(ctx context.Context, r *http.Request) (*oidc.State, error) {
	const op = "Manager.Consume"
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	var st *oidc.State
	err = m.store.Update(ctx, c.Value, func(s *Session) error {
		st = s.PendingState
		s.PendingState = nil
		return nil
	})
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// Login authenticates the request's session as accountID. The session gets a
// new ID so an id known before the login can't be used afterwards.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, accountID string) (*Session, error) {
	const op = "Manager.Login"
	if accountID == "" {
		return nil, fmt.Errorf("%s: account id is empty: %w", op, oidc.ErrInvalidParameter)
	}
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		if err := m.store.Delete(r.Context(), c.Value); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	s, err := m.create(r.Context(), accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.setCookie(w, s.ID)
	m.logger.Debug("session authenticated", "account", accountID)
	return s, nil
}

func (m *Manager) create(ctx context.Context, accountID string) (*Session, error) {
	sid, err := id.New("")
	if err != nil {
		return nil, fmt.Errorf("unable to generate a session id: %w", err)
	}
	s := &Session{ID: sid, AccountID: accountID, CreatedAt: m.now()}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) setCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
