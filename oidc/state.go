package oidc

import (
	"crypto/subtle"
	"fmt"
	"time"
)

// DefaultStateExpiry is the lifetime of a pending authorization.
const DefaultStateExpiry = 10 * time.Minute

// DefaultStateExpirySkew defines a default time skew when checking a State's
// expiration.
const DefaultStateExpirySkew = 1 * time.Second

// State represents one pending authorization for a session. Its Token is
// round-tripped through ssoFACT as the oauth "state" parameter, and it's
// destroyed once a callback has used it. A session has at most one pending
// State; a newer one replaces it.
type State struct {
	// Token is an opaque, random value used to bind the callback to the
	// session that started the authorization.
	Token string `json:"token"`

	// Target is where the user wanted to go before being sent to ssoFACT.
	Target string `json:"target"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	nowFunc func() time.Time
}

// NewState creates a new State for the requested post-login target.
//
// Supported options: WithNow
func NewState(target string, expireIn time.Duration, opt ...Option) (*State, error) {
	const op = "NewState"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getStOpts(opt...)
	token, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's token: %w", op, err)
	}
	nowFn := opts.withNowFunc
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()
	return &State{
		Token:     token,
		Target:    target,
		CreatedAt: now,
		ExpiresAt: now.Add(expireIn),
		nowFunc:   opts.withNowFunc,
	}, nil
}

// IsExpired returns true if the state has expired. Supports the
// WithExpirySkew and WithNow options and if none is provided it will use the
// DefaultStateExpirySkew.
func (s *State) IsExpired(opt ...Option) bool {
	opts := getStOpts(opt...)
	nowFn := opts.withNowFunc
	switch {
	case nowFn != nil:
	case s.nowFunc != nil:
		nowFn = s.nowFunc
	default:
		nowFn = time.Now
	}
	return s.ExpiresAt.Before(nowFn().Add(opts.withExpirySkew))
}

// Matches compares token with the State's Token in constant time.
func (s *State) Matches(token string) bool {
	if s == nil || s.Token == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) == 1
}

// stOptions is the set of available options for State functions
type stOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// stDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stDefaults() stOptions {
	return stOptions{
		withExpirySkew: DefaultStateExpirySkew,
	}
}

// getStOpts gets the state defaults and applies the opt overrides passed in
func getStOpts(opt ...Option) stOptions {
	opts := stDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
