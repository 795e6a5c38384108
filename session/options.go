package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/newsfactory/ssofact/oidc"
)

const (
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultKeyPrefix       = "ssofact:session"
	DefaultCookieName      = "ssofact_session"
)

// WithTTL provides an optional session lifetime for: NewMemoryStore,
// NewRedisStore, NewManager
func WithTTL(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if d <= 0 {
			return
		}
		switch v := o.(type) {
		case *storeOptions:
			v.withTTL = d
		case *managerOptions:
			v.withTTL = d
		}
	}
}

// WithCleanupInterval provides an optional purge interval for: NewMemoryStore
func WithCleanupInterval(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withCleanupInterval = d
		}
	}
}

// WithKeyPrefix provides an optional key prefix for: NewRedisStore
func WithKeyPrefix(p string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*storeOptions); ok {
			o.withKeyPrefix = p
		}
	}
}

// WithCookieName provides an optional cookie name for: NewManager
func WithCookieName(n string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && n != "" {
			o.withCookieName = n
		}
	}
}

// WithSecureCookie marks the session cookie Secure for: NewManager
func WithSecureCookie(secure bool) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withSecure = secure
		}
	}
}

// WithLogger provides an optional logger for: NewManager
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

type managerOptions struct {
	withTTL        time.Duration
	withCookieName string
	withSecure     bool
	withLogger     hclog.Logger
}

func managerDefaults() managerOptions {
	return managerOptions{
		withTTL:        DefaultTTL,
		withCookieName: DefaultCookieName,
		withSecure:     true,
		withLogger:     hclog.NewNullLogger(),
	}
}

func getManagerOpts(opt ...oidc.Option) managerOptions {
	opts := managerDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}
