package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

// WithExpirySkew provides an optional expiry skew duration for: State
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withExpirySkew = d
		}
	}
}

// WithNow provides an optional func for determining the current time, which is
// used by: NewState, State.IsExpired
func WithNow(fn func() time.Time) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *stOptions:
			v.withNowFunc = fn
		}
	}
}

// WithLogger provides an optional logger for: NewConfig, NewProvider,
// NewRegistrar
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *configOptions:
			v.withLogger = l
		case *clientOptions:
			v.withLogger = l
		}
	}
}

// WithHTTPClient provides an optional http client for: NewProvider,
// NewRegistrar. When it's not provided, Config.HTTPClient() is used.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithStateExpiry provides an optional lifetime of the States created by:
// NewProvider
func WithStateExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && d > 0 {
			o.withStateExpiry = d
		}
	}
}

// clientOptions is the set of options shared by NewProvider and NewRegistrar
type clientOptions struct {
	withLogger      hclog.Logger
	withHTTPClient  *http.Client
	withStateExpiry time.Duration
}

func clientDefaults() clientOptions {
	return clientOptions{
		withStateExpiry: DefaultStateExpiry,
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
