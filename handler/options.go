package handler

import (
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/newsfactory/ssofact/internal/metrics"
	"github.com/newsfactory/ssofact/oidc"
)

// DefaultAuthPrefixes are the path prefixes the gate never redirects.
var DefaultAuthPrefixes = []string{"/ssofact/", "/openid-connect/"}

// DefaultAccountPath is where ssoFACT sends users after a password reset.
const DefaultAccountPath = "/shop/user/account"

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithMetrics provides optional metrics
func WithMetrics(m *metrics.Metrics) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withMetrics = m
		}
	}
}

// WithAuthPrefixes adds path prefixes the gate never redirects, in addition
// to DefaultAuthPrefixes. Blank and duplicate prefixes are dropped.
func WithAuthPrefixes(prefixes ...string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			all := o.withAuthPrefixes
			for _, p := range prefixes {
				if p = strings.TrimSpace(p); p != "" {
					all = append(all, p)
				}
			}
			o.withAuthPrefixes = strutil.RemoveDuplicatesStable(all, false)
		}
	}
}

// WithConfirmationURL provides the URL of the account confirmation page sent
// by ssoFACT to new users. Defaults to the configured site URL.
func WithConfirmationURL(u string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withConfirmationURL = u
		}
	}
}

// WithAccountURL provides the absolute URL users are sent to after a password
// reset. Defaults to DefaultAccountPath on the configured site URL.
func WithAccountURL(u string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withAccountURL = u
		}
	}
}

type options struct {
	withLogger          hclog.Logger
	withMetrics         *metrics.Metrics
	withAuthPrefixes    []string
	withConfirmationURL string
	withAccountURL      string
}

func defaults() options {
	return options{
		withLogger:       hclog.NewNullLogger(),
		withAuthPrefixes: append([]string(nil), DefaultAuthPrefixes...),
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := defaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}
