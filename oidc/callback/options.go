package callback

import (
	"github.com/hashicorp/go-hclog"
	"github.com/newsfactory/ssofact/oidc"
)

// WithLogger provides an optional logger for: AuthCode
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*authCodeOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithSyncHook provides an optional hook for: AuthCode
func WithSyncHook(fn SyncHook) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*authCodeOptions); ok {
			o.withSyncHook = fn
		}
	}
}

type authCodeOptions struct {
	withLogger   hclog.Logger
	withSyncHook SyncHook
}

func authCodeDefaults() authCodeOptions {
	return authCodeOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getAuthCodeOpts(opt ...oidc.Option) authCodeOptions {
	opts := authCodeDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}
