package callback

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/newsfactory/ssofact/oidc"
)

// Exchanger is the part of an oidc.Provider used by the callback handler.
type Exchanger interface {
	oidc.TokenExchanger
	oidc.UserInfoFetcher
}

// AuthCode creates an ssoFACT authorization code callback handler. It uses a
// StateStore to consume the State stored in the request's session before the
// authorization redirect.
//
// The callback requires the "code", "target" and "state" parameters. When any
// of them is missing, or the state doesn't match the pending one, the request
// fails with oidc.ErrAccessDenied and no upstream call is made. The pending
// State is consumed before the code is exchanged, so a replayed callback always
// fails.
//
// Supported options: WithLogger, WithSyncHook
func AuthCode(p Exchanger, store StateStore, prov Provisioner, sFn SuccessResponseFunc, eFn ErrorResponseFunc, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrInvalidParameter)
	case store == nil:
		return nil, fmt.Errorf("%s: state store is nil: %w", op, oidc.ErrInvalidParameter)
	case prov == nil:
		return nil, fmt.Errorf("%s: provisioner is nil: %w", op, oidc.ErrInvalidParameter)
	case sFn == nil:
		return nil, fmt.Errorf("%s: success response func is nil: %w", op, oidc.ErrInvalidParameter)
	case eFn == nil:
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrInvalidParameter)
	}
	opts := getAuthCodeOpts(opt...)
	logger := opts.withLogger.Named("callback")

	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found
		reqState := req.FormValue("state")
		reqCode := req.FormValue("code")
		reqTarget := req.FormValue("target")

		if vendorErr := req.FormValue("error"); vendorErr != "" {
			// the attempt is over, so its state can't be used again
			_, _ = store.Consume(ctx, req)
			respErr := &AuthenErrorResponse{
				Error:       vendorErr,
				Description: req.FormValue("error_description"),
				Uri:         req.FormValue("error_uri"),
			}
			logger.Debug("provider returned an error", "error", vendorErr)
			eFn(respErr, fmt.Errorf("%s: provider returned %q: %w", op, vendorErr, oidc.ErrAccessDenied), w, req)
			return
		}
		if reqCode == "" || reqTarget == "" || reqState == "" {
			eFn(nil, fmt.Errorf("%s: code, target and state are required: %w", op, oidc.ErrAccessDenied), w, req)
			return
		}

		state, err := store.Consume(ctx, req)
		if err != nil {
			eFn(nil, fmt.Errorf("%s: unable to read auth code state: %w", op, err), w, req)
			return
		}
		switch {
		case state == nil:
			// could have expired, been used, or never existed... no way to know
			eFn(nil, fmt.Errorf("%s: auth code state not found: %w", op, oidc.ErrAccessDenied), w, req)
			return
		case !state.Matches(reqState):
			eFn(nil, fmt.Errorf("%s: authen state and response state are not equal: %w", op, oidc.ErrAccessDenied), w, req)
			return
		case state.IsExpired():
			eFn(nil, fmt.Errorf("%s: %w: %w", op, oidc.ErrExpiredState, oidc.ErrAccessDenied), w, req)
			return
		}

		token, err := p.Exchange(ctx, reqCode, reqTarget)
		if err != nil {
			eFn(nil, fmt.Errorf("%s: unable to exchange authorization code: %w", op, err), w, req)
			return
		}
		info, err := p.UserInfo(ctx, token)
		if err != nil {
			eFn(nil, fmt.Errorf("%s: unable to fetch user info: %w", op, err), w, req)
			return
		}
		accountID, err := prov.Provision(ctx, info)
		if err != nil {
			eFn(nil, fmt.Errorf("%s: unable to provision account: %w", op, err), w, req)
			return
		}
		if accountID == "" {
			eFn(nil, fmt.Errorf("%s: provisioner returned an empty account id: %w", op, oidc.ErrInvalidParameter), w, req)
			return
		}
		if opts.withSyncHook != nil {
			if err := opts.withSyncHook(ctx, accountID, info); err != nil {
				eFn(nil, fmt.Errorf("%s: user data sync failed: %w", op, err), w, req)
				return
			}
		}
		logger.Debug("user authenticated", "account", accountID, "sub", info.Subject)
		sFn(&Result{
			AccountID: accountID,
			UserInfo:  info,
			Target:    ResolveTarget(reqTarget, state.Target),
		}, w, req)
	}, nil
}

// ResolveTarget returns the local path a user is sent to after logging in:
// requested if it's a local path, otherwise stored if it is, otherwise "/".
func ResolveTarget(requested, stored string) string {
	switch {
	case IsLocalPath(requested):
		return requested
	case IsLocalPath(stored):
		return stored
	default:
		return "/"
	}
}

// IsLocalPath reports whether p is an absolute path on this site. Protocol
// relative and backslash prefixed paths are rejected since browsers treat them
// as other hosts.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	return !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
