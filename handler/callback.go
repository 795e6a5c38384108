package handler

import (
	"errors"
	"net/http"

	"github.com/newsfactory/ssofact/internal/metrics"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/oidc/callback"
)

// CallbackResponses returns the response funcs of callback.AuthCode. A
// successful callback logs the session in as the provisioned account and
// redirects to the post-login target. Failures are answered with a 403 when
// access was denied, a 502 when ssoFACT failed, and a 500 otherwise; the
// details are only logged.
//
// Supported options: WithMetrics, WithLogger
func CallbackResponses(sessions Sessions, opt ...oidc.Option) (callback.SuccessResponseFunc, callback.ErrorResponseFunc) {
	opts := getOpts(opt...)
	logger := opts.withLogger.Named("callback")
	m := opts.withMetrics

	sFn := func(res *callback.Result, w http.ResponseWriter, r *http.Request) {
		if _, err := sessions.Login(w, r, res.AccountID); err != nil {
			logger.Error("unable to log in session", "error", err)
			m.Callback(metrics.ResultError)
			http.Error(w, "Authentication failed.", http.StatusInternalServerError)
			return
		}
		m.Callback(metrics.ResultSuccess)
		http.Redirect(w, r, res.Target, http.StatusFound)
	}
	eFn := func(respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, r *http.Request) {
		switch {
		case errors.Is(e, oidc.ErrAccessDenied):
			args := []interface{}{"error", e}
			if respErr != nil {
				args = append(args, "provider_error", respErr.Error, "provider_error_description", respErr.Description)
			}
			logger.Warn("callback access denied", args...)
			m.Callback(metrics.ResultAccessDenied)
			http.Error(w, "Authentication failed.", http.StatusForbidden)
		case errors.Is(e, oidc.ErrUpstream):
			// already logged with the upstream details
			m.Callback(metrics.ResultUpstream)
			http.Error(w, "Login is temporarily unavailable, please try again later.", http.StatusBadGateway)
		default:
			logger.Error("callback failed", "error", e)
			m.Callback(metrics.ResultError)
			http.Error(w, "Authentication failed.", http.StatusInternalServerError)
		}
	}
	return sFn, eFn
}
