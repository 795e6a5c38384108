package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/newsfactory/ssofact/oidc"
)

// OAuthServerCookie is set by ssoFACT on the site's domain while the user has
// an ssoFACT session.
const OAuthServerCookie = "RF_OAUTH_SERVER"

// HasOAuthServerCookie reports whether r carries the RF_OAUTH_SERVER cookie.
func HasOAuthServerCookie(r *http.Request) bool {
	_, err := r.Cookie(OAuthServerCookie)
	return err == nil
}

// Gate returns a middleware which logs in anonymous users that already have an
// ssoFACT session. A request from an anonymous session carrying the
// RF_OAUTH_SERVER cookie, whose path isn't under an auth prefix, is answered
// with a 307 to the authorization endpoint; the request URI becomes the
// post-login target. Every other request is passed through, and so is every
// request while the configuration isn't active.
//
// Supported options: WithAuthPrefixes, WithMetrics, WithLogger
func Gate(p Provider, sessions Sessions, opt ...oidc.Option) (func(http.Handler) http.Handler, error) {
	const op = "handler.Gate"
	if p == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrInvalidParameter)
	}
	if sessions == nil {
		return nil, fmt.Errorf("%s: sessions is nil: %w", op, oidc.ErrInvalidParameter)
	}
	cbPath, err := CallbackPath(p.Config())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getOpts(opt...)
	logger := opts.withLogger.Named("gate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !p.Config().IsActive() || !HasOAuthServerCookie(r) || r.URL.Path == cbPath || hasPrefix(r.URL.Path, opts.withAuthPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			s, err := sessions.Load(r)
			if err != nil {
				logger.Error("unable to load session", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !s.IsAnonymous() {
				next.ServeHTTP(w, r)
				return
			}
			authURL, err := startAuthorization(w, r, p, sessions, r.URL.RequestURI())
			if err != nil {
				logger.Error("unable to start authorization", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			opts.withMetrics.GateRedirect()
			// 307 so the request is replayed with its method after login
			http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
		})
	}, nil
}

// CallbackPath returns the path of the config's redirect URL, which is where
// the callback handler must be mounted.
func CallbackPath(c *oidc.Config) (string, error) {
	const op = "handler.CallbackPath"
	if c == nil {
		return "", fmt.Errorf("%s: config is nil: %w", op, oidc.ErrNilParameter)
	}
	u, err := url.Parse(c.RedirectURL)
	if err != nil {
		return "", fmt.Errorf("%s: redirect URL is invalid: %v: %w", op, err, oidc.ErrInvalidConfig)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
