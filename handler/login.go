package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/oidc/callback"
)

// Login redirects to the authorization endpoint, like the gate, for the local
// path in the "destination" query parameter. Users which are already logged
// in are sent to the destination directly.
//
// Supported options: WithLogger
func Login(p Provider, sessions Sessions, opt ...oidc.Option) http.HandlerFunc {
	logger := getOpts(opt...).withLogger.Named("login")
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.Config().IsActive() {
			http.NotFound(w, r)
			return
		}
		target := callback.ResolveTarget(r.URL.Query().Get("destination"), "/")
		s, err := sessions.Load(r)
		if err != nil {
			logger.Error("unable to load session", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !s.IsAnonymous() {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		authURL, err := startAuthorization(w, r, p, sessions, target)
		if err != nil {
			logger.Error("unable to start authorization", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// PasswordReset redirects to the ssoFACT password reset page, which sends the
// user to the account page afterwards.
//
// Supported options: WithAccountURL
func PasswordReset(p Provider, opt ...oidc.Option) http.HandlerFunc {
	opts := getOpts(opt...)
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.Config().IsActive() {
			http.NotFound(w, r)
			return
		}
		next := opts.withAccountURL
		if next == "" {
			next = siteRelative(p.Config().SiteURL, DefaultAccountPath)
		}
		http.Redirect(w, r, p.PasswordResetURL(next), http.StatusFound)
	}
}

// siteRelative resolves path against the site URL.
func siteRelative(siteURL, path string) string {
	base, err := url.Parse(siteURL)
	if err != nil || siteURL == "" {
		return path
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + path
	base.RawQuery = ""
	base.Fragment = ""
	return base.String()
}
