package handler

import "net/http"

// CachePolicy marks responses to requests carrying the RF_OAUTH_SERVER cookie
// as private, so a shared cache never serves an anonymous page to a user the
// gate would log in.
func CachePolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if HasOAuthServerCookie(r) {
			w.Header().Set("Cache-Control", "private, no-store")
			w.Header().Add("Vary", "Cookie")
		}
		next.ServeHTTP(w, r)
	})
}

// Destination copies the "target" query parameter to "destination", which host
// handlers use as their post action redirect. An existing destination is kept.
func Destination(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if target := q.Get("target"); target != "" && q.Get("destination") == "" {
			q.Set("destination", target)
			r = r.Clone(r.Context())
			r.URL.RawQuery = q.Encode()
		}
		next.ServeHTTP(w, r)
	})
}
