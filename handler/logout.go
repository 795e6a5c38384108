package handler

import (
	"fmt"
	"net/http"

	"github.com/newsfactory/ssofact/oidc"
)

// LocalLogout destroys the request's session and redirects to "/".
func LocalLogout(sessions Sessions, opt ...oidc.Option) http.HandlerFunc {
	logger := getOpts(opt...).withLogger.Named("logout")
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Destroy(w, r); err != nil {
			logger.Error("unable to destroy session", "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// LogoutFilter wraps the host's logout handler. When the handler responds with
// a redirect, the redirect is replaced by a 307 to the ssoFACT end session
// endpoint, which sends the user back to siteURL. Headers set by the handler,
// such as expired session cookies, are kept.
//
// Supported options: WithLogger
func LogoutFilter(p Provider, siteURL string, next http.Handler, opt ...oidc.Option) (http.Handler, error) {
	const op = "handler.LogoutFilter"
	if p == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrInvalidParameter)
	}
	if next == nil {
		return nil, fmt.Errorf("%s: logout handler is nil: %w", op, oidc.ErrInvalidParameter)
	}
	logger := getOpts(opt...).withLogger.Named("logout")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.Config().IsActive() {
			next.ServeHTTP(w, r)
			return
		}
		iw := &redirectInterceptor{ResponseWriter: w}
		next.ServeHTTP(iw, r)
		if !iw.intercepted {
			return
		}
		endSession, err := p.EndSessionURL(siteURL)
		if err != nil {
			logger.Error("unable to build end session URL", "error", err)
			w.WriteHeader(iw.status)
			return
		}
		w.Header().Set("Location", endSession)
		w.WriteHeader(http.StatusTemporaryRedirect)
	}), nil
}

// redirectInterceptor holds back a 3xx response so it can be replaced.
type redirectInterceptor struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	intercepted bool
}

func (w *redirectInterceptor) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	if code >= 300 && code < 400 {
		w.intercepted = true
		return
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *redirectInterceptor) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.intercepted {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}
