package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/newsfactory/ssofact/internal/metrics"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/oidc/callback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCallback_gateToLogin runs the cookie gate, the authorize redirect of the
// TestProvider and the callback, and verifies the session is logged in.
func TestCallback_gateToLogin(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetUserInfoReply(map[string]interface{}{"id": "42", "email": "a@b.com", "confirmed": true})
	p, err := oidc.NewProvider(tp.TestConfig(testRedirectURL))
	require.NoError(err)
	sessions, _ := testSessions(t)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(err)

	gate, err := Gate(p, sessions, WithMetrics(m))
	require.NoError(err)
	w := httptest.NewRecorder()
	gate(testOK).ServeHTTP(w, testRequest(http.MethodGet, "/catalog/item/5", testOAuthCookie))
	require.Equal(http.StatusTemporaryRedirect, w.Code)
	sessionCookie := testCookie(t, w, sessions.CookieName())

	// the browser follows the redirect to ssoFACT
	client := *tp.HTTPClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := client.Get(w.Header().Get("Location"))
	require.NoError(err)
	_ = resp.Body.Close()
	require.Equal(http.StatusFound, resp.StatusCode)
	back, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(err)
	assert.Equal("/ssofact/callback", back.Path)

	sFn, eFn := CallbackResponses(sessions, WithMetrics(m))
	h, err := callback.AuthCode(p, sessions, callback.SubjectProvisioner, sFn, eFn)
	require.NoError(err)
	w = httptest.NewRecorder()
	h(w, testRequest(http.MethodGet, back.RequestURI(), testOAuthCookie, sessionCookie))

	require.Equal(http.StatusFound, w.Code)
	assert.Equal("/catalog/item/5", w.Header().Get("Location"))
	loggedIn := testCookie(t, w, sessions.CookieName())
	assert.NotEqual(sessionCookie.Value, loggedIn.Value)
	s, err := sessions.Load(testRequest(http.MethodGet, "/", loggedIn))
	require.NoError(err)
	assert.Equal("42", s.AccountID)

	// the gate lets the logged in user through
	w = httptest.NewRecorder()
	gate(testOK).ServeHTTP(w, testRequest(http.MethodGet, "/catalog/item/5", testOAuthCookie, loggedIn))
	assert.Equal(http.StatusOK, w.Code)

	// replaying the callback fails without calling ssoFACT again
	tokenCalls := tp.Calls(oidc.PathToken)
	w = httptest.NewRecorder()
	h(w, testRequest(http.MethodGet, back.RequestURI(), sessionCookie))
	assert.Equal(http.StatusForbidden, w.Code)
	assert.Equal(tokenCalls, tp.Calls(oidc.PathToken))
}

func TestCallbackResponses_errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "access-denied", err: oidc.ErrAccessDenied, wantCode: http.StatusForbidden},
		{name: "upstream", err: oidc.NewUpstreamError("op", "https://sso.example.com", 500, nil, "failed", nil), wantCode: http.StatusBadGateway},
		{name: "other", err: oidc.ErrInvalidConfig, wantCode: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sessions, _ := testSessions(t)
			_, eFn := CallbackResponses(sessions)
			w := httptest.NewRecorder()
			eFn(nil, tt.err, w, testRequest(http.MethodGet, "/ssofact/callback"))
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestCallbackResponses_success(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	sessions, store := testSessions(t)
	sFn, _ := CallbackResponses(sessions)
	w := httptest.NewRecorder()
	sFn(&callback.Result{AccountID: "7", Target: "/account"}, w, testRequest(http.MethodGet, "/ssofact/callback"))
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("/account", w.Header().Get("Location"))
	s, err := store.Get(context.Background(), testCookie(t, w, sessions.CookieName()).Value)
	require.NoError(err)
	assert.Equal("7", s.AccountID)
}
