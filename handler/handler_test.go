package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/session"
	"github.com/stretchr/testify/require"
)

const testRedirectURL = "https://www.example.com/ssofact/callback"

// testStaticProvider returns a Provider for sso.example.com, which is never
// contacted.
func testStaticProvider(t *testing.T, opt ...oidc.Option) *oidc.Provider {
	t.Helper()
	opt = append([]oidc.Option{
		oidc.WithRegistrationCredentials("key", "rfbe-secret"),
		oidc.WithSiteURL("https://www.example.com/"),
	}, opt...)
	c, err := oidc.NewConfig("sso.example.com", "abc", "client-secret", testRedirectURL, opt...)
	require.NoError(t, err)
	p, err := oidc.NewProvider(c)
	require.NoError(t, err)
	return p
}

func testSessions(t *testing.T) (*session.Manager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	m, err := session.NewManager(store, session.WithSecureCookie(false))
	require.NoError(t, err)
	return m, store
}

// testLoggedInCookie returns the session cookie of a session logged in as
// accountID.
func testLoggedInCookie(t *testing.T, m *session.Manager, accountID string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	_, err := m.Login(w, httptest.NewRequest(http.MethodGet, "/", nil), accountID)
	require.NoError(t, err)
	return testCookie(t, w, m.CookieName())
}

func testCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "missing cookie", "cookie %q wasn't set", name)
	return nil
}

func testRequest(method, target string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

var testOAuthCookie = &http.Cookie{Name: OAuthServerCookie, Value: "1"}

var testOK = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})
