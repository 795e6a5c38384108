package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		path       string
		wantTarget string
	}{
		{name: "destination", path: "/ssofact/login?destination=%2Faccount", wantTarget: "/account"},
		{name: "no-destination", path: "/ssofact/login", wantTarget: "/"},
		{name: "external-destination", path: "/ssofact/login?destination=https%3A%2F%2Fevil.example.com", wantTarget: "/"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			sessions, _ := testSessions(t)
			w := httptest.NewRecorder()
			Login(testStaticProvider(t), sessions)(w, testRequest(http.MethodGet, tt.path))

			require.Equal(http.StatusFound, w.Code)
			loc, err := url.Parse(w.Header().Get("Location"))
			require.NoError(err)
			assert.Equal(oidc.PathAuthorize, loc.Path)
			st, err := sessions.Consume(context.Background(), testRequest(http.MethodGet, "/", testCookie(t, w, sessions.CookieName())))
			require.NoError(err)
			require.NotNil(st)
			assert.Equal(tt.wantTarget, st.Target)
			assert.Equal(st.Token, loc.Query().Get("state"))
		})
	}
}

func TestLogin_loggedIn(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	sessions, _ := testSessions(t)
	cookie := testLoggedInCookie(t, sessions, "42")
	w := httptest.NewRecorder()
	Login(testStaticProvider(t), sessions)(w, testRequest(http.MethodGet, "/ssofact/login?destination=%2Faccount", cookie))
	assert.Equal(http.StatusFound, w.Code)
	assert.Equal("/account", w.Header().Get("Location"))
}

func TestLogin_inactive(t *testing.T) {
	t.Parallel()
	sessions, _ := testSessions(t)
	w := httptest.NewRecorder()
	Login(testStaticProvider(t, oidc.WithEnabled(false)), sessions)(w, testRequest(http.MethodGet, "/ssofact/login"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		opts []oidc.Option
		want string
	}{
		{
			name: "default-account-url",
			want: "https://sso.example.com/index.php?next=https%3A%2F%2Fwww.example.com%2Fshop%2Fuser%2Faccount&pageid=53",
		},
		{
			name: "account-url",
			opts: []oidc.Option{WithAccountURL("https://www.example.com/me")},
			want: "https://sso.example.com/index.php?next=https%3A%2F%2Fwww.example.com%2Fme&pageid=53",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert := assert.New(t)
			w := httptest.NewRecorder()
			PasswordReset(testStaticProvider(t), tt.opts...)(w, testRequest(http.MethodGet, "/ssofact/password"))
			assert.Equal(http.StatusFound, w.Code)
			assert.Equal(tt.want, w.Header().Get("Location"))
		})
	}
}

func Test_siteRelative(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("https://www.example.com/shop/user/account", siteRelative("https://www.example.com/", DefaultAccountPath))
	assert.Equal("https://www.example.com/de/shop/user/account", siteRelative("https://www.example.com/de?x=1", DefaultAccountPath))
	assert.Equal(DefaultAccountPath, siteRelative("", DefaultAccountPath))
}
