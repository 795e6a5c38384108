package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildForm(t *testing.T) {
	t.Parallel()
	p := testStaticProvider(t)
	authURL := "https://sso.example.com/REST/oauth/authorize?client_id=abc"
	tests := []struct {
		name       string
		kind       FormKind
		authURL    string
		wantAction string
		wantFields []string
		wantIsErr  error
	}{
		{
			name:       "login",
			kind:       FormLogin,
			authURL:    authURL,
			wantAction: "https://sso.example.com/?next=" + url.QueryEscape(authURL),
			wantFields: []string{"login", "pass", "permanent_login", "redirect_url"},
		},
		{
			name:       "register",
			kind:       FormRegister,
			authURL:    authURL,
			wantAction: "https://sso.example.com/registrieren.html?next=" + url.QueryEscape(authURL),
			wantFields: []string{"email", "article_test", "privacy", "_qf__registerForm"},
		},
		{name: "unknown", kind: "other", authURL: authURL, wantIsErr: oidc.ErrNotFound},
		{name: "empty-auth-url", kind: FormLogin, wantIsErr: oidc.ErrInvalidParameter},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			form, err := BuildForm(p, tt.kind, tt.authURL, "1234")
			if tt.wantIsErr != nil {
				assert.ErrorIs(err, tt.wantIsErr)
				assert.Nil(form)
				return
			}
			require.NoError(err)
			assert.Equal(tt.kind, form.Kind)
			assert.Equal(http.MethodPost, form.Method)
			assert.Equal(tt.wantAction, form.Action)
			var names []string
			for _, f := range form.Fields {
				names = append(names, f.Name)
			}
			assert.Equal(tt.wantFields, names)
		})
	}
}

func TestForms(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	p := testStaticProvider(t)
	sessions, _ := testSessions(t)
	r := chi.NewRouter()
	r.Get("/ssofact/forms/{kind}", Forms(p, sessions))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, testRequest(http.MethodGet, "/ssofact/forms/register?destination=%2Farticle%2F7&article=7"))
	require.Equal(http.StatusOK, w.Code)
	assert.Equal("no-store", w.Header().Get("Cache-Control"))

	var form Form
	require.NoError(json.Unmarshal(w.Body.Bytes(), &form))
	assert.Equal(FormRegister, form.Kind)
	assert.Equal("7", form.Fields[1].Value)

	action, err := url.Parse(form.Action)
	require.NoError(err)
	assert.Equal(oidc.PathRegisterForm, action.Path)
	authURL, err := url.Parse(action.Query().Get("next"))
	require.NoError(err)
	st, err := sessions.Consume(context.Background(), testRequest(http.MethodGet, "/", testCookie(t, w, sessions.CookieName())))
	require.NoError(err)
	require.NotNil(st)
	assert.Equal(st.Token, authURL.Query().Get("state"))
	assert.Equal("/article/7", st.Target)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, testRequest(http.MethodGet, "/ssofact/forms/unknown"))
	assert.Equal(http.StatusNotFound, w.Code)
}
