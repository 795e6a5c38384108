package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/newsfactory/ssofact/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, opt ...oidc.Option) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	m, err := NewManager(store, opt...)
	require.NoError(t, err)
	return m, store
}

// testRequest returns a request carrying the cookies set on w.
func testRequest(w *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestNewManager(t *testing.T) {
	t.Parallel()
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, oidc.ErrNilParameter)

	m, _ := testManager(t, WithCookieName("custom"))
	assert.Equal(t, "custom", m.CookieName())
	m, _ = testManager(t)
	assert.Equal(t, DefaultCookieName, m.CookieName())
}

func TestManager_Load(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m, store := testManager(t)

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	assert.Empty(s.ID)
	assert.True(s.IsAnonymous())
	assert.Equal(0, store.Len())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "unknown"})
	s, err = m.Load(r)
	require.NoError(err)
	assert.Empty(s.ID)
}

func TestManager_Start(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m, store := testManager(t, WithSecureCookie(false), WithTTL(time.Hour))

	w := httptest.NewRecorder()
	s, err := m.Start(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	assert.NotEmpty(s.ID)
	assert.Equal(1, store.Len())

	cookies := w.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(DefaultCookieName, cookies[0].Name)
	assert.Equal(s.ID, cookies[0].Value)
	assert.True(cookies[0].HttpOnly)
	assert.False(cookies[0].Secure)
	assert.Equal(http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(3600, cookies[0].MaxAge)

	// an existing session is reused
	again, err := m.Start(httptest.NewRecorder(), testRequest(w))
	require.NoError(err)
	assert.Equal(s.ID, again.ID)
	assert.Equal(1, store.Len())
}

func TestManager_pendingState(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	m, _ := testManager(t)

	first, err := oidc.NewState("/first", time.Minute)
	require.NoError(err)
	second, err := oidc.NewState("/second", time.Minute)
	require.NoError(err)

	w := httptest.NewRecorder()
	require.NoError(m.SetPendingState(w, httptest.NewRequest(http.MethodGet, "/", nil), first))
	r := testRequest(w)
	// last writer wins
	require.NoError(m.SetPendingState(httptest.NewRecorder(), r, second))

	got, err := m.Consume(ctx, r)
	require.NoError(err)
	require.NotNil(got)
	assert.Equal(second.Token, got.Token)
	assert.Equal("/second", got.Target)

	got, err = m.Consume(ctx, r)
	require.NoError(err)
	assert.Nil(got)

	assert.ErrorIs(m.SetPendingState(w, r, nil), oidc.ErrNilParameter)

	got, err = m.Consume(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)
	assert.Nil(got)
}

func TestManager_Consume_concurrent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		store func(t *testing.T) Store
	}{
		{name: "memory", store: func(*testing.T) Store { return NewMemoryStore() }},
		{name: "redis", store: func(t *testing.T) Store {
			s, _ := testRedisStore(t)
			return s
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			m, err := NewManager(tt.store(t))
			require.NoError(err)
			st, err := oidc.NewState("/", time.Minute)
			require.NoError(err)
			w := httptest.NewRecorder()
			require.NoError(m.SetPendingState(w, httptest.NewRequest(http.MethodGet, "/", nil), st))
			r := testRequest(w)

			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				won int
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					got, err := m.Consume(context.Background(), r)
					if err == nil && got != nil {
						mu.Lock()
						won++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(1, won)

			// the state is gone for good
			got, err := m.Consume(context.Background(), r)
			require.NoError(err)
			assert.Nil(got)
		})
	}
}

func TestManager_Login(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	m, store := testManager(t)

	w := httptest.NewRecorder()
	anon, err := m.Start(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(err)

	lw := httptest.NewRecorder()
	_, err = m.Login(lw, testRequest(w), "")
	assert.ErrorIs(err, oidc.ErrInvalidParameter)

	s, err := m.Login(lw, testRequest(w), "42")
	require.NoError(err)
	assert.NotEqual(anon.ID, s.ID)
	assert.Equal("42", s.AccountID)
	assert.False(s.IsAnonymous())

	_, err = store.Get(context.Background(), anon.ID)
	assert.ErrorIs(err, ErrNotFound)

	loaded, err := m.Load(testRequest(lw))
	require.NoError(err)
	assert.Equal("42", loaded.AccountID)

	dw := httptest.NewRecorder()
	require.NoError(m.Destroy(dw, testRequest(lw)))
	_, err = store.Get(context.Background(), s.ID)
	assert.ErrorIs(err, ErrNotFound)
	cookies := dw.Result().Cookies()
	require.Len(cookies, 1)
	assert.Equal(-1, cookies[0].MaxAge)
}
