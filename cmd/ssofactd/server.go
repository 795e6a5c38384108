package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/newsfactory/ssofact/handler"
	"github.com/newsfactory/ssofact/internal/metrics"
	"github.com/newsfactory/ssofact/oidc"
	"github.com/newsfactory/ssofact/oidc/callback"
	sdkHttp "github.com/newsfactory/ssofact/sdk/http"
	"github.com/newsfactory/ssofact/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// server holds everything the routes need.
type server struct {
	cfg       *Config
	logger    hclog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	provider  *oidc.Provider
	registrar *oidc.Registrar
	sessions  *session.Manager
	closeFn   func() error
}

// newServer builds the provider, the registrar and the session manager of
// cfg. The registrar is nil when no registration credentials are configured.
func newServer(ctx context.Context, cfg *Config, logger hclog.Logger) (*server, error) {
	const op = "newServer"
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	oc, err := cfg.OIDCConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	client, err := oc.HTTPClient(sdkHttp.WithTransportWrapper(m.InstrumentRoundTripper))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p, err := oidc.NewProvider(oc,
		oidc.WithHTTPClient(client),
		oidc.WithLogger(logger),
		oidc.WithStateExpiry(cfg.Provider.StateExpiry),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		provider: p,
		closeFn:  func() error { return nil },
	}
	if oc.RFBEKey != "" || oc.RFBESecret != "" {
		if s.registrar, err = oidc.NewRegistrar(oc, oidc.WithHTTPClient(client), oidc.WithLogger(logger)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if !oc.IsActive() {
		logger.Warn("ssoFACT client is inactive, every flow is disabled", "enabled", oc.Enabled)
	}

	store, err := s.sessionStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.sessions, err = session.NewManager(store,
		session.WithTTL(cfg.Session.TTL),
		session.WithCookieName(cfg.Session.CookieName),
		session.WithSecureCookie(!cfg.Session.InsecureCookie),
		session.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *server) sessionStore(ctx context.Context) (session.Store, error) {
	const op = "server.sessionStore"
	opts := []oidc.Option{session.WithTTL(s.cfg.Session.TTL)}
	if s.cfg.Session.Redis.KeyPrefix != "" {
		opts = append(opts, session.WithKeyPrefix(s.cfg.Session.Redis.KeyPrefix))
	}
	switch s.cfg.Session.Backend {
	case BackendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    s.cfg.Session.Redis.Addrs,
			Password: s.cfg.Session.Redis.Password,
			DB:       s.cfg.Session.Redis.DB,
		})
		store, err := session.NewRedisStore(client, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.closeFn = client.Close
		s.logger.Info("using redis sessions", "addrs", s.cfg.Session.Redis.Addrs)
		return store, nil
	default:
		s.logger.Info("using in-memory sessions")
		return session.NewMemoryStore(opts...), nil
	}
}

// Close releases the session backend.
func (s *server) Close() error {
	return s.closeFn()
}

// routes mounts every handler behind the cookie gate, the cache policy and
// the destination middleware. Unknown paths are gated too, so any page of the
// site can start a login. The callback is mounted on the path of the
// configured redirect URL.
func (s *server) routes() (http.Handler, error) {
	const op = "server.routes"
	common := []oidc.Option{
		handler.WithLogger(s.logger),
		handler.WithMetrics(s.metrics),
		handler.WithAuthPrefixes(s.cfg.Handlers.AuthPrefixes...),
		handler.WithConfirmationURL(s.cfg.Handlers.ConfirmationURL),
		handler.WithAccountURL(s.cfg.Handlers.AccountURL),
	}

	gate, err := handler.Gate(s.provider, s.sessions, common...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sFn, eFn := handler.CallbackResponses(s.sessions, common...)
	cb, err := callback.AuthCode(s.provider, s.sessions, callback.SubjectProvisioner, sFn, eFn,
		callback.WithLogger(s.logger),
		callback.WithSyncHook(s.syncUser),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cbPath, err := handler.CallbackPath(s.provider.Config())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logout, err := handler.LogoutFilter(s.provider, s.provider.Config().SiteURL, handler.LocalLogout(s.sessions, common...), common...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(handler.CachePolicy)
	r.Use(handler.Destination)
	r.Use(gate)

	r.Get("/", s.whoami)
	r.Get(cbPath, cb)
	r.Get("/ssofact/login", handler.Login(s.provider, s.sessions, common...))
	r.Get("/ssofact/password", handler.PasswordReset(s.provider, common...))
	r.Get("/ssofact/forms/{kind}", handler.Forms(s.provider, s.sessions, common...))
	r.Handle("/user/logout", logout)
	r.Handle("/metrics", metrics.Handler(s.registry))
	if s.registrar != nil {
		reg, err := handler.Register(s.provider, s.registrar, common...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.Handle("/ssofact/register", reg)
	}
	return r, nil
}

// syncUser runs after every successful login.
func (s *server) syncUser(_ context.Context, accountID string, info *oidc.UserInfo) error {
	s.logger.Debug("user synchronized", "account_id", accountID, "email_verified", info.EmailVerified)
	return nil
}

type whoamiResponse struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"account_id,omitempty"`
}

// whoami reports the account of the request's session.
func (s *server) whoami(w http.ResponseWriter, r *http.Request) {
	resp := whoamiResponse{}
	if sess, err := s.sessions.Load(r); err == nil && !sess.IsAnonymous() {
		resp.Authenticated = true
		resp.AccountID = sess.AccountID
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&resp)
}
