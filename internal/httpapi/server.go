// Package httpapi exposes the storefront over HTTP.
//
// Every request runs inside exactly one store transaction. Authenticated routes resolve the
// bearer credential and bind a tenant before any handler code runs; storefront routes bind the
// tenant named by the slug in the path without a principal.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apphttp "github.com/wolfeidau/storefront/internal/http"
	"github.com/wolfeidau/storefront/internal/auth"
	"github.com/wolfeidau/storefront/internal/logger"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/tenancy"
	"github.com/wolfeidau/storefront/internal/tracking"
)

// TenantHeader carries the caller's tenant selection on authenticated routes.
const TenantHeader = "X-Tenant-Id"

// Config wires the API to its collaborators.
type Config struct {
	Store    store.Store
	Resolver *auth.Resolver
	Binder   *tenancy.Binder
	Recorder *tracking.Recorder

	// RateLimiter guards the storefront routes; nil disables limiting.
	RateLimiter *apphttp.RateLimiter

	Refresh RefreshConfig

	CORSOrigins    []string
	TrustedOrigins []string

	// Tracing wraps the handler with otelhttp.
	Tracing bool

	Logger zerolog.Logger
}

// Server holds the API handlers.
type Server struct {
	store    store.Store
	resolver *auth.Resolver
	binder   *tenancy.Binder
	recorder *tracking.Recorder
	limiter  *apphttp.RateLimiter
	refresh  *refresher

	cfg Config
}

// New creates the API server.
func New(cfg Config) *Server {
	if cfg.Binder == nil {
		cfg.Binder = tenancy.NewBinder()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = tracking.NewRecorder("")
	}

	return &Server{
		store:    cfg.Store,
		resolver: cfg.Resolver,
		binder:   cfg.Binder,
		recorder: cfg.Recorder,
		limiter:  cfg.RateLimiter,
		refresh:  newRefresher(cfg.Refresh),
		cfg:      cfg,
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	protection := csrf.New()
	for _, origin := range s.cfg.TrustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, err
		}
	}

	mux.Handle("GET /v1/auth/me", s.authenticated(s.handleMe))
	mux.Handle("POST /v1/auth/refresh", protection.Handler(http.HandlerFunc(s.handleRefresh)))

	mux.Handle("POST /v1/tenants", s.authenticated(s.handleCreateTenant))
	mux.Handle("GET /v1/tenants/me", s.tenantBound(s.handleCurrentTenant))

	mux.Handle("GET /v1/members", s.tenantBound(s.handleListMembers))
	mux.Handle("POST /v1/members/invite", s.tenantBound(s.handleInviteMember))
	mux.Handle("POST /v1/members/accept", s.authenticated(s.handleAcceptInvite))
	mux.Handle("DELETE /v1/members/{id}", s.tenantBound(s.handleRemoveMember))

	mux.Handle("GET /v1/admin/{kind}", s.tenantBound(s.handleListDocuments))
	mux.Handle("GET /v1/admin/{kind}/{id}", s.tenantBound(s.handleGetDocument))
	mux.Handle("POST /v1/admin/{kind}/{id}/status", s.tenantBound(s.handleTransitionDocument))

	mux.Handle("POST /v1/storefront/{slug}/visit", s.rateLimited(s.storefront(s.handleVisit)))
	mux.Handle("POST /v1/storefront/{slug}/orders", s.rateLimited(s.storefront(s.handleSubmitOrder)))
	mux.Handle("POST /v1/storefront/{slug}/donations", s.rateLimited(s.storefront(s.handleSubmitDonation)))
	mux.Handle("POST /v1/storefront/{slug}/pledges", s.rateLimited(s.storefront(s.handleSubmitPledge)))

	var h http.Handler = mux
	h = withCORS(s.cfg.CORSOrigins, h)
	h = gzhttp.GzipHandler(h)
	h = logger.RequestLogger(s.cfg.Logger)(h)
	h = apphttp.ClientIPMiddleware()(h)
	h = apphttp.RequestIDMiddleware()(h)

	if s.cfg.Tracing {
		h = otelhttp.NewHandler(h, "storefront-api",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}

	return h, nil
}

func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return h
	}

	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", TenantHeader, apphttp.RequestIDHeader},
		ExposedHeaders:   []string{apphttp.RequestIDHeader},
		AllowCredentials: true, // Required for the refresh cookie
	})
	return middleware.Handler(h)
}

// txFunc handles a request inside its transaction and returns the status and body to write.
// Returning an error rolls the transaction back.
type txFunc func(ctx context.Context, tx store.Tx, r *http.Request) (int, any, error)

// principalFunc is a txFunc that also receives the resolved principal.
type principalFunc func(ctx context.Context, tx store.Tx, r *http.Request, principal *models.Principal) (int, any, error)

// tenantFunc is a txFunc for storefront routes, receiving the tenant bound from the slug.
type tenantFunc func(ctx context.Context, tx store.Tx, r *http.Request, tenant *models.Tenant) (int, any, error)

// serve runs fn in one transaction and writes its result. The response is written only after
// the transaction has committed.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, fn txFunc) {
	var (
		status int
		body   any
	)

	err := s.store.InTx(r.Context(), func(ctx context.Context, tx store.Tx) error {
		var err error
		status, body, err = fn(ctx, tx, r)
		return err
	})
	if err != nil {
		writeProblem(w, r, err)
		return
	}

	writeJSON(w, status, body)
}

// authenticated resolves the bearer credential to a principal without binding a tenant.
func (s *Server) authenticated(fn principalFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, func(ctx context.Context, tx store.Tx, r *http.Request) (int, any, error) {
			principal, err := s.resolver.Resolve(ctx, tx, auth.BearerToken(r))
			if err != nil {
				return 0, nil, err
			}

			ctx = auth.WithPrincipal(ctx, principal)
			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("principal_id", principal.PrincipalID.String())
			})

			return fn(ctx, tx, r, principal)
		})
	})
}

// tenantBound resolves the principal and binds the tenant selected by TenantHeader, or the
// default tenant when the header is absent.
func (s *Server) tenantBound(fn principalFunc) http.Handler {
	return s.authenticated(func(ctx context.Context, tx store.Tx, r *http.Request, principal *models.Principal) (int, any, error) {
		sec, err := s.binder.BindTenant(ctx, tx, principal, r.Header.Get(TenantHeader))
		if err != nil {
			return 0, nil, err
		}

		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("tenant_id", sec.TenantID.String())
		})

		return fn(ctx, tx, r, principal)
	})
}

// storefront binds the active tenant named by the slug path value without a principal.
func (s *Server) storefront(fn tenantFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, func(ctx context.Context, tx store.Tx, r *http.Request) (int, any, error) {
			_, tenant, err := s.binder.BindPublicTenant(ctx, tx, r.PathValue("slug"))
			if err != nil {
				return 0, nil, err
			}
			return fn(ctx, tx, r, tenant)
		})
	})
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	if s.limiter == nil {
		return h
	}
	return apphttp.RateLimitMiddleware(s.limiter)(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
