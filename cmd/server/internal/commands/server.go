package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/auth"
	"github.com/wolfeidau/storefront/internal/client"
	httpmiddleware "github.com/wolfeidau/storefront/internal/http"
	"github.com/wolfeidau/storefront/internal/httpapi"
	"github.com/wolfeidau/storefront/internal/logger"
	"github.com/wolfeidau/storefront/internal/telemetry"
	"github.com/wolfeidau/storefront/internal/tenancy"
	"github.com/wolfeidau/storefront/internal/tracking"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"STOREFRONT_LISTEN"`

	// CORS and cross-origin configuration
	CORSOrigins    []string `help:"allowed CORS origins for API requests" env:"STOREFRONT_CORS_ORIGINS"`
	TrustedOrigins []string `help:"origins allowed to make cross-origin cookie requests to the refresh endpoint" env:"STOREFRONT_TRUSTED_ORIGINS"`

	// Storefront configuration
	IPHashSalt    string  `help:"salt for hashing visitor IP addresses" env:"STOREFRONT_IP_HASH_SALT"`
	RateLimit     float64 `help:"storefront requests per second per client IP" default:"5" env:"STOREFRONT_RATE_LIMIT"`
	RateBurst     int     `help:"storefront request burst per client IP" default:"20" env:"STOREFRONT_RATE_BURST"`
	DefaultTenant string  `help:"tenant selection when no tenant id is sent" default:"earliest" enum:"earliest,require-hint" env:"STOREFRONT_DEFAULT_TENANT"`
	SeedFile      string  `help:"YAML plans file loaded at startup" type:"existingfile" env:"STOREFRONT_SEED_FILE"`

	// Operational modes
	Tracing          bool    `help:"enable tracing" default:"false" env:"STOREFRONT_TRACING"`
	TraceSampleRatio float64 `help:"fraction of traces sampled" default:"1.0" env:"STOREFRONT_TRACE_SAMPLE_RATIO"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"STOREFRONT_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Auth          AuthFlags          `embed:"" prefix:"auth-"`
}

// AuthFlags select how bearer credentials are verified. The mode comes from configuration only.
type AuthFlags struct {
	Mode            string        `help:"credential verification mode" default:"jwks" enum:"jwks,local" env:"STOREFRONT_AUTH_MODE"`
	Issuer          string        `help:"expected token issuer" env:"STOREFRONT_AUTH_ISSUER"`
	Audience        string        `help:"expected audience or client id, required in jwks mode" env:"STOREFRONT_AUTH_AUDIENCE"`
	JWKSURL         string        `name:"jwks-url" help:"identity provider JWKS URL" env:"STOREFRONT_AUTH_JWKS_URL"`
	RefreshInterval time.Duration `help:"how long a fetched key set is trusted" default:"1h" env:"STOREFRONT_AUTH_JWKS_REFRESH_INTERVAL"`
	LocalSecret     string        `help:"HS256 secret for local mode" env:"STOREFRONT_AUTH_LOCAL_SECRET"`
	TokenURL        string        `name:"token-url" help:"identity provider token endpoint used to refresh tokens" env:"STOREFRONT_AUTH_TOKEN_URL"`
	ClientID        string        `help:"OAuth client id used to refresh tokens" env:"STOREFRONT_AUTH_CLIENT_ID"`
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	zlog.Logger = log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "storefront-server", globals.Version, c.TraceSampleRatio)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	st, err := openStore(ctx, c.StoreType, c.PostgresStore)
	if err != nil {
		return err
	}
	defer st.Close()

	if c.SeedFile != "" {
		plans, err := loadPlans(c.SeedFile)
		if err != nil {
			return err
		}
		if err := seedPlans(ctx, st, plans); err != nil {
			return err
		}
	}

	httpClient := client.NewInMemoryCachingHTTPClient()

	verifier, err := auth.NewVerifier(auth.Config{
		Mode:            c.Auth.Mode,
		Issuer:          c.Auth.Issuer,
		Audience:        c.Auth.Audience,
		JWKSURL:         c.Auth.JWKSURL,
		RefreshInterval: c.Auth.RefreshInterval,
		HTTPClient:      httpClient,
		LocalSecret:     c.Auth.LocalSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}
	if c.Auth.Mode == auth.ModeLocal {
		log.Warn().Msg("Local authentication mode is enabled. This should only be used in development!")
	}

	if c.IPHashSalt == "" {
		log.Warn().Msg("No IP hash salt configured, visitor IP hashes are unsalted")
	}

	policy := tenancy.EarliestJoined
	if c.DefaultTenant == "require-hint" {
		policy = tenancy.RequireHint
	}

	limiter := httpmiddleware.NewRateLimiter(c.RateLimit, c.RateBurst)
	defer limiter.Stop()

	api := httpapi.New(httpapi.Config{
		Store:       st,
		Resolver:    auth.NewResolver(verifier),
		Binder:      tenancy.NewBinderWithPolicy(policy),
		Recorder:    tracking.NewRecorder(c.IPHashSalt),
		RateLimiter: limiter,
		Refresh: httpapi.RefreshConfig{
			Mode:        c.Auth.Mode,
			TokenURL:    c.Auth.TokenURL,
			ClientID:    c.Auth.ClientID,
			HTTPClient:  httpClient,
			LocalSecret: c.Auth.LocalSecret,
			Issuer:      c.Auth.Issuer,
		},
		CORSOrigins:    c.CORSOrigins,
		TrustedOrigins: c.TrustedOrigins,
		Tracing:        c.Tracing,
		Logger:         log,
	})

	handler, err := api.Handler()
	if err != nil {
		return fmt.Errorf("failed to build API handler: %w", err)
	}

	srv := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Str("auth_mode", c.Auth.Mode).Str("store", c.StoreType).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
