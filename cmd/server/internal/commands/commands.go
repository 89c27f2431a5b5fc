package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/store"
	memorystore "github.com/wolfeidau/storefront/internal/store/memory"
	postgresstore "github.com/wolfeidau/storefront/internal/store/postgres"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// RuntimeRole must not be a superuser or row-level security is bypassed
	RuntimeRole string `help:"role the server switches to on every connection" default:"app_user" env:"STOREFRONT_POSTGRES_RUNTIME_ROLE"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"STOREFRONT_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// openStore creates the store for storeType. Migrations run on a separate pool using the login
// role, since the runtime role has no DDL grants.
func openStore(ctx context.Context, storeType string, flags PostgresStoreFlags) (store.Store, error) {
	switch storeType {
	case "postgres":
		if err := flags.Validate(); err != nil {
			return nil, err
		}

		if flags.AutoMigrate {
			if err := migrate(ctx, flags.ConnString); err != nil {
				return nil, err
			}
		}

		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      flags.ConnString,
			MaxConns:        flags.MaxConns,
			MinConns:        flags.MinConns,
			MaxConnLifetime: flags.MaxConnLifetime,
			MaxConnIdleTime: flags.MaxConnIdleTime,
			RuntimeRole:     flags.RuntimeRole,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}

		log.Info().Msg("Using PostgreSQL store")
		return postgresstore.New(pool), nil

	default:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return memorystore.New(), nil
	}
}

func migrate(ctx context.Context, connString string) error {
	pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
		ConnString: connString,
		MaxConns:   2,
		MinConns:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to create migration pool: %w", err)
	}
	defer pool.Close()

	if err := postgresstore.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("Database migrations completed")
	return nil
}
