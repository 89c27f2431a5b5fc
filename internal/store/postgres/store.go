package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// Session attributes consulted by the row-level security policies.
const (
	settingTenant    = "app.current_tenant"
	settingPrincipal = "app.current_principal"
)

// Store implements store.Store using PostgreSQL. Every transaction holds one pooled connection
// and its security attributes are set with transaction-local set_config, so they never leak to
// the next user of the connection.
type Store struct {
	pool *pgxpool.Pool

	// Lifecycle
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a PostgreSQL-backed store on the given pool and starts pool monitoring.
// The store takes ownership of the pool and closes it in Close.
func New(pool *pgxpool.Pool) *Store {
	s := &Store{
		pool:   pool,
		stopCh: make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitorConnectionPool()
	}()

	return s
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}

	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close stops pool monitoring and closes the pool.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		log.Info().Msg("Stopping PostgreSQL store")
		close(s.stopCh)
		s.wg.Wait()
		s.pool.Close()
	})
}

// monitorConnectionPool logs connection pool statistics periodically.
func (s *Store) monitorConnectionPool() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.pool.Stat()
			log.Debug().
				Int32("total_conns", stats.TotalConns()).
				Int32("idle_conns", stats.IdleConns()).
				Int32("acquired_conns", stats.AcquiredConns()).
				Int64("acquire_count", stats.AcquireCount()).
				Int64("acquire_duration_ns", stats.AcquireDuration().Nanoseconds()).
				Msg("Connection pool stats")
		case <-s.stopCh:
			return
		}
	}
}

// tx implements store.Tx on a pgx transaction.
type tx struct {
	tx  pgx.Tx
	sec models.SecurityContext
}

func (t *tx) Security() models.SecurityContext {
	return t.sec
}

func (t *tx) SetPrincipal(ctx context.Context, principalID uuid.UUID) error {
	if err := t.setConfig(ctx, settingPrincipal, principalID); err != nil {
		return err
	}
	t.sec.PrincipalID = principalID
	return nil
}

func (t *tx) SetTenant(ctx context.Context, tenantID uuid.UUID) error {
	if err := t.setConfig(ctx, settingTenant, tenantID); err != nil {
		return err
	}
	t.sec.TenantID = tenantID
	return nil
}

// setConfig sets a transaction-local attribute. uuid.Nil resets it to the empty string, which the
// policies read as NULL.
func (t *tx) setConfig(ctx context.Context, name string, id uuid.UUID) error {
	value := ""
	if id != uuid.Nil {
		value = id.String()
	}

	if _, err := t.tx.Exec(ctx, `SELECT set_config($1, $2, true)`, name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, mapPostgresError(err))
	}
	return nil
}

func (t *tx) AdvisoryLock(ctx context.Context, key string) error {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", mapPostgresError(err))
	}
	return nil
}

func (t *tx) Principals() store.PrincipalStore   { return &principalStore{tx: t.tx} }
func (t *tx) Plans() store.PlanStore             { return &planStore{tx: t.tx} }
func (t *tx) Tenants() store.TenantStore         { return &tenantStore{tx: t.tx} }
func (t *tx) Memberships() store.MembershipStore { return &membershipStore{tx: t.tx} }
func (t *tx) Documents() store.DocumentStore     { return &documentStore{tx: t.tx} }
func (t *tx) Visits() store.VisitStore           { return &visitStore{tx: t.tx} }
