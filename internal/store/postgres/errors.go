package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/storefront/internal/store"
)

// constraintErrors maps named unique and foreign key constraints to sentinel errors.
var constraintErrors = map[string]error{
	"tenants_slug_key":                    store.ErrSlugAlreadyTaken,
	"tenant_members_tenant_principal_key": store.ErrMembershipAlreadyExists,
	"orders_tenant_number_key":            store.ErrDocumentNumberConflict,
	"donations_tenant_number_key":         store.ErrDocumentNumberConflict,
	"pledges_tenant_number_key":           store.ErrDocumentNumberConflict,
	"utm_events_visit_id_fkey":            store.ErrVisitNotFound,
	"orders_visit_id_fkey":                store.ErrVisitNotFound,
	"donations_visit_id_fkey":             store.ErrVisitNotFound,
	"pledges_visit_id_fkey":               store.ErrVisitNotFound,
}

// pgErrorCode returns the SQLSTATE of err, or "" when it is not a PostgreSQL error.
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// mapPostgresError maps PostgreSQL-specific errors to sentinel errors.
// Returns the original error if it's not a PostgreSQL error or doesn't match known patterns.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	// Check if it's a PostgreSQL error
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	// Map error codes to sentinel errors
	switch pgErr.Code {
	case pgerrcode.UniqueViolation, pgerrcode.ForeignKeyViolation:
		if sentinel, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %s", sentinel, pgErr.ConstraintName)
		}
		return fmt.Errorf("constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.InsufficientPrivilege:
		// Raised by row-level security WITH CHECK failures ("new row violates row-level
		// security policy"). Never reinterpreted: it means a write ran without a matching bind.
		return fmt.Errorf("%w: %s", store.ErrIsolationViolation, pgErr.Message)

	case pgerrcode.CheckViolation:
		// Invalid state or constraint violation
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		// Retryable transaction errors
		return fmt.Errorf("transaction conflict (retryable): %w", err)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection:
		// Connection errors
		return fmt.Errorf("database connection error: %w", err)

	case pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown:
		// Server unavailable
		return fmt.Errorf("database server unavailable: %w", err)

	case pgerrcode.QueryCanceled, pgerrcode.LockNotAvailable:
		// Context cancellation, statement timeout or lock timeout
		return fmt.Errorf("query canceled: %w", err)

	case pgerrcode.InsufficientResources,
		pgerrcode.DiskFull,
		pgerrcode.OutOfMemory,
		pgerrcode.TooManyConnections:
		// Resource errors (throttling-like)
		return fmt.Errorf("database resource limit: %w", err)

	default:
		// Unknown error - wrap with PostgreSQL error details
		return fmt.Errorf("postgres error [%s]: %s (detail: %s, hint: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.Hint, err)
	}
}
