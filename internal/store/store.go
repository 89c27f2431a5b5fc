package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
)

// Sentinel errors shared by every store implementation.
var (
	// ErrIsolationViolation is returned when row-level isolation rejects a write because the
	// tenant attribute is unbound or does not match the row. It signals a missing bind and is
	// deliberately not one of the apperr kinds: callers must surface it as an internal error.
	ErrIsolationViolation = errors.New("row-level isolation violation")

	// ErrMalformedNumber is returned when a stored document number does not parse as PREFIX-NNNNN.
	ErrMalformedNumber = fmt.Errorf("malformed document number: %w", apperr.ErrDataIntegrity)

	// ErrTenantNotBound is returned when a tenant-scoped operation runs without a bound tenant
	// or with a tenant other than the bound one.
	ErrTenantNotBound = errors.New("tenant context not bound")
)

// Store is the transactional entry point. Every request runs inside exactly one transaction and
// all data access goes through the Tx it is handed.
type Store interface {
	// InTx runs fn inside a transaction. The transaction commits when fn returns nil and rolls
	// back otherwise. Session attributes set on the Tx never outlive it.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close()
}

// Tx is a single transaction carrying an explicit security context.
//
// SetPrincipal and SetTenant map the context onto the store's isolation mechanism; for Postgres
// this is transaction-local set_config. Tenant-scoped reads see only rows that match the bound
// context and tenant-scoped writes fail with ErrIsolationViolation when it does not match.
type Tx interface {
	// Security returns the security context bound so far.
	Security() models.SecurityContext

	// SetPrincipal binds the current principal for the rest of the transaction.
	SetPrincipal(ctx context.Context, principalID uuid.UUID) error

	// SetTenant binds the current tenant for the rest of the transaction.
	SetTenant(ctx context.Context, tenantID uuid.UUID) error

	// AdvisoryLock takes an exclusive transaction-scoped lock on key, blocking until it is
	// granted or ctx is done. The lock is released when the transaction ends.
	AdvisoryLock(ctx context.Context, key string) error

	Principals() PrincipalStore
	Plans() PlanStore
	Tenants() TenantStore
	Memberships() MembershipStore
	Documents() DocumentStore
	Visits() VisitStore
}
