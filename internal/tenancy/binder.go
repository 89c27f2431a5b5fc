// Package tenancy binds requests to a tenant and gates them by membership role.
//
// Binding is the only way a transaction gains a tenant: every tenant-scoped read and write that
// follows is filtered by the store's row-level isolation against the context set here.
package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/telemetry"
)

// DefaultTenantSelection names the rule used when a principal binds without a tenant hint.
type DefaultTenantSelection string

const (
	// EarliestJoined picks the active membership with the earliest joined_at.
	EarliestJoined DefaultTenantSelection = "earliest_joined"

	// RequireHint refuses to bind without an explicit tenant hint.
	RequireHint DefaultTenantSelection = "require_hint"
)

// DefaultTenantPolicy is the default-tenant rule for principals with several active memberships.
const DefaultTenantPolicy = EarliestJoined

// Binder establishes the transaction's security context.
type Binder struct {
	policy DefaultTenantSelection
}

// NewBinder creates a binder using DefaultTenantPolicy.
func NewBinder() *Binder {
	return &Binder{policy: DefaultTenantPolicy}
}

// NewBinderWithPolicy creates a binder with an explicit default-tenant rule.
func NewBinderWithPolicy(policy DefaultTenantSelection) *Binder {
	return &Binder{policy: policy}
}

// BindTenant binds principal and one of its active tenants to tx.
//
// The principal attribute is set first because the membership lookup is itself isolation
// protected and only the principal's own rows are visible before a tenant is bound. hint is the
// raw tenant id supplied by the caller, or "" for the default tenant. A malformed hint or a missing
// membership fails with apperr.ErrForbidden and leaves no tenant bound.
func (b *Binder) BindTenant(ctx context.Context, tx store.Tx, principal *models.Principal, hint string) (models.SecurityContext, error) {
	if principal == nil || principal.PrincipalID == uuid.Nil {
		return models.SecurityContext{}, apperr.Unauthorized("no principal")
	}

	if err := tx.SetPrincipal(ctx, principal.PrincipalID); err != nil {
		return models.SecurityContext{}, fmt.Errorf("failed to bind principal: %w", err)
	}

	membership, err := b.lookup(ctx, tx, principal.PrincipalID, hint)
	if err != nil {
		recordBind(ctx, "forbidden")
		return models.SecurityContext{}, err
	}

	if err := tx.SetTenant(ctx, membership.TenantID); err != nil {
		return models.SecurityContext{}, fmt.Errorf("failed to bind tenant: %w", err)
	}

	recordBind(ctx, "bound")
	log.Debug().
		Str("principal_id", principal.PrincipalID.String()).
		Str("tenant_id", membership.TenantID.String()).
		Msg("Bound tenant")

	return tx.Security(), nil
}

func (b *Binder) lookup(ctx context.Context, tx store.Tx, principalID uuid.UUID, hint string) (*models.Membership, error) {
	var (
		membership *models.Membership
		err        error
	)

	switch {
	case hint != "":
		tenantID, perr := uuid.Parse(hint)
		if perr != nil {
			return nil, apperr.Forbidden("malformed tenant id")
		}
		membership, err = tx.Memberships().FindActive(ctx, principalID, tenantID)
	case b.policy == RequireHint:
		return nil, apperr.Forbidden("tenant id required")
	default:
		membership, err = tx.Memberships().FindEarliestActive(ctx, principalID)
	}

	if errors.Is(err, store.ErrMembershipNotFound) {
		return nil, apperr.Forbidden("no active tenant membership")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}

	return membership, nil
}

// BindPublicTenant binds the active tenant with slug to tx without a principal.
// Fails with apperr.ErrNotFound when no active tenant has the slug.
func (b *Binder) BindPublicTenant(ctx context.Context, tx store.Tx, slug string) (models.SecurityContext, *models.Tenant, error) {
	tenant, err := tx.Tenants().GetActiveBySlug(ctx, slug)
	if errors.Is(err, store.ErrTenantNotFound) {
		recordBind(ctx, "not_found")
		return models.SecurityContext{}, nil, apperr.NotFound("storefront %q not found", slug)
	}
	if err != nil {
		return models.SecurityContext{}, nil, fmt.Errorf("failed to resolve storefront: %w", err)
	}

	if err := tx.SetTenant(ctx, tenant.TenantID); err != nil {
		return models.SecurityContext{}, nil, fmt.Errorf("failed to bind tenant: %w", err)
	}

	recordBind(ctx, "public")
	return tx.Security(), tenant, nil
}

func recordBind(ctx context.Context, outcome string) {
	telemetry.GetMetrics().TenantBindsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
