package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// RequireRole returns the principal's active membership in the tenant when its role ranks at
// least minRole. It is never applied implicitly; every privileged operation calls it.
func RequireRole(ctx context.Context, tx store.Tx, minRole models.Role, tenantID, principalID uuid.UUID) (*models.Membership, error) {
	if sec := tx.Security(); sec.TenantID != tenantID || sec.PrincipalID != principalID || !sec.HasTenant() {
		return nil, fmt.Errorf("role check for tenant %s: %w", tenantID, store.ErrTenantNotBound)
	}

	membership, err := tx.Memberships().FindActive(ctx, principalID, tenantID)
	if errors.Is(err, store.ErrMembershipNotFound) {
		return nil, apperr.Forbidden("no active tenant membership")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	if membership.Role.Rank() < minRole.Rank() {
		return nil, apperr.Forbidden("requires %s role", minRole)
	}

	return membership, nil
}

// Require is RequireRole for the tenant and principal already bound to tx.
func Require(ctx context.Context, tx store.Tx, minRole models.Role) (*models.Membership, error) {
	sec := tx.Security()
	return RequireRole(ctx, tx, minRole, sec.TenantID, sec.PrincipalID)
}
