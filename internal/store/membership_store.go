package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
)

// Sentinel errors for membership store operations
var (
	ErrMembershipNotFound      = fmt.Errorf("membership %w", apperr.ErrNotFound)
	ErrMembershipAlreadyExists = fmt.Errorf("membership already exists: %w", apperr.ErrConflict)
)

// MembershipStore manages tenant memberships. Memberships are tenant-scoped: reads match the
// bound tenant, or the bound principal for the principal's own rows; writes require the bound
// tenant.
type MembershipStore interface {
	// Create inserts a membership.
	// Returns ErrMembershipAlreadyExists if the (tenant, principal) pair exists.
	Create(ctx context.Context, m *models.Membership) error

	// Get retrieves a visible membership by ID.
	// Returns ErrMembershipNotFound if it doesn't exist or is not visible.
	Get(ctx context.Context, membershipID uuid.UUID) (*models.Membership, error)

	// FindActive returns the principal's active membership in the tenant.
	// Returns ErrMembershipNotFound if none is visible.
	FindActive(ctx context.Context, principalID, tenantID uuid.UUID) (*models.Membership, error)

	// FindEarliestActive returns the principal's active membership with the earliest joined_at.
	// Returns ErrMembershipNotFound if none is visible.
	FindEarliestActive(ctx context.Context, principalID uuid.UUID) (*models.Membership, error)

	// ListForPrincipal returns the principal's visible active memberships, earliest joined first.
	ListForPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error)

	// ListForTenant returns visible non-removed memberships of the tenant with principal details.
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.MembershipWithPrincipal, error)

	// FindPendingInvite returns the invited membership for the email in the tenant.
	// Returns ErrMembershipNotFound if none is visible.
	FindPendingInvite(ctx context.Context, tenantID uuid.UUID, email string) (*models.Membership, error)

	// FindByPrincipal returns the principal's membership in the tenant regardless of status.
	// Returns ErrMembershipNotFound if none is visible.
	FindByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) (*models.Membership, error)

	// CountActiveOwners counts active owner memberships of the tenant.
	CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error)

	// Update writes role, status, principal, invite and joined fields of a membership.
	// Returns ErrMembershipNotFound if it doesn't exist or is not visible.
	Update(ctx context.Context, m *models.Membership) error
}
