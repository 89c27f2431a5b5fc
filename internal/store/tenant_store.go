package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
)

// Sentinel errors for tenant store operations
var (
	ErrTenantNotFound   = fmt.Errorf("tenant %w", apperr.ErrNotFound)
	ErrSlugAlreadyTaken = fmt.Errorf("slug already taken: %w", apperr.ErrConflict)
	ErrPlanNotFound     = fmt.Errorf("plan %w", apperr.ErrNotFound)
)

// TenantStore manages tenants. Tenants are global: membership resolution and the public
// storefront read them before any tenant is bound.
type TenantStore interface {
	// Create creates a new tenant.
	// Returns ErrSlugAlreadyTaken if the slug is in use.
	Create(ctx context.Context, tenant *models.Tenant) error

	// Get retrieves a tenant by ID.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)

	// GetActiveBySlug retrieves an active tenant by slug.
	// Returns ErrTenantNotFound if no active tenant has the slug.
	GetActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// PlanStore reads plans. Plans are global.
type PlanStore interface {
	// GetByName retrieves a plan by name.
	// Returns ErrPlanNotFound if the plan doesn't exist.
	GetByName(ctx context.Context, name string) (*models.Plan, error)

	// Upsert creates or replaces a plan keyed by name.
	Upsert(ctx context.Context, plan *models.Plan) error
}
