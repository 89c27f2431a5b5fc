package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// tenantStore implements store.TenantStore using PostgreSQL.
type tenantStore struct {
	tx pgx.Tx
}

const tenantColumns = `tenant_id, name, slug, active, default_currency, plan_id, created_at, updated_at`

// Create creates a new tenant in the database.
func (s *tenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (
			tenant_id, name, slug, active, default_currency, plan_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.tx.Exec(ctx, query,
		tenant.TenantID,
		tenant.Name,
		tenant.Slug,
		tenant.Active,
		tenant.DefaultCurrency,
		tenant.PlanID,
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("tenant_id", tenant.TenantID.String()).
		Str("slug", tenant.Slug).
		Msg("Created tenant")

	return nil
}

// Get retrieves a tenant by ID.
func (s *tenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE tenant_id = $1`
	return s.getOne(ctx, query, tenantID)
}

// GetActiveBySlug retrieves an active tenant by its public slug.
func (s *tenantStore) GetActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1 AND active`
	return s.getOne(ctx, query, slug)
}

func (s *tenantStore) getOne(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	var t models.Tenant
	err := s.tx.QueryRow(ctx, query, arg).Scan(
		&t.TenantID,
		&t.Name,
		&t.Slug,
		&t.Active,
		&t.DefaultCurrency,
		&t.PlanID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", mapPostgresError(err))
	}

	return &t, nil
}

// planStore implements store.PlanStore using PostgreSQL.
type planStore struct {
	tx pgx.Tx
}

// GetByName retrieves a plan by name.
func (s *planStore) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	query := `
		SELECT plan_id, name, ai_token_quota, price_amount, currency, max_members, created_at
		FROM plans
		WHERE name = $1
	`

	var p models.Plan
	err := s.tx.QueryRow(ctx, query, name).Scan(
		&p.PlanID,
		&p.Name,
		&p.AITokenQuota,
		&p.PriceAmount,
		&p.Currency,
		&p.MaxMembers,
		&p.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", mapPostgresError(err))
	}

	return &p, nil
}

// Upsert creates or replaces a plan keyed by name. The stored ID and creation time are written
// back to plan.
func (s *planStore) Upsert(ctx context.Context, plan *models.Plan) error {
	query := `
		INSERT INTO plans (
			plan_id, name, ai_token_quota, price_amount, currency, max_members, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (name) DO UPDATE SET
			ai_token_quota = EXCLUDED.ai_token_quota,
			price_amount = EXCLUDED.price_amount,
			currency = EXCLUDED.currency,
			max_members = EXCLUDED.max_members
		RETURNING plan_id, created_at
	`

	err := s.tx.QueryRow(ctx, query,
		plan.PlanID,
		plan.Name,
		plan.AITokenQuota,
		plan.PriceAmount,
		plan.Currency,
		plan.MaxMembers,
		plan.CreatedAt,
	).Scan(&plan.PlanID, &plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("plan_id", plan.PlanID.String()).
		Str("name", plan.Name).
		Msg("Upserted plan")

	return nil
}
