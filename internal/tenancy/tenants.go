package tenancy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// CreateTenantInput is the caller-supplied part of a new tenant.
type CreateTenantInput struct {
	Name            string
	Slug            string
	DefaultCurrency string
}

// Validate checks the input, applying the default currency when absent.
func (in *CreateTenantInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len(in.Name) > 255 {
		return apperr.Validation("name must be 1-255 characters")
	}
	if !slugPattern.MatchString(in.Slug) {
		return apperr.Validation("slug must be 3-63 chars, lowercase alphanumeric with hyphens, cannot start or end with a hyphen")
	}
	if in.DefaultCurrency == "" {
		in.DefaultCurrency = models.DefaultCurrency
	}
	if !currencyPattern.MatchString(in.DefaultCurrency) {
		return apperr.Validation("default currency must be a 3 letter ISO code")
	}
	return nil
}

// CreateTenant creates a tenant on the default plan and makes principal its active owner.
// The new tenant is bound to tx before the owner membership is written.
func CreateTenant(ctx context.Context, tx store.Tx, principal *models.Principal, in CreateTenantInput) (*models.Tenant, *models.Membership, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	tenant := &models.Tenant{
		TenantID:        uuid.Must(uuid.NewV7()),
		Name:            in.Name,
		Slug:            in.Slug,
		Active:          true,
		DefaultCurrency: in.DefaultCurrency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	plan, err := tx.Plans().GetByName(ctx, models.DefaultPlanName)
	switch {
	case err == nil:
		tenant.PlanID = &plan.PlanID
	case errors.Is(err, store.ErrPlanNotFound):
		log.Warn().Str("plan", models.DefaultPlanName).Msg("Default plan missing, creating tenant without plan")
	default:
		return nil, nil, fmt.Errorf("failed to load default plan: %w", err)
	}

	if err := tx.Tenants().Create(ctx, tenant); err != nil {
		return nil, nil, err
	}

	if err := tx.SetPrincipal(ctx, principal.PrincipalID); err != nil {
		return nil, nil, fmt.Errorf("failed to bind principal: %w", err)
	}
	if err := tx.SetTenant(ctx, tenant.TenantID); err != nil {
		return nil, nil, fmt.Errorf("failed to bind tenant: %w", err)
	}

	principalID := principal.PrincipalID
	owner := &models.Membership{
		MembershipID: uuid.Must(uuid.NewV7()),
		TenantID:     tenant.TenantID,
		PrincipalID:  &principalID,
		Role:         models.RoleOwner,
		Status:       models.MembershipActive,
		JoinedAt:     &now,
	}
	if err := tx.Memberships().Create(ctx, owner); err != nil {
		return nil, nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	log.Info().
		Str("tenant_id", tenant.TenantID.String()).
		Str("principal_id", principalID.String()).
		Str("slug", tenant.Slug).
		Msg("Created tenant")

	return tenant, owner, nil
}

// CurrentTenant returns the tenant bound to tx.
func CurrentTenant(ctx context.Context, tx store.Tx) (*models.Tenant, error) {
	sec := tx.Security()
	if !sec.HasTenant() {
		return nil, store.ErrTenantNotBound
	}
	return tx.Tenants().Get(ctx, sec.TenantID)
}
