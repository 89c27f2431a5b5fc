package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// tenantStore implements store.TenantStore. Tenants are global.
type tenantStore struct {
	tx *tx
}

func (s *tenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	for _, t := range s.tx.s.tenants {
		if t.Slug == tenant.Slug {
			return store.ErrSlugAlreadyTaken
		}
	}

	clone := *tenant
	s.tx.s.tenants[tenant.TenantID] = &clone
	s.tx.record(func() { delete(s.tx.s.tenants, tenant.TenantID) })

	return nil
}

func (s *tenantStore) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	t, exists := s.tx.s.tenants[tenantID]
	if !exists {
		return nil, store.ErrTenantNotFound
	}

	clone := *t
	return &clone, nil
}

func (s *tenantStore) GetActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	for _, t := range s.tx.s.tenants {
		if t.Slug == slug && t.Active {
			clone := *t
			return &clone, nil
		}
	}
	return nil, store.ErrTenantNotFound
}

// planStore implements store.PlanStore. Plans are global.
type planStore struct {
	tx *tx
}

func (s *planStore) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	p, exists := s.tx.s.plans[name]
	if !exists {
		return nil, store.ErrPlanNotFound
	}

	clone := *p
	return &clone, nil
}

func (s *planStore) Upsert(ctx context.Context, plan *models.Plan) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	prev, existed := s.tx.s.plans[plan.Name]
	if existed {
		// Keep the identity of the existing row, like ON CONFLICT (name) DO UPDATE.
		plan.PlanID = prev.PlanID
		plan.CreatedAt = prev.CreatedAt
	}

	clone := *plan
	s.tx.s.plans[plan.Name] = &clone
	s.tx.record(func() {
		if existed {
			s.tx.s.plans[plan.Name] = prev
		} else {
			delete(s.tx.s.plans, plan.Name)
		}
	})

	return nil
}
