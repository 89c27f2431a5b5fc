package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// visitStore implements store.VisitStore with the tenant-only row policy applied.
type visitStore struct {
	tx *tx
}

func (s *visitStore) Create(ctx context.Context, v *models.Visit) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	if err := s.tx.checkWrite(v.TenantID); err != nil {
		return err
	}

	clone := *v
	s.tx.s.visits[v.VisitID] = &clone
	s.tx.record(func() { delete(s.tx.s.visits, v.VisitID) })

	return nil
}

func (s *visitStore) Get(ctx context.Context, visitID uuid.UUID) (*models.Visit, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	v, ok := s.tx.s.visits[visitID]
	if !ok || !s.tx.tenantVisible(v.TenantID) {
		return nil, store.ErrVisitNotFound
	}

	clone := *v
	return &clone, nil
}

func (s *visitStore) CreateEvent(ctx context.Context, e *models.UTMEvent) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	if err := s.tx.checkWrite(e.TenantID); err != nil {
		return err
	}
	if _, ok := s.tx.s.visits[e.VisitID]; !ok {
		return store.ErrVisitNotFound
	}

	clone := *e
	s.tx.s.events[e.EventID] = &clone
	s.tx.record(func() { delete(s.tx.s.events, e.EventID) })

	return nil
}

func (s *visitStore) ListEvents(ctx context.Context, visitID uuid.UUID) ([]*models.UTMEvent, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	var result []*models.UTMEvent
	for _, e := range s.tx.s.events {
		if e.VisitID == visitID && s.tx.tenantVisible(e.TenantID) {
			clone := *e
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
