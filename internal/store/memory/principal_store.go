package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// principalStore implements store.PrincipalStore. Principals are global.
type principalStore struct {
	tx *tx
}

func (s *principalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	p, exists := s.tx.s.principals[principalID]
	if !exists {
		return nil, store.ErrPrincipalNotFound
	}

	clone := *p
	return &clone, nil
}

func (s *principalStore) GetBySubject(ctx context.Context, subject string) (*models.Principal, error) {
	return s.find(func(p *models.Principal) bool { return p.Subject == subject })
}

func (s *principalStore) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return s.find(func(p *models.Principal) bool { return strings.EqualFold(p.Email, email) })
}

func (s *principalStore) find(match func(p *models.Principal) bool) (*models.Principal, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	for _, p := range s.tx.s.principals {
		if match(p) {
			clone := *p
			return &clone, nil
		}
	}
	return nil, store.ErrPrincipalNotFound
}

func (s *principalStore) CreateIfAbsent(ctx context.Context, principal *models.Principal) (bool, error) {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	for _, p := range s.tx.s.principals {
		if p.PrincipalID == principal.PrincipalID || p.Subject == principal.Subject || strings.EqualFold(p.Email, principal.Email) {
			return false, nil
		}
	}

	clone := *principal
	s.tx.s.principals[principal.PrincipalID] = &clone
	s.tx.record(func() { delete(s.tx.s.principals, principal.PrincipalID) })

	return true, nil
}
