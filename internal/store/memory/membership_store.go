package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// membershipStore implements store.MembershipStore with the membership read policy applied.
type membershipStore struct {
	tx *tx
}

func (s *membershipStore) Create(ctx context.Context, m *models.Membership) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	if err := s.tx.checkWrite(m.TenantID); err != nil {
		return err
	}

	if m.PrincipalID != nil {
		for _, existing := range s.tx.s.memberships {
			if existing.TenantID == m.TenantID && existing.PrincipalID != nil && *existing.PrincipalID == *m.PrincipalID {
				return store.ErrMembershipAlreadyExists
			}
		}
	}

	clone := *m
	s.tx.s.memberships[m.MembershipID] = &clone
	s.tx.record(func() { delete(s.tx.s.memberships, m.MembershipID) })

	return nil
}

func (s *membershipStore) Get(ctx context.Context, membershipID uuid.UUID) (*models.Membership, error) {
	return s.first(func(m *models.Membership) bool { return m.MembershipID == membershipID })
}

func (s *membershipStore) FindActive(ctx context.Context, principalID, tenantID uuid.UUID) (*models.Membership, error) {
	return s.first(func(m *models.Membership) bool {
		return m.TenantID == tenantID && ownedBy(m, principalID) && m.IsActive()
	})
}

func (s *membershipStore) FindEarliestActive(ctx context.Context, principalID uuid.UUID) (*models.Membership, error) {
	list := s.filter(func(m *models.Membership) bool { return ownedBy(m, principalID) && m.IsActive() })
	if len(list) == 0 {
		return nil, store.ErrMembershipNotFound
	}
	return list[0], nil
}

func (s *membershipStore) ListForPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error) {
	return s.filter(func(m *models.Membership) bool { return ownedBy(m, principalID) && m.IsActive() }), nil
}

func (s *membershipStore) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.MembershipWithPrincipal, error) {
	list := s.filter(func(m *models.Membership) bool {
		return m.TenantID == tenantID && m.Status != models.MembershipRemoved
	})

	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	result := make([]*models.MembershipWithPrincipal, 0, len(list))
	for _, m := range list {
		row := &models.MembershipWithPrincipal{Membership: *m}
		if m.PrincipalID != nil {
			if p, ok := s.tx.s.principals[*m.PrincipalID]; ok {
				email, name := p.Email, p.Name
				row.Email = &email
				row.Name = &name
			}
		}
		result = append(result, row)
	}
	return result, nil
}

func (s *membershipStore) FindPendingInvite(ctx context.Context, tenantID uuid.UUID, email string) (*models.Membership, error) {
	return s.first(func(m *models.Membership) bool {
		return m.TenantID == tenantID &&
			m.Status == models.MembershipInvited &&
			m.InvitedEmail != nil && strings.EqualFold(*m.InvitedEmail, email)
	})
}

func (s *membershipStore) FindByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) (*models.Membership, error) {
	return s.first(func(m *models.Membership) bool { return m.TenantID == tenantID && ownedBy(m, principalID) })
}

func (s *membershipStore) CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	list := s.filter(func(m *models.Membership) bool {
		return m.TenantID == tenantID && m.Role == models.RoleOwner && m.IsActive()
	})
	return len(list), nil
}

func (s *membershipStore) Update(ctx context.Context, m *models.Membership) error {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	prev, exists := s.tx.s.memberships[m.MembershipID]
	if !exists || !s.tx.tenantVisible(prev.TenantID) {
		return store.ErrMembershipNotFound
	}
	if err := s.tx.checkWrite(m.TenantID); err != nil {
		return err
	}

	if m.PrincipalID != nil {
		for _, other := range s.tx.s.memberships {
			if other.MembershipID != m.MembershipID && other.TenantID == m.TenantID &&
				other.PrincipalID != nil && *other.PrincipalID == *m.PrincipalID {
				return store.ErrMembershipAlreadyExists
			}
		}
	}

	clone := *m
	s.tx.s.memberships[m.MembershipID] = &clone
	s.tx.record(func() { s.tx.s.memberships[m.MembershipID] = prev })

	return nil
}

func (s *membershipStore) first(match func(m *models.Membership) bool) (*models.Membership, error) {
	list := s.filter(match)
	if len(list) == 0 {
		return nil, store.ErrMembershipNotFound
	}
	return list[0], nil
}

// filter returns clones of visible memberships matching fn, ordered by joined_at with
// never-joined rows last.
func (s *membershipStore) filter(match func(m *models.Membership) bool) []*models.Membership {
	s.tx.s.mu.Lock()
	defer s.tx.s.mu.Unlock()

	var result []*models.Membership
	for _, m := range s.tx.s.memberships {
		if s.tx.membershipVisible(m) && match(m) {
			clone := *m
			result = append(result, &clone)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i].JoinedAt, result[j].JoinedAt
		switch {
		case a == nil && b == nil:
			return result[i].MembershipID.String() < result[j].MembershipID.String()
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return result[i].MembershipID.String() < result[j].MembershipID.String()
		default:
			return a.Before(*b)
		}
	})

	return result
}

func ownedBy(m *models.Membership, principalID uuid.UUID) bool {
	return m.PrincipalID != nil && *m.PrincipalID == principalID
}
