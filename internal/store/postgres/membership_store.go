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

// membershipStore implements store.MembershipStore using PostgreSQL. Visibility is decided by the
// tenant_members row-level security policies; the WHERE clauses only narrow what is visible.
type membershipStore struct {
	tx pgx.Tx
}

const membershipColumns = `membership_id, tenant_id, principal_id, role, status, invited_email, invited_at, joined_at`

// Create inserts a membership.
func (s *membershipStore) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO tenant_members (
			membership_id, tenant_id, principal_id, role, status, invited_email, invited_at, joined_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.tx.Exec(ctx, query,
		m.MembershipID,
		m.TenantID,
		m.PrincipalID,
		m.Role,
		m.Status,
		m.InvitedEmail,
		m.InvitedAt,
		m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("membership_id", m.MembershipID.String()).
		Str("tenant_id", m.TenantID.String()).
		Str("role", string(m.Role)).
		Str("status", string(m.Status)).
		Msg("Created membership")

	return nil
}

func (s *membershipStore) Get(ctx context.Context, membershipID uuid.UUID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM tenant_members WHERE membership_id = $1`
	return s.getOne(ctx, query, membershipID)
}

func (s *membershipStore) FindActive(ctx context.Context, principalID, tenantID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM tenant_members
		WHERE principal_id = $1 AND tenant_id = $2 AND status = 'active'
	`
	return s.getOne(ctx, query, principalID, tenantID)
}

func (s *membershipStore) FindEarliestActive(ctx context.Context, principalID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM tenant_members
		WHERE principal_id = $1 AND status = 'active'
		ORDER BY joined_at ASC NULLS LAST, membership_id ASC
		LIMIT 1
	`
	return s.getOne(ctx, query, principalID)
}

func (s *membershipStore) ListForPrincipal(ctx context.Context, principalID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM tenant_members
		WHERE principal_id = $1 AND status = 'active'
		ORDER BY joined_at ASC NULLS LAST, membership_id ASC
	`

	rows, err := s.tx.Query(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", mapPostgresError(err))
	}

	return result, nil
}

func (s *membershipStore) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.MembershipWithPrincipal, error) {
	query := `
		SELECT m.membership_id, m.tenant_id, m.principal_id, m.role, m.status,
			m.invited_email, m.invited_at, m.joined_at, p.email, p.name
		FROM tenant_members m
		LEFT JOIN principals p ON p.principal_id = m.principal_id
		WHERE m.tenant_id = $1 AND m.status <> 'removed'
		ORDER BY m.joined_at ASC NULLS LAST, m.membership_id ASC
	`

	rows, err := s.tx.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant memberships: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.MembershipWithPrincipal
	for rows.Next() {
		var row models.MembershipWithPrincipal
		err := rows.Scan(
			&row.MembershipID,
			&row.TenantID,
			&row.PrincipalID,
			&row.Role,
			&row.Status,
			&row.InvitedEmail,
			&row.InvitedAt,
			&row.JoinedAt,
			&row.Email,
			&row.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", mapPostgresError(err))
	}

	return result, nil
}

func (s *membershipStore) FindPendingInvite(ctx context.Context, tenantID uuid.UUID, email string) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM tenant_members
		WHERE tenant_id = $1 AND status = 'invited' AND lower(invited_email) = lower($2)
		ORDER BY invited_at DESC NULLS LAST
		LIMIT 1
	`
	return s.getOne(ctx, query, tenantID, email)
}

func (s *membershipStore) FindByPrincipal(ctx context.Context, tenantID, principalID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM tenant_members
		WHERE tenant_id = $1 AND principal_id = $2
	`
	return s.getOne(ctx, query, tenantID, principalID)
}

func (s *membershipStore) CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM tenant_members
		WHERE tenant_id = $1 AND role = 'owner' AND status = 'active'
	`

	var count int
	if err := s.tx.QueryRow(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", mapPostgresError(err))
	}
	return count, nil
}

// Update writes the mutable fields of a membership.
func (s *membershipStore) Update(ctx context.Context, m *models.Membership) error {
	query := `
		UPDATE tenant_members SET
			principal_id = $2,
			role = $3,
			status = $4,
			invited_email = $5,
			invited_at = $6,
			joined_at = $7
		WHERE membership_id = $1
	`

	result, err := s.tx.Exec(ctx, query,
		m.MembershipID,
		m.PrincipalID,
		m.Role,
		m.Status,
		m.InvitedEmail,
		m.InvitedAt,
		m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	log.Debug().
		Str("membership_id", m.MembershipID.String()).
		Str("status", string(m.Status)).
		Msg("Updated membership")

	return nil
}

func (s *membershipStore) getOne(ctx context.Context, query string, args ...any) (*models.Membership, error) {
	m, err := scanMembership(s.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", mapPostgresError(err))
	}
	return m, nil
}

func scanMembership(row pgx.Row) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(
		&m.MembershipID,
		&m.TenantID,
		&m.PrincipalID,
		&m.Role,
		&m.Status,
		&m.InvitedEmail,
		&m.InvitedAt,
		&m.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
