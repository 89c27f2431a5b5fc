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

// principalStore implements store.PrincipalStore using PostgreSQL.
type principalStore struct {
	tx pgx.Tx
}

const principalColumns = `principal_id, subject, email, name, active, created_at, updated_at`

func (s *principalStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE principal_id = $1`
	return s.getOne(ctx, query, principalID)
}

func (s *principalStore) GetBySubject(ctx context.Context, subject string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE subject = $1`
	return s.getOne(ctx, query, subject)
}

func (s *principalStore) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE lower(email) = lower($1)`
	return s.getOne(ctx, query, email)
}

func (s *principalStore) getOne(ctx context.Context, query string, arg any) (*models.Principal, error) {
	var p models.Principal
	err := s.tx.QueryRow(ctx, query, arg).Scan(
		&p.PrincipalID,
		&p.Subject,
		&p.Email,
		&p.Name,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to get principal: %w", mapPostgresError(err))
	}

	return &p, nil
}

// CreateIfAbsent uses ON CONFLICT DO NOTHING: a plain unique violation would abort the
// surrounding transaction.
func (s *principalStore) CreateIfAbsent(ctx context.Context, principal *models.Principal) (bool, error) {
	query := `
		INSERT INTO principals (
			principal_id, subject, email, name, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT DO NOTHING
	`

	result, err := s.tx.Exec(ctx, query,
		principal.PrincipalID,
		principal.Subject,
		principal.Email,
		principal.Name,
		principal.Active,
		principal.CreatedAt,
		principal.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create principal: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return false, nil
	}

	log.Debug().
		Str("principal_id", principal.PrincipalID.String()).
		Msg("Created principal")

	return true, nil
}
