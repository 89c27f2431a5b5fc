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

// visitStore implements store.VisitStore using PostgreSQL.
type visitStore struct {
	tx pgx.Tx
}

// Create inserts a visit.
func (s *visitStore) Create(ctx context.Context, v *models.Visit) error {
	query := `
		INSERT INTO visits (
			visit_id, tenant_id, session_id, ip_hash, user_agent,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term, landed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := s.tx.Exec(ctx, query,
		v.VisitID,
		v.TenantID,
		v.SessionID,
		v.IPHash,
		v.UserAgent,
		v.UTMSource,
		v.UTMMedium,
		v.UTMCampaign,
		v.UTMContent,
		v.UTMTerm,
		v.LandedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("visit_id", v.VisitID.String()).
		Str("tenant_id", v.TenantID.String()).
		Msg("Created visit")

	return nil
}

// Get retrieves a visible visit by ID.
func (s *visitStore) Get(ctx context.Context, visitID uuid.UUID) (*models.Visit, error) {
	query := `
		SELECT visit_id, tenant_id, session_id, ip_hash, user_agent,
			utm_source, utm_medium, utm_campaign, utm_content, utm_term, landed_at
		FROM visits
		WHERE visit_id = $1
	`

	var v models.Visit
	err := s.tx.QueryRow(ctx, query, visitID).Scan(
		&v.VisitID,
		&v.TenantID,
		&v.SessionID,
		&v.IPHash,
		&v.UserAgent,
		&v.UTMSource,
		&v.UTMMedium,
		&v.UTMCampaign,
		&v.UTMContent,
		&v.UTMTerm,
		&v.LandedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrVisitNotFound
		}
		return nil, fmt.Errorf("failed to get visit: %w", mapPostgresError(err))
	}

	return &v, nil
}

// CreateEvent inserts a UTM event.
func (s *visitStore) CreateEvent(ctx context.Context, e *models.UTMEvent) error {
	query := `
		INSERT INTO utm_events (
			event_id, tenant_id, visit_id, event_type, event_ref_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.tx.Exec(ctx, query,
		e.EventID,
		e.TenantID,
		e.VisitID,
		e.EventType,
		e.EventRefID,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create utm event: %w", mapPostgresError(err))
	}

	return nil
}

// ListEvents returns the visit's events, oldest first.
func (s *visitStore) ListEvents(ctx context.Context, visitID uuid.UUID) ([]*models.UTMEvent, error) {
	query := `
		SELECT event_id, tenant_id, visit_id, event_type, event_ref_id, created_at
		FROM utm_events
		WHERE visit_id = $1
		ORDER BY created_at ASC, event_id ASC
	`

	rows, err := s.tx.Query(ctx, query, visitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list utm events: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var result []*models.UTMEvent
	for rows.Next() {
		var e models.UTMEvent
		if err := rows.Scan(&e.EventID, &e.TenantID, &e.VisitID, &e.EventType, &e.EventRefID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan utm event: %w", err)
		}
		result = append(result, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating utm events: %w", mapPostgresError(err))
	}

	return result, nil
}
