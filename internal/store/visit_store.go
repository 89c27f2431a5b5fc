package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
)

// Sentinel errors for visit store operations
var (
	ErrVisitNotFound = fmt.Errorf("visit %w", apperr.ErrNotFound)
)

// VisitStore manages anonymous visits and their UTM events. All operations are tenant-scoped.
type VisitStore interface {
	// Create inserts a visit.
	Create(ctx context.Context, v *models.Visit) error

	// Get retrieves a visible visit by ID.
	// Returns ErrVisitNotFound if it doesn't exist or is not visible.
	Get(ctx context.Context, visitID uuid.UUID) (*models.Visit, error)

	// CreateEvent inserts a UTM event.
	// Returns ErrVisitNotFound if the visit doesn't exist.
	CreateEvent(ctx context.Context, e *models.UTMEvent) error

	// ListEvents returns the visit's events, oldest first.
	ListEvents(ctx context.Context, visitID uuid.UUID) ([]*models.UTMEvent, error)
}
