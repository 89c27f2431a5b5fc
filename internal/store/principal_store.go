package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
)

// Sentinel errors for principal store operations
var (
	ErrPrincipalNotFound      = fmt.Errorf("principal %w", apperr.ErrNotFound)
	ErrPrincipalAlreadyExists = fmt.Errorf("principal already exists: %w", apperr.ErrConflict)
)

// PrincipalStore manages principals. Principals are global and not subject to row-level isolation.
type PrincipalStore interface {
	// Get retrieves a principal by ID.
	// Returns ErrPrincipalNotFound if the principal doesn't exist.
	Get(ctx context.Context, principalID uuid.UUID) (*models.Principal, error)

	// GetBySubject retrieves a principal by external identity subject.
	// Returns ErrPrincipalNotFound if the principal doesn't exist.
	GetBySubject(ctx context.Context, subject string) (*models.Principal, error)

	// GetByEmail retrieves a principal by email.
	// Returns ErrPrincipalNotFound if the principal doesn't exist.
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)

	// CreateIfAbsent inserts the principal unless one with the same subject or email already
	// exists, in which case it does nothing. It never fails on a duplicate, so concurrent
	// first requests for the same subject are safe. Returns true when a row was inserted.
	CreateIfAbsent(ctx context.Context, principal *models.Principal) (bool, error)
}
