package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
)

// Sentinel errors for document store operations
var (
	ErrDocumentNotFound       = fmt.Errorf("document %w", apperr.ErrNotFound)
	ErrDocumentNumberConflict = fmt.Errorf("document number already used: %w", apperr.ErrConflict)
	ErrDocumentStatusChanged  = fmt.Errorf("document status changed concurrently: %w", apperr.ErrConflict)
)

// ListFilter narrows a document listing.
type ListFilter struct {
	Status *models.DocumentStatus
	Limit  int
	Offset int
}

// DocumentStore manages orders, donations and pledges. All operations are tenant-scoped.
type DocumentStore interface {
	// MaxSequence returns the highest numeric suffix among the tenant's documents of the kind,
	// or 0 when there are none. Returns ErrMalformedNumber if any stored number does not match
	// PREFIX-NNNNN for the kind's prefix.
	MaxSequence(ctx context.Context, kind models.DocumentKind, tenantID uuid.UUID) (int, error)

	// CreateOrder inserts an order.
	// Returns ErrDocumentNumberConflict if the number is already used in the tenant.
	CreateOrder(ctx context.Context, o *models.Order) error

	// CreateDonation inserts a donation.
	// Returns ErrDocumentNumberConflict if the number is already used in the tenant.
	CreateDonation(ctx context.Context, d *models.Donation) error

	// CreatePledge inserts a pledge.
	// Returns ErrDocumentNumberConflict if the number is already used in the tenant.
	CreatePledge(ctx context.Context, p *models.Pledge) error

	// Get returns the summary of a visible document.
	// Returns ErrDocumentNotFound if it doesn't exist or is not visible.
	Get(ctx context.Context, kind models.DocumentKind, documentID uuid.UUID) (*models.DocumentSummary, error)

	// List returns visible documents of the kind, newest first.
	List(ctx context.Context, kind models.DocumentKind, filter ListFilter) ([]*models.DocumentSummary, error)

	// UpdateStatus moves a visible document from status from to status to.
	// Returns ErrDocumentNotFound if it doesn't exist or is not visible, and
	// ErrDocumentStatusChanged if its status is no longer from.
	UpdateStatus(ctx context.Context, kind models.DocumentKind, documentID uuid.UUID, from, to models.DocumentStatus) error
}
