package documents

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/tenancy"
)

// List paging bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListParams are the caller-supplied list options. A zero Limit uses DefaultListLimit.
type ListParams struct {
	Status string
	Limit  int
	Offset int
}

// List returns the bound tenant's documents of the kind, newest first. Requires member.
func List(ctx context.Context, tx store.Tx, kind models.DocumentKind, params ListParams) ([]*models.DocumentSummary, error) {
	if _, err := tenancy.Require(ctx, tx, models.RoleMember); err != nil {
		return nil, err
	}

	filter := store.ListFilter{Limit: params.Limit, Offset: params.Offset}
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, apperr.Validation("limit must be between 1 and %d", MaxListLimit)
	}
	if filter.Offset < 0 {
		return nil, apperr.Validation("offset must not be negative")
	}

	if params.Status != "" {
		status := models.DocumentStatus(params.Status)
		if !kind.ValidStatus(status) {
			return nil, apperr.Validation("unknown %s status %q", kind, params.Status)
		}
		filter.Status = &status
	}

	return tx.Documents().List(ctx, kind, filter)
}

// Get returns a document of the bound tenant. Requires member.
func Get(ctx context.Context, tx store.Tx, kind models.DocumentKind, documentID uuid.UUID) (*models.DocumentSummary, error) {
	if _, err := tenancy.Require(ctx, tx, models.RoleMember); err != nil {
		return nil, err
	}
	return tx.Documents().Get(ctx, kind, documentID)
}

// Transition moves a document of the bound tenant to status to. Requires admin.
// A transition the kind's status machine does not allow fails with apperr.ErrValidation naming
// the allowed targets. A document whose status changed after it was read fails with
// store.ErrDocumentStatusChanged (apperr.ErrConflict).
func Transition(ctx context.Context, tx store.Tx, kind models.DocumentKind, documentID uuid.UUID, to string) (*models.DocumentSummary, error) {
	if _, err := tenancy.Require(ctx, tx, models.RoleAdmin); err != nil {
		return nil, err
	}

	target := models.DocumentStatus(to)
	if !kind.ValidStatus(target) {
		return nil, apperr.Validation("unknown %s status %q", kind, to)
	}

	doc, err := tx.Documents().Get(ctx, kind, documentID)
	if err != nil {
		return nil, err
	}

	if !kind.CanTransition(doc.Status, target) {
		return nil, apperr.Validation("cannot move %s from %s to %s; allowed: %s",
			kind, doc.Status, target, allowedTargets(kind, doc.Status))
	}

	if err := tx.Documents().UpdateStatus(ctx, kind, documentID, doc.Status, target); err != nil {
		return nil, fmt.Errorf("failed to update %s status: %w", kind, err)
	}

	log.Info().
		Str("tenant_id", tx.Security().TenantID.String()).
		Str("number", doc.Number).
		Str("from", string(doc.Status)).
		Str("to", string(target)).
		Msg("Document status changed")

	return tx.Documents().Get(ctx, kind, documentID)
}

func allowedTargets(kind models.DocumentKind, from models.DocumentStatus) string {
	next := kind.NextStatuses(from)
	if len(next) == 0 {
		return "none (terminal)"
	}

	names := make([]string, len(next))
	for i, s := range next {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
