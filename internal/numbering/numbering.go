// Package numbering issues human-readable document numbers of the form PREFIX-NNNNN.
//
// Sequences are independent per (tenant, prefix). Callers serialize on a transaction-scoped
// advisory lock keyed by the pair, then take max+1 over the existing numbers, so concurrent
// submissions for the same tenant and document type never compute the same number while other
// tenants and types proceed in parallel. The lock is released when the surrounding transaction
// ends, which must also be the transaction that inserts the numbered document.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SequenceWidth is the zero-padded width of the numeric suffix.
	SequenceWidth = 5

	// MaxSequence is the largest sequence that fits SequenceWidth digits.
	MaxSequence = 99999
)

// ErrSequenceExhausted is returned when a (tenant, prefix) sequence has reached MaxSequence.
// It is an apperr.ErrDataIntegrity error: widening the number format is an operator decision.
var ErrSequenceExhausted = fmt.Errorf("document sequence exhausted: %w", apperr.ErrDataIntegrity)

// LockKey returns the advisory lock key for a (tenant, prefix) pair.
func LockKey(tenantID uuid.UUID, prefix string) string {
	return tenantID.String() + ":" + prefix
}

// Format renders a document number.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s-%0*d", prefix, SequenceWidth, seq)
}

// Next returns the next document number for the tenant and prefix. tx must already be bound to
// tenantID; the number is only reserved until tx ends, so the document must be inserted in tx.
//
// Returns an ErrValidation error for an unknown prefix, store.ErrMalformedNumber
// (ErrDataIntegrity) if an existing number cannot be parsed, and ErrSequenceExhausted
// (ErrDataIntegrity) past MaxSequence.
func Next(ctx context.Context, tx store.Tx, tenantID uuid.UUID, prefix string) (string, error) {
	kind, ok := models.KindForPrefix(prefix)
	if !ok {
		return "", apperr.Validation("unknown document prefix %q", prefix)
	}

	if sec := tx.Security(); !sec.HasTenant() || sec.TenantID != tenantID {
		return "", fmt.Errorf("numbering for tenant %s: %w", tenantID, store.ErrTenantNotBound)
	}

	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("prefix", prefix))

	start := time.Now()
	if err := tx.AdvisoryLock(ctx, LockKey(tenantID, prefix)); err != nil {
		return "", fmt.Errorf("failed to lock %s sequence: %w", prefix, err)
	}
	metrics.AdvisoryLockWaitDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	highest, err := tx.Documents().MaxSequence(ctx, kind, tenantID)
	if err != nil {
		if errors.Is(err, apperr.ErrDataIntegrity) {
			log.Error().
				Err(err).
				Str("tenant_id", tenantID.String()).
				Str("prefix", prefix).
				Msg("Stored document numbers are malformed, refusing to issue")
		}
		return "", err
	}

	seq := highest + 1
	if seq > MaxSequence {
		log.Error().
			Str("tenant_id", tenantID.String()).
			Str("prefix", prefix).
			Msg("Document sequence exhausted, refusing to issue")
		return "", fmt.Errorf("%s for tenant %s: %w", prefix, tenantID, ErrSequenceExhausted)
	}

	number := Format(prefix, seq)
	metrics.DocumentNumbersIssuedTotal.Add(ctx, 1, attrs)

	log.Debug().
		Str("tenant_id", tenantID.String()).
		Str("prefix", prefix).
		Str("number", number).
		Msg("Issued document number")

	return number, nil
}
