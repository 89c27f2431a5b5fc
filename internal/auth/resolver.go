package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/telemetry"
)

const (
	placeholderEmailDomain = "placeholder.local"
	unknownName            = "Unknown"
)

// Resolver maps a bearer credential to a durable principal, provisioning it on first sight.
type Resolver struct {
	verifier Verifier
}

// NewResolver creates a resolver that verifies credentials with verifier.
func NewResolver(verifier Verifier) *Resolver {
	return &Resolver{verifier: verifier}
}

// Resolve verifies credential and returns its principal.
//
// Fails with apperr.ErrUnauthorized when the credential is missing or does not verify, and with
// apperr.ErrForbidden when the principal is inactive. Concurrent first requests for the same
// subject both succeed; only one of them inserts.
func (r *Resolver) Resolve(ctx context.Context, tx store.Tx, credential string) (*models.Principal, error) {
	metrics := telemetry.GetMetrics()

	if credential == "" {
		metrics.IdentityFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "missing")))
		return nil, apperr.Unauthorized("missing credential")
	}

	claims, err := r.verifier.Verify(ctx, credential)
	if err != nil {
		metrics.IdentityFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalid")))
		log.Warn().Err(err).Msg("Failed to verify credential")
		return nil, err
	}

	principal, err := tx.Principals().GetBySubject(ctx, claims.Subject)
	if errors.Is(err, store.ErrPrincipalNotFound) {
		principal, err = r.provision(ctx, tx, claims)
	}
	if err != nil {
		return nil, err
	}

	if !principal.Active {
		metrics.IdentityFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "inactive")))
		return nil, apperr.Forbidden("principal is inactive")
	}

	return principal, nil
}

func (r *Resolver) provision(ctx context.Context, tx store.Tx, claims *Claims) (*models.Principal, error) {
	now := time.Now().UTC()
	candidate := &models.Principal{
		PrincipalID: uuid.Must(uuid.NewV7()),
		Subject:     claims.Subject,
		Email:       provisionedEmail(claims),
		Name:        provisionedName(claims),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	inserted, err := tx.Principals().CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to provision principal: %w", err)
	}

	if inserted {
		telemetry.GetMetrics().PrincipalsProvisionedTotal.Add(ctx, 1)
		log.Info().
			Str("principal_id", candidate.PrincipalID.String()).
			Msg("Provisioned principal")
		return candidate, nil
	}

	// lost a race with a concurrent first request, or the email belongs to another subject
	principal, err := tx.Principals().GetBySubject(ctx, claims.Subject)
	if errors.Is(err, store.ErrPrincipalNotFound) {
		return nil, apperr.Conflict("email %s is registered to another identity", candidate.Email)
	}
	return principal, err
}

func provisionedEmail(claims *Claims) string {
	if email := strings.TrimSpace(claims.Email); email != "" {
		return strings.ToLower(email)
	}
	return claims.Subject + "@" + placeholderEmailDomain
}

func provisionedName(claims *Claims) string {
	switch {
	case claims.Name != "":
		return claims.Name
	case claims.Email != "":
		return claims.Email
	default:
		return unknownName
	}
}
