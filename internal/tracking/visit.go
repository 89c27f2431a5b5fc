// Package tracking records anonymous storefront visits and their UTM attribution.
package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/telemetry"
)

const (
	maxSessionIDLen = 255
	maxUTMLen       = 255
	maxUserAgentLen = 1024
)

// VisitInput is a storefront landing as reported by the browser.
type VisitInput struct {
	SessionID   string  `json:"session_id"`
	UTMSource   *string `json:"utm_source,omitempty"`
	UTMMedium   *string `json:"utm_medium,omitempty"`
	UTMCampaign *string `json:"utm_campaign,omitempty"`
	UTMContent  *string `json:"utm_content,omitempty"`
	UTMTerm     *string `json:"utm_term,omitempty"`
}

// Validate checks field lengths.
func (in VisitInput) Validate() error {
	if in.SessionID == "" || len(in.SessionID) > maxSessionIDLen {
		return apperr.Validation("session_id must be 1-%d characters", maxSessionIDLen)
	}
	for name, v := range map[string]*string{
		"utm_source":   in.UTMSource,
		"utm_medium":   in.UTMMedium,
		"utm_campaign": in.UTMCampaign,
		"utm_content":  in.UTMContent,
		"utm_term":     in.UTMTerm,
	} {
		if v != nil && len(*v) > maxUTMLen {
			return apperr.Validation("%s must be at most %d characters", name, maxUTMLen)
		}
	}
	return nil
}

// Recorder records visits, hashing client addresses with a salt.
type Recorder struct {
	salt string
}

// NewRecorder creates a recorder using salt for client IP hashes.
func NewRecorder(salt string) *Recorder {
	return &Recorder{salt: salt}
}

// HashIP returns the salted SHA-256 hex digest of ip, or nil when ip is empty.
func (r *Recorder) HashIP(ip string) *string {
	if ip == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(r.salt + ":" + ip))
	digest := hex.EncodeToString(sum[:])
	return &digest
}

// RecordVisit stores a visit for the tenant bound to tx along with a page_view event.
// The raw client IP is never stored.
func (r *Recorder) RecordVisit(ctx context.Context, tx store.Tx, in VisitInput, clientIP, userAgent string) (*models.Visit, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	sec := tx.Security()
	if !sec.HasTenant() {
		return nil, store.ErrTenantNotBound
	}

	visit := &models.Visit{
		VisitID:     uuid.Must(uuid.NewV7()),
		TenantID:    sec.TenantID,
		SessionID:   in.SessionID,
		IPHash:      r.HashIP(clientIP),
		UTMSource:   in.UTMSource,
		UTMMedium:   in.UTMMedium,
		UTMCampaign: in.UTMCampaign,
		UTMContent:  in.UTMContent,
		UTMTerm:     in.UTMTerm,
		LandedAt:    time.Now().UTC(),
	}
	if ua := truncate(userAgent, maxUserAgentLen); ua != "" {
		visit.UserAgent = &ua
	}

	if err := tx.Visits().Create(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	event := &models.UTMEvent{
		EventID:    uuid.Must(uuid.NewV7()),
		TenantID:   sec.TenantID,
		VisitID:    visit.VisitID,
		EventType:  models.UTMEventPageView,
		EventRefID: visit.VisitID,
		CreatedAt:  visit.LandedAt,
	}
	if err := tx.Visits().CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record page view: %w", err)
	}

	telemetry.GetMetrics().VisitsRecordedTotal.Add(ctx, 1)
	log.Debug().
		Str("tenant_id", sec.TenantID.String()).
		Str("visit_id", visit.VisitID.String()).
		Msg("Visit recorded")

	return visit, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
