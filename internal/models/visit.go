package models

import (
	"time"

	"github.com/google/uuid"
)

// Visit is an anonymous storefront landing, keyed by the browser session id.
type Visit struct {
	VisitID     uuid.UUID
	TenantID    uuid.UUID
	SessionID   string
	IPHash      *string // Salted SHA-256 of the client IP, never the raw address
	UserAgent   *string
	UTMSource   *string
	UTMMedium   *string
	UTMCampaign *string
	UTMContent  *string
	UTMTerm     *string
	LandedAt    time.Time
}

// UTMEventType classifies what a UTM event refers to.
type UTMEventType string

const (
	UTMEventPageView UTMEventType = "page_view"
	UTMEventOrder    UTMEventType = "order"
	UTMEventDonation UTMEventType = "donation"
	UTMEventPledge   UTMEventType = "pledge"
)

// UTMEvent links a visit to something that happened during it.
type UTMEvent struct {
	EventID    uuid.UUID
	TenantID   uuid.UUID
	VisitID    uuid.UUID
	EventType  UTMEventType
	EventRefID uuid.UUID
	CreatedAt  time.Time
}
