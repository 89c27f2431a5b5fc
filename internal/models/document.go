package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind identifies one of the sequenced business document types.
// Each kind has its own per-tenant number sequence.
type DocumentKind string

const (
	KindOrder    DocumentKind = "order"
	KindDonation DocumentKind = "donation"
	KindPledge   DocumentKind = "pledge"
)

// Document number prefixes.
const (
	PrefixOrder    = "ORD"
	PrefixDonation = "DON"
	PrefixPledge   = "PLG"
)

// DocumentKinds lists every sequenced document kind.
var DocumentKinds = []DocumentKind{KindOrder, KindDonation, KindPledge}

// Prefix returns the document number prefix for the kind.
func (k DocumentKind) Prefix() string {
	switch k {
	case KindOrder:
		return PrefixOrder
	case KindDonation:
		return PrefixDonation
	case KindPledge:
		return PrefixPledge
	default:
		return ""
	}
}

// UTMEventType returns the UTM event type recorded when a document of this kind is created.
func (k DocumentKind) UTMEventType() UTMEventType {
	return UTMEventType(k)
}

// KindForPrefix maps a document number prefix back to its kind.
func KindForPrefix(prefix string) (DocumentKind, bool) {
	for _, k := range DocumentKinds {
		if k.Prefix() == prefix {
			return k, true
		}
	}
	return "", false
}

// DocumentStatus is a state in a document kind's status machine.
type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusConfirmed DocumentStatus = "confirmed"
	StatusFulfilled DocumentStatus = "fulfilled"
	StatusCancelled DocumentStatus = "cancelled"

	StatusReceived  DocumentStatus = "received"
	StatusReceipted DocumentStatus = "receipted"

	StatusPledged            DocumentStatus = "pledged"
	StatusPartiallyFulfilled DocumentStatus = "partially_fulfilled"
	StatusLapsed             DocumentStatus = "lapsed"
)

// statusMachines holds the allowed transitions for each kind. States missing from a kind's map,
// but listed in its states, are terminal.
var statusMachines = map[DocumentKind]map[DocumentStatus][]DocumentStatus{
	KindOrder: {
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusFulfilled, StatusCancelled},
	},
	KindDonation: {
		StatusPending:  {StatusReceived, StatusCancelled},
		StatusReceived: {StatusReceipted, StatusCancelled},
	},
	KindPledge: {
		StatusPledged:            {StatusPartiallyFulfilled, StatusLapsed},
		StatusPartiallyFulfilled: {StatusFulfilled, StatusLapsed},
	},
}

var statusSets = map[DocumentKind][]DocumentStatus{
	KindOrder:    {StatusPending, StatusConfirmed, StatusFulfilled, StatusCancelled},
	KindDonation: {StatusPending, StatusReceived, StatusReceipted, StatusCancelled},
	KindPledge:   {StatusPledged, StatusPartiallyFulfilled, StatusFulfilled, StatusLapsed},
}

// InitialStatus returns the status new documents of this kind are created with.
func (k DocumentKind) InitialStatus() DocumentStatus {
	if k == KindPledge {
		return StatusPledged
	}
	return StatusPending
}

// Statuses returns every status valid for the kind.
func (k DocumentKind) Statuses() []DocumentStatus {
	return statusSets[k]
}

// ValidStatus reports whether s belongs to the kind's status machine.
func (k DocumentKind) ValidStatus(s DocumentStatus) bool {
	for _, v := range statusSets[k] {
		if v == s {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from the given status. Terminal states return nil.
func (k DocumentKind) NextStatuses(from DocumentStatus) []DocumentStatus {
	return statusMachines[k][from]
}

// CanTransition reports whether from -> to is an allowed transition for the kind.
func (k DocumentKind) CanTransition(from, to DocumentStatus) bool {
	for _, next := range k.NextStatuses(from) {
		if next == to {
			return true
		}
	}
	return false
}

// Contact holds the submitter's details for a document.
type Contact struct {
	Name  string
	Phone *string
	Email *string
}

// DocumentMeta holds the fields shared by every sequenced document.
type DocumentMeta struct {
	DocumentID   uuid.UUID // UUIDv7
	TenantID     uuid.UUID
	Number       string // PREFIX-NNNNN, unique per tenant and kind
	Status       DocumentStatus
	Currency     string
	PaymentLink  *string
	PaymentNotes *string
	Notes        *string
	VisitID      *uuid.UUID

	CreatedAt time.Time
	UpdatedAt *time.Time
}

// OrderItem is a single order line. Items are stored as a JSON array.
type OrderItem struct {
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order is a storefront purchase request.
type Order struct {
	DocumentMeta
	Customer    Contact
	Items       []OrderItem
	TotalAmount decimal.Decimal
}

// Donation is a one-off gift.
type Donation struct {
	DocumentMeta
	Donor            Contact
	Amount           decimal.Decimal
	Campaign         *string
	ReceiptRequested bool
}

// Pledge is a promise to give by a target date.
type Pledge struct {
	DocumentMeta
	Pledgor         Contact
	Amount          decimal.Decimal
	TargetDate      time.Time // Date only, UTC midnight
	FulfilledAmount decimal.Decimal
}

// DocumentSummary is the list projection shared by all kinds.
type DocumentSummary struct {
	DocumentID   uuid.UUID
	Kind         DocumentKind
	Number       string
	ContactName  string
	ContactPhone *string
	Amount       decimal.Decimal
	Currency     string
	Status       DocumentStatus
	Campaign     *string    // Donations only
	TargetDate   *time.Time // Pledges only
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
