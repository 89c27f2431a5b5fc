// Package documents creates and manages the sequenced business documents: orders, donations
// and pledges.
//
// Submissions arrive on the public storefront path, so every create runs in a transaction bound to
// the storefront's tenant and takes its number from the numbering service in that same
// transaction.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/numbering"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/telemetry"
)

const (
	maxNameLen  = 255
	maxPhoneLen = 50
	maxNotesLen = 2000

	// amounts are stored as NUMERIC(12,3)
	amountScale = 3
)

var maxAmount = decimal.New(1, 9)

// now is replaced in tests.
var now = time.Now

// ContactInput is the submitter's details.
type ContactInput struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone,omitempty"`
	Email *string `json:"email,omitempty"`
}

func (c ContactInput) validate(field string) (models.Contact, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" || len(name) > maxNameLen {
		return models.Contact{}, apperr.Validation("%s name must be 1-%d characters", field, maxNameLen)
	}
	if c.Phone != nil && len(*c.Phone) > maxPhoneLen {
		return models.Contact{}, apperr.Validation("%s phone must be at most %d characters", field, maxPhoneLen)
	}
	if c.Email != nil && len(*c.Email) > maxNameLen {
		return models.Contact{}, apperr.Validation("%s email must be at most %d characters", field, maxNameLen)
	}
	return models.Contact{Name: name, Phone: c.Phone, Email: c.Email}, nil
}

// CommonInput holds the optional fields every submission accepts.
type CommonInput struct {
	PaymentNotes *string    `json:"payment_notes,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	VisitID      *uuid.UUID `json:"visit_id,omitempty"`
}

func (c CommonInput) validate() error {
	if c.PaymentNotes != nil && len(*c.PaymentNotes) > maxNotesLen {
		return apperr.Validation("payment notes must be at most %d characters", maxNotesLen)
	}
	if c.Notes != nil && len(*c.Notes) > maxNotesLen {
		return apperr.Validation("notes must be at most %d characters", maxNotesLen)
	}
	return nil
}

// OrderInput is a storefront order submission.
type OrderInput struct {
	Customer ContactInput       `json:"customer"`
	Items    []models.OrderItem `json:"items"`
	CommonInput
}

// DonationInput is a storefront donation submission.
type DonationInput struct {
	Donor            ContactInput    `json:"donor"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency,omitempty"`
	Campaign         *string         `json:"campaign,omitempty"`
	ReceiptRequested bool            `json:"receipt_requested"`
	CommonInput
}

// PledgeInput is a storefront pledge submission. TargetDate is a calendar date, YYYY-MM-DD.
type PledgeInput struct {
	Pledgor    ContactInput    `json:"pledgor"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	TargetDate string          `json:"target_date"`
	CommonInput
}

// SubmitOrder records an order for the storefront tenant bound to tx. The total is computed from
// the items; any client-side total is ignored.
func SubmitOrder(ctx context.Context, tx store.Tx, tenant *models.Tenant, in OrderInput) (*models.Order, error) {
	customer, err := in.Customer.validate("customer")
	if err != nil {
		return nil, err
	}
	if err := in.CommonInput.validate(); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("an order needs at least one item")
	}

	total := decimal.Zero
	for i, item := range in.Items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, apperr.Validation("item %d: name is required", i+1)
		}
		if item.Qty < 1 {
			return nil, apperr.Validation("item %d: qty must be at least 1", i+1)
		}
		if item.UnitPrice.IsNegative() || !fitsScale(item.UnitPrice) {
			return nil, apperr.Validation("item %d: unit price must be non-negative with at most %d decimal places", i+1, amountScale)
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))))
	}
	if total.GreaterThanOrEqual(maxAmount) {
		return nil, apperr.Validation("order total is too large")
	}

	meta, err := newMeta(ctx, tx, tenant, models.KindOrder, tenant.DefaultCurrency, in.CommonInput)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		DocumentMeta: *meta,
		Customer:     customer,
		Items:        in.Items,
		TotalAmount:  total,
	}
	if err := tx.Documents().CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err := linkVisit(ctx, tx, models.KindOrder, meta); err != nil {
		return nil, err
	}

	recordSubmission(ctx, models.KindOrder, meta)
	return order, nil
}

// SubmitDonation records a donation for the storefront tenant bound to tx.
func SubmitDonation(ctx context.Context, tx store.Tx, tenant *models.Tenant, in DonationInput) (*models.Donation, error) {
	donor, err := in.Donor.validate("donor")
	if err != nil {
		return nil, err
	}
	if err := in.CommonInput.validate(); err != nil {
		return nil, err
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	if in.Campaign != nil && len(*in.Campaign) > maxNameLen {
		return nil, apperr.Validation("campaign must be at most %d characters", maxNameLen)
	}
	currency, err := currencyOrDefault(in.Currency, tenant)
	if err != nil {
		return nil, err
	}

	meta, err := newMeta(ctx, tx, tenant, models.KindDonation, currency, in.CommonInput)
	if err != nil {
		return nil, err
	}

	donation := &models.Donation{
		DocumentMeta:     *meta,
		Donor:            donor,
		Amount:           in.Amount,
		Campaign:         in.Campaign,
		ReceiptRequested: in.ReceiptRequested,
	}
	if err := tx.Documents().CreateDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("failed to create donation: %w", err)
	}

	if err := linkVisit(ctx, tx, models.KindDonation, meta); err != nil {
		return nil, err
	}

	recordSubmission(ctx, models.KindDonation, meta)
	return donation, nil
}

// SubmitPledge records a pledge for the storefront tenant bound to tx. The target date must not
// be in the past.
func SubmitPledge(ctx context.Context, tx store.Tx, tenant *models.Tenant, in PledgeInput) (*models.Pledge, error) {
	pledgor, err := in.Pledgor.validate("pledgor")
	if err != nil {
		return nil, err
	}
	if err := in.CommonInput.validate(); err != nil {
		return nil, err
	}
	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}
	currency, err := currencyOrDefault(in.Currency, tenant)
	if err != nil {
		return nil, err
	}

	target, err := time.Parse(time.DateOnly, in.TargetDate)
	if err != nil {
		return nil, apperr.Validation("target date must be YYYY-MM-DD")
	}
	today := now().UTC().Truncate(24 * time.Hour)
	if target.Before(today) {
		return nil, apperr.Validation("target date must not be in the past")
	}

	meta, err := newMeta(ctx, tx, tenant, models.KindPledge, currency, in.CommonInput)
	if err != nil {
		return nil, err
	}

	pledge := &models.Pledge{
		DocumentMeta:    *meta,
		Pledgor:         pledgor,
		Amount:          in.Amount,
		TargetDate:      target,
		FulfilledAmount: decimal.Zero,
	}
	if err := tx.Documents().CreatePledge(ctx, pledge); err != nil {
		return nil, fmt.Errorf("failed to create pledge: %w", err)
	}

	if err := linkVisit(ctx, tx, models.KindPledge, meta); err != nil {
		return nil, err
	}

	recordSubmission(ctx, models.KindPledge, meta)
	return pledge, nil
}

// newMeta checks the visit reference and issues the document number.
func newMeta(ctx context.Context, tx store.Tx, tenant *models.Tenant, kind models.DocumentKind, currency string, common CommonInput) (*models.DocumentMeta, error) {
	if common.VisitID != nil {
		_, err := tx.Visits().Get(ctx, *common.VisitID)
		if errors.Is(err, store.ErrVisitNotFound) {
			return nil, apperr.Validation("unknown visit %s", *common.VisitID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load visit: %w", err)
		}
	}

	number, err := numbering.Next(ctx, tx, tenant.TenantID, kind.Prefix())
	if err != nil {
		return nil, err
	}

	return &models.DocumentMeta{
		DocumentID:   uuid.Must(uuid.NewV7()),
		TenantID:     tenant.TenantID,
		Number:       number,
		Status:       kind.InitialStatus(),
		Currency:     currency,
		PaymentNotes: common.PaymentNotes,
		Notes:        common.Notes,
		VisitID:      common.VisitID,
		CreatedAt:    now().UTC(),
	}, nil
}

func linkVisit(ctx context.Context, tx store.Tx, kind models.DocumentKind, meta *models.DocumentMeta) error {
	if meta.VisitID == nil {
		return nil
	}

	event := &models.UTMEvent{
		EventID:    uuid.Must(uuid.NewV7()),
		TenantID:   meta.TenantID,
		VisitID:    *meta.VisitID,
		EventType:  kind.UTMEventType(),
		EventRefID: meta.DocumentID,
		CreatedAt:  meta.CreatedAt,
	}
	if err := tx.Visits().CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", kind, err)
	}
	return nil
}

func recordSubmission(ctx context.Context, kind models.DocumentKind, meta *models.DocumentMeta) {
	telemetry.GetMetrics().DocumentsSubmittedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	log.Info().
		Str("tenant_id", meta.TenantID.String()).
		Str("number", meta.Number).
		Msg("Document submitted")
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be greater than 0")
	}
	if !fitsScale(amount) || amount.GreaterThanOrEqual(maxAmount) {
		return apperr.Validation("amount must be below %s with at most %d decimal places", maxAmount, amountScale)
	}
	return nil
}

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(amountScale))
}

func currencyOrDefault(currency string, tenant *models.Tenant) (string, error) {
	if currency == "" {
		return tenant.DefaultCurrency, nil
	}
	if len(currency) != 3 || strings.ToUpper(currency) != currency {
		return "", apperr.Validation("currency must be a 3 letter ISO code")
	}
	return currency, nil
}
