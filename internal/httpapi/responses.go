package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wolfeidau/storefront/internal/models"
)

type principalResponse struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
}

type membershipResponse struct {
	MembershipID uuid.UUID  `json:"membership_id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	PrincipalID  *uuid.UUID `json:"principal_id,omitempty"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	InvitedEmail *string    `json:"invited_email,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Name         *string    `json:"name,omitempty"`
	InvitedAt    *time.Time `json:"invited_at,omitempty"`
	JoinedAt     *time.Time `json:"joined_at,omitempty"`
}

type meResponse struct {
	Principal   principalResponse    `json:"principal"`
	Memberships []membershipResponse `json:"memberships"`
}

type tenantResponse struct {
	TenantID        uuid.UUID  `json:"tenant_id"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	DefaultCurrency string     `json:"default_currency"`
	PlanID          *uuid.UUID `json:"plan_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type createTenantResponse struct {
	Tenant     tenantResponse     `json:"tenant"`
	Membership membershipResponse `json:"membership"`
}

type documentResponse struct {
	DocumentID   uuid.UUID       `json:"document_id"`
	Kind         string          `json:"kind"`
	Number       string          `json:"number"`
	Status       string          `json:"status"`
	ContactName  string          `json:"contact_name"`
	ContactPhone *string         `json:"contact_phone,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Campaign     *string         `json:"campaign,omitempty"`
	TargetDate   *string         `json:"target_date,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`
}

type documentListResponse struct {
	Items  []documentResponse `json:"items"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// submissionResponse is what the storefront gets back for a new document.
type submissionResponse struct {
	DocumentID uuid.UUID       `json:"document_id"`
	Number     string          `json:"number"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}

type visitResponse struct {
	VisitID uuid.UUID `json:"visit_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

func newPrincipalResponse(p *models.Principal) principalResponse {
	return principalResponse{PrincipalID: p.PrincipalID, Email: p.Email, Name: p.Name}
}

func newMembershipResponse(m *models.Membership) membershipResponse {
	return membershipResponse{
		MembershipID: m.MembershipID,
		TenantID:     m.TenantID,
		PrincipalID:  m.PrincipalID,
		Role:         string(m.Role),
		Status:       string(m.Status),
		InvitedEmail: m.InvitedEmail,
		InvitedAt:    m.InvitedAt,
		JoinedAt:     m.JoinedAt,
	}
}

func newTenantResponse(t *models.Tenant) tenantResponse {
	return tenantResponse{
		TenantID:        t.TenantID,
		Name:            t.Name,
		Slug:            t.Slug,
		DefaultCurrency: t.DefaultCurrency,
		PlanID:          t.PlanID,
		CreatedAt:       t.CreatedAt,
	}
}

func newDocumentResponse(d *models.DocumentSummary) documentResponse {
	resp := documentResponse{
		DocumentID:   d.DocumentID,
		Kind:         string(d.Kind),
		Number:       d.Number,
		Status:       string(d.Status),
		ContactName:  d.ContactName,
		ContactPhone: d.ContactPhone,
		Amount:       d.Amount,
		Currency:     d.Currency,
		Campaign:     d.Campaign,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.TargetDate != nil {
		date := d.TargetDate.Format(time.DateOnly)
		resp.TargetDate = &date
	}
	return resp
}

func newSubmissionResponse(meta models.DocumentMeta, amount decimal.Decimal) submissionResponse {
	return submissionResponse{
		DocumentID: meta.DocumentID,
		Number:     meta.Number,
		Status:     string(meta.Status),
		Amount:     amount,
		Currency:   meta.Currency,
		CreatedAt:  meta.CreatedAt,
	}
}
