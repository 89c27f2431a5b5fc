package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied to tenants and documents created without an explicit currency.
const DefaultCurrency = "KWD"

// DefaultPlanName is the plan attached to newly created tenants when it exists.
const DefaultPlanName = "Free"

// Tenant is an isolated customer account and the unit of data partitioning.
// Tenants are globally visible: they are read before any security context exists.
type Tenant struct {
	TenantID        uuid.UUID  // UUIDv7
	Name            string
	Slug            string     // Unique public identifier used by the storefront
	Active          bool
	DefaultCurrency string     // ISO 4217
	PlanID          *uuid.UUID // Optional FK to plans

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Plan describes a subscription tier. Plans are global and read-only at runtime.
type Plan struct {
	PlanID       uuid.UUID
	Name         string
	AITokenQuota int
	PriceAmount  decimal.Decimal
	Currency     string
	MaxMembers   int
	CreatedAt    time.Time
}
