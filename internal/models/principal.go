package models

import (
	"time"

	"github.com/google/uuid"
)

// Principal is an authenticated identity, independent of any tenant.
// Principals are provisioned lazily the first time a verified credential presents their subject.
type Principal struct {
	PrincipalID uuid.UUID // UUIDv7
	Subject     string    // External identity subject ("sub" claim), unique
	Email       string    // Unique
	Name        string    // Display name
	Active      bool      // Inactive principals are refused with Forbidden

	CreatedAt time.Time
	UpdatedAt time.Time
}
