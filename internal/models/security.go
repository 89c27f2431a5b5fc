package models

import "github.com/google/uuid"

// SecurityContext is the transaction-scoped (tenant, principal) pair that row-level isolation
// consults. A zero TenantID or PrincipalID means the attribute is unbound, which matches no rows.
type SecurityContext struct {
	TenantID    uuid.UUID
	PrincipalID uuid.UUID
}

// HasTenant reports whether a tenant is bound.
func (s SecurityContext) HasTenant() bool {
	return s.TenantID != uuid.Nil
}

// HasPrincipal reports whether a principal is bound.
func (s SecurityContext) HasPrincipal() bool {
	return s.PrincipalID != uuid.Nil
}
