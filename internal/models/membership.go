package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Rank orders roles for authorization checks: owner > admin > member.
// Unknown roles rank 0 and never satisfy a gate.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// MembershipStatus is the lifecycle state of a membership.
// Removal is a state, not a row deletion.
type MembershipStatus string

const (
	MembershipInvited MembershipStatus = "invited"
	MembershipActive  MembershipStatus = "active"
	MembershipRemoved MembershipStatus = "removed"
)

// Membership links a principal to a tenant with a role.
// Invited memberships may have no principal yet, only InvitedEmail.
type Membership struct {
	MembershipID uuid.UUID  // UUIDv7
	TenantID     uuid.UUID  // FK to tenants
	PrincipalID  *uuid.UUID // FK to principals, nil until an invite is accepted
	Role         Role
	Status       MembershipStatus
	InvitedEmail *string
	InvitedAt    *time.Time
	JoinedAt     *time.Time
}

// IsActive returns true when the membership grants access.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// MembershipWithPrincipal is a membership row joined with the principal's display fields.
type MembershipWithPrincipal struct {
	Membership
	Email *string
	Name  *string
}
