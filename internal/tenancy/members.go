package tenancy

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

// ListMembers returns the bound tenant's non-removed memberships. Requires admin.
func ListMembers(ctx context.Context, tx store.Tx) ([]*models.MembershipWithPrincipal, error) {
	if _, err := Require(ctx, tx, models.RoleAdmin); err != nil {
		return nil, err
	}
	return tx.Memberships().ListForTenant(ctx, tx.Security().TenantID)
}

// InviteInput names who to invite and with which role.
type InviteInput struct {
	Email string
	Role  models.Role
}

// Validate normalises the email and defaults the role to member. Owners cannot be invited.
func (in *InviteInput) Validate() error {
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil {
		return apperr.Validation("invalid email address")
	}
	in.Email = strings.ToLower(addr.Address)

	if in.Role == "" {
		in.Role = models.RoleMember
	}
	if in.Role != models.RoleAdmin && in.Role != models.RoleMember {
		return apperr.Validation("role must be admin or member")
	}
	return nil
}

// InviteMember creates an invited membership in the bound tenant. Requires admin.
//
// Fails with apperr.ErrConflict when the email already belongs to a non-removed member or has a
// pending invitation. A removed member is re-invited in place.
func InviteMember(ctx context.Context, tx store.Tx, in InviteInput) (*models.Membership, error) {
	if _, err := Require(ctx, tx, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tenantID := tx.Security().TenantID
	now := time.Now().UTC()

	if _, err := tx.Memberships().FindPendingInvite(ctx, tenantID, in.Email); err == nil {
		return nil, apperr.Conflict("invitation already pending")
	} else if !errors.Is(err, store.ErrMembershipNotFound) {
		return nil, fmt.Errorf("failed to check pending invitations: %w", err)
	}

	var principalID *uuid.UUID
	target, err := tx.Principals().GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		principalID = &target.PrincipalID
	case !errors.Is(err, store.ErrPrincipalNotFound):
		return nil, fmt.Errorf("failed to look up invitee: %w", err)
	}

	if principalID != nil {
		existing, err := tx.Memberships().FindByPrincipal(ctx, tenantID, *principalID)
		switch {
		case err == nil && existing.Status != models.MembershipRemoved:
			return nil, apperr.Conflict("already a member")
		case err == nil:
			existing.Role = in.Role
			existing.Status = models.MembershipInvited
			existing.InvitedEmail = &in.Email
			existing.InvitedAt = &now
			existing.JoinedAt = nil
			if err := tx.Memberships().Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("failed to re-invite member: %w", err)
			}
			return existing, nil
		case !errors.Is(err, store.ErrMembershipNotFound):
			return nil, fmt.Errorf("failed to check membership: %w", err)
		}
	}

	invite := &models.Membership{
		MembershipID: uuid.Must(uuid.NewV7()),
		TenantID:     tenantID,
		PrincipalID:  principalID,
		Role:         in.Role,
		Status:       models.MembershipInvited,
		InvitedEmail: &in.Email,
		InvitedAt:    &now,
	}
	if err := tx.Memberships().Create(ctx, invite); err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("membership_id", invite.MembershipID.String()).
		Msg("Invited member")

	return invite, nil
}

// AcceptInvite activates principal's pending invitation to the tenant named by tenantHint.
//
// The invitation is found either by principal, when the invitee already existed at invite time,
// or by the principal's email. On success the tenant stays bound to tx; otherwise it is unbound
// again and the call fails with apperr.ErrNotFound.
func AcceptInvite(ctx context.Context, tx store.Tx, principal *models.Principal, tenantHint string) (*models.Membership, error) {
	tenantID, err := uuid.Parse(tenantHint)
	if err != nil {
		return nil, apperr.Validation("malformed tenant id")
	}

	if err := tx.SetPrincipal(ctx, principal.PrincipalID); err != nil {
		return nil, fmt.Errorf("failed to bind principal: %w", err)
	}

	invite, err := findInvite(ctx, tx, principal, tenantID)
	if err != nil {
		if rerr := tx.SetTenant(ctx, uuid.Nil); rerr != nil {
			return nil, fmt.Errorf("failed to unbind tenant: %w", rerr)
		}
		return nil, err
	}

	if err := tx.SetTenant(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("failed to bind tenant: %w", err)
	}

	now := time.Now().UTC()
	principalID := principal.PrincipalID
	invite.PrincipalID = &principalID
	invite.Status = models.MembershipActive
	invite.JoinedAt = &now

	if err := tx.Memberships().Update(ctx, invite); err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("principal_id", principalID.String()).
		Msg("Accepted invitation")

	return invite, nil
}

func findInvite(ctx context.Context, tx store.Tx, principal *models.Principal, tenantID uuid.UUID) (*models.Membership, error) {
	own, err := tx.Memberships().FindByPrincipal(ctx, tenantID, principal.PrincipalID)
	switch {
	case err == nil && own.Status == models.MembershipInvited:
		return own, nil
	case err == nil && own.IsActive():
		return nil, apperr.Conflict("already an active member")
	case err != nil && !errors.Is(err, store.ErrMembershipNotFound):
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}

	// invitations addressed only by email are visible once the tenant is bound
	if err := tx.SetTenant(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("failed to bind tenant: %w", err)
	}

	invite, err := tx.Memberships().FindPendingInvite(ctx, tenantID, principal.Email)
	if errors.Is(err, store.ErrMembershipNotFound) {
		return nil, apperr.NotFound("no pending invitation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if invite.PrincipalID != nil && *invite.PrincipalID != principal.PrincipalID {
		return nil, apperr.NotFound("no pending invitation")
	}

	return invite, nil
}

// OwnersLockKey returns the advisory lock key serializing owner removals in a tenant.
func OwnersLockKey(tenantID uuid.UUID) string {
	return "owners:" + tenantID.String()
}

// RemoveMember soft-removes a membership of the bound tenant. Requires admin.
// Removing the tenant's last active owner fails with apperr.ErrForbidden.
func RemoveMember(ctx context.Context, tx store.Tx, membershipID uuid.UUID) error {
	if _, err := Require(ctx, tx, models.RoleAdmin); err != nil {
		return err
	}

	tenantID := tx.Security().TenantID

	member, err := tx.Memberships().Get(ctx, membershipID)
	if err != nil {
		return err
	}
	// the caller's own rows in other tenants are readable, but not removable from here
	if member.TenantID != tenantID || member.Status == models.MembershipRemoved {
		return store.ErrMembershipNotFound
	}

	if member.Role == models.RoleOwner && member.IsActive() {
		// concurrent owner removals would each count the other's owner as still active
		if err := tx.AdvisoryLock(ctx, OwnersLockKey(tenantID)); err != nil {
			return err
		}
		owners, err := tx.Memberships().CountActiveOwners(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count owners: %w", err)
		}
		if owners <= 1 {
			return apperr.Forbidden("cannot remove the last owner")
		}
	}

	member.Status = models.MembershipRemoved
	if err := tx.Memberships().Update(ctx, member); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("membership_id", membershipID.String()).
		Msg("Removed member")

	return nil
}
