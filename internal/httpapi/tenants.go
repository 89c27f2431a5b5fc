package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/tenancy"
)

type createTenantRequest struct {
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	DefaultCurrency string `json:"default_currency,omitempty"`
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

func (s *Server) handleCreateTenant(ctx context.Context, tx store.Tx, r *http.Request, principal *models.Principal) (int, any, error) {
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, nil, err
	}

	tenant, owner, err := tenancy.CreateTenant(ctx, tx, principal, tenancy.CreateTenantInput{
		Name:            req.Name,
		Slug:            req.Slug,
		DefaultCurrency: req.DefaultCurrency,
	})
	if err != nil {
		return 0, nil, err
	}

	return http.StatusCreated, createTenantResponse{
		Tenant:     newTenantResponse(tenant),
		Membership: newMembershipResponse(owner),
	}, nil
}

func (s *Server) handleCurrentTenant(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	tenant, err := tenancy.CurrentTenant(ctx, tx)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, newTenantResponse(tenant), nil
}

func (s *Server) handleListMembers(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	members, err := tenancy.ListMembers(ctx, tx)
	if err != nil {
		return 0, nil, err
	}

	resp := make([]membershipResponse, 0, len(members))
	for _, m := range members {
		item := newMembershipResponse(&m.Membership)
		item.Email = m.Email
		item.Name = m.Name
		resp = append(resp, item)
	}

	return http.StatusOK, resp, nil
}

func (s *Server) handleInviteMember(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		return 0, nil, err
	}

	invite, err := tenancy.InviteMember(ctx, tx, tenancy.InviteInput{
		Email: req.Email,
		Role:  models.Role(req.Role),
	})
	if err != nil {
		return 0, nil, err
	}

	return http.StatusCreated, newMembershipResponse(invite), nil
}

// handleAcceptInvite takes the inviting tenant from TenantHeader; the caller has no membership
// there yet, so the tenant cannot be bound the usual way.
func (s *Server) handleAcceptInvite(ctx context.Context, tx store.Tx, r *http.Request, principal *models.Principal) (int, any, error) {
	hint := r.Header.Get(TenantHeader)
	if hint == "" {
		return 0, nil, apperr.Validation("%s header is required", TenantHeader)
	}

	membership, err := tenancy.AcceptInvite(ctx, tx, principal, hint)
	if err != nil {
		return 0, nil, err
	}

	return http.StatusOK, newMembershipResponse(membership), nil
}

func (s *Server) handleRemoveMember(ctx context.Context, tx store.Tx, r *http.Request, _ *models.Principal) (int, any, error) {
	membershipID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return 0, nil, apperr.NotFound("membership not found")
	}

	if err := tenancy.RemoveMember(ctx, tx, membershipID); err != nil {
		return 0, nil, err
	}

	return http.StatusNoContent, nil, nil
}
