package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/store/memory"
)

// asMember runs fn in a transaction bound to p's membership in tenant.
func asMember(t *testing.T, st store.Store, p *models.Principal, tenant *models.Tenant, fn func(ctx context.Context, tx store.Tx) error) error {
	t.Helper()
	return inTx(t, st, func(ctx context.Context, tx store.Tx) error {
		if _, err := NewBinder().BindTenant(ctx, tx, p, tenant.TenantID.String()); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
}

func TestCreateTenant(t *testing.T) {
	st := memory.New()
	owner := createPrincipal(t, st, "owner")

	require.NoError(t, inTx(t, st, func(ctx context.Context, tx store.Tx) error {
		return tx.Plans().Upsert(ctx, &models.Plan{
			PlanID:       uuid.Must(uuid.NewV7()),
			Name:         models.DefaultPlanName,
			AITokenQuota: 1000,
			PriceAmount:  decimal.Zero,
			Currency:     models.DefaultCurrency,
			MaxMembers:   3,
		})
	}))

	t.Run("creator becomes the active owner", func(t *testing.T) {
		require.NoError(t, inTx(t, st, func(ctx context.Context, tx store.Tx) error {
			tenant, owned, err := CreateTenant(ctx, tx, owner, CreateTenantInput{Name: "Acme", Slug: "acme"})
			require.NoError(t, err)
			require.Equal(t, models.DefaultCurrency, tenant.DefaultCurrency)
			require.NotNil(t, tenant.PlanID)
			require.Equal(t, models.RoleOwner, owned.Role)
			require.True(t, owned.IsActive())
			require.Equal(t, tenant.TenantID, tx.Security().TenantID)

			current, err := CurrentTenant(ctx, tx)
			require.NoError(t, err)
			require.Equal(t, "acme", current.Slug)
			return nil
		}))
	})

	t.Run("duplicate slug", func(t *testing.T) {
		err := inTx(t, st, func(ctx context.Context, tx store.Tx) error {
			_, _, err := CreateTenant(ctx, tx, owner, CreateTenantInput{Name: "Acme 2", Slug: "acme"})
			return err
		})
		require.ErrorIs(t, err, apperr.ErrConflict)
	})

	tests := []struct {
		name string
		in   CreateTenantInput
	}{
		{name: "empty name", in: CreateTenantInput{Name: " ", Slug: "valid-slug"}},
		{name: "short slug", in: CreateTenantInput{Name: "x", Slug: "ab"}},
		{name: "uppercase slug", in: CreateTenantInput{Name: "x", Slug: "Acme"}},
		{name: "leading hyphen", in: CreateTenantInput{Name: "x", Slug: "-acme"}},
		{name: "bad currency", in: CreateTenantInput{Name: "x", Slug: "acme-3", DefaultCurrency: "usd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inTx(t, st, func(ctx context.Context, tx store.Tx) error {
				_, _, err := CreateTenant(ctx, tx, owner, tt.in)
				return err
			})
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestInviteAndAccept(t *testing.T) {
	st := memory.New()

	owner := createPrincipal(t, st, "owner")
	member := createPrincipal(t, st, "member")
	tenant := createTenant(t, st, owner, "invites")
	addMember(t, st, owner, member, tenant, models.RoleMember)

	t.Run("members cannot invite", func(t *testing.T) {
		err := asMember(t, st, member, tenant, func(ctx context.Context, tx store.Tx) error {
			_, err := InviteMember(ctx, tx, InviteInput{Email: "x@example.com"})
			return err
		})
		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("owner role cannot be invited", func(t *testing.T) {
		err := asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
			_, err := InviteMember(ctx, tx, InviteInput{Email: "x@example.com", Role: models.RoleOwner})
			return err
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("existing member", func(t *testing.T) {
		err := asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
			_, err := InviteMember(ctx, tx, InviteInput{Email: member.Email})
			return err
		})
		require.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("email invite accepted after sign up", func(t *testing.T) {
		require.NoError(t, asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
			invite, err := InviteMember(ctx, tx, InviteInput{Email: "Newcomer@Example.com", Role: models.RoleAdmin})
			require.NoError(t, err)
			require.Nil(t, invite.PrincipalID)
			require.Equal(t, "newcomer@example.com", *invite.InvitedEmail)
			return nil
		}))

		err := asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
			_, err := InviteMember(ctx, tx, InviteInput{Email: "newcomer@example.com"})
			return err
		})
		require.ErrorIs(t, err, apperr.ErrConflict)

		newcomer := createPrincipal(t, st, "newcomer")

		require.NoError(t, inTx(t, st, func(ctx context.Context, tx store.Tx) error {
			m, err := AcceptInvite(ctx, tx, newcomer, tenant.TenantID.String())
			require.NoError(t, err)
			require.True(t, m.IsActive())
			require.Equal(t, models.RoleAdmin, m.Role)
			require.Equal(t, newcomer.PrincipalID, *m.PrincipalID)
			require.NotNil(t, m.JoinedAt)
			return nil
		}))

		require.NoError(t, asMember(t, st, newcomer, tenant, func(ctx context.Context, tx store.Tx) error {
			list, err := ListMembers(ctx, tx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			return nil
		}))
	})

	t.Run("no invitation leaves no tenant bound", func(t *testing.T) {
		outsider := createPrincipal(t, st, "outsider")

		require.NoError(t, inTx(t, st, func(ctx context.Context, tx store.Tx) error {
			_, err := AcceptInvite(ctx, tx, outsider, tenant.TenantID.String())
			require.ErrorIs(t, err, apperr.ErrNotFound)
			require.False(t, tx.Security().HasTenant())
			return nil
		}))
	})

	t.Run("accepting twice", func(t *testing.T) {
		err := inTx(t, st, func(ctx context.Context, tx store.Tx) error {
			_, err := AcceptInvite(ctx, tx, member, tenant.TenantID.String())
			return err
		})
		require.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("malformed tenant", func(t *testing.T) {
		err := inTx(t, st, func(ctx context.Context, tx store.Tx) error {
			_, err := AcceptInvite(ctx, tx, member, "nope")
			return err
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestRemoveMember(t *testing.T) {
	st := memory.New()

	owner := createPrincipal(t, st, "owner")
	coOwner := createPrincipal(t, st, "co-owner")
	admin := createPrincipal(t, st, "admin")
	member := createPrincipal(t, st, "member")

	tenant := createTenant(t, st, owner, "removals")
	adminMembership := addMember(t, st, owner, admin, tenant, models.RoleAdmin)
	memberMembership := addMember(t, st, owner, member, tenant, models.RoleMember)

	var ownerMembership *models.Membership
	require.NoError(t, asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
		var err error
		ownerMembership, err = Require(ctx, tx, models.RoleOwner)
		return err
	}))

	remove := func(as *models.Principal, membershipID uuid.UUID) error {
		return asMember(t, st, as, tenant, func(ctx context.Context, tx store.Tx) error {
			return RemoveMember(ctx, tx, membershipID)
		})
	}

	t.Run("member cannot remove", func(t *testing.T) {
		require.ErrorIs(t, remove(member, adminMembership.MembershipID), apperr.ErrForbidden)
	})

	t.Run("last owner cannot be removed", func(t *testing.T) {
		require.ErrorIs(t, remove(owner, ownerMembership.MembershipID), apperr.ErrForbidden)
		require.ErrorIs(t, remove(admin, ownerMembership.MembershipID), apperr.ErrForbidden)
	})

	t.Run("owner removal waits for the tenant owners lock", func(t *testing.T) {
		held := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				if err := tx.AdvisoryLock(ctx, OwnersLockKey(tenant.TenantID)); err != nil {
					return err
				}
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := NewBinder().BindTenant(ctx, tx, owner, tenant.TenantID.String()); err != nil {
				return err
			}
			return RemoveMember(ctx, tx, ownerMembership.MembershipID)
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		<-done
	})

	t.Run("admin removes member", func(t *testing.T) {
		require.NoError(t, remove(admin, memberMembership.MembershipID))
		require.ErrorIs(t, remove(admin, memberMembership.MembershipID), apperr.ErrNotFound)
	})

	t.Run("removed member can be re-invited", func(t *testing.T) {
		require.NoError(t, asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
			m, err := InviteMember(ctx, tx, InviteInput{Email: member.Email})
			require.NoError(t, err)
			require.Equal(t, memberMembership.MembershipID, m.MembershipID)
			require.Equal(t, models.MembershipInvited, m.Status)
			return nil
		}))
	})

	t.Run("non-last owner can be removed", func(t *testing.T) {
		require.NoError(t, asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error {
			principalID := coOwner.PrincipalID
			return tx.Memberships().Create(ctx, &models.Membership{
				MembershipID: uuid.Must(uuid.NewV7()),
				TenantID:     tenant.TenantID,
				PrincipalID:  &principalID,
				Role:         models.RoleOwner,
				Status:       models.MembershipActive,
				JoinedAt:     ownerMembership.JoinedAt,
			})
		}))

		require.NoError(t, remove(coOwner, ownerMembership.MembershipID))
		require.ErrorIs(t, asMember(t, st, owner, tenant, func(ctx context.Context, tx store.Tx) error { return nil }), apperr.ErrForbidden)
	})

	t.Run("unknown membership", func(t *testing.T) {
		require.ErrorIs(t, remove(coOwner, uuid.Must(uuid.NewV7())), apperr.ErrNotFound)
	})
}
