package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/store/memory"
)

func TestHashIP(t *testing.T) {
	r := NewRecorder("pepper")

	require.Nil(t, r.HashIP(""))

	sum := sha256.Sum256([]byte("pepper:198.51.100.7"))
	require.Equal(t, hex.EncodeToString(sum[:]), *r.HashIP("198.51.100.7"))

	require.NotEqual(t, *r.HashIP("198.51.100.7"), *NewRecorder("salt").HashIP("198.51.100.7"))
}

func TestRecordVisit(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	r := NewRecorder("pepper")
	tenantID := uuid.Must(uuid.NewV7())

	require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Tenants().Create(ctx, &models.Tenant{TenantID: tenantID, Name: "Acme", Slug: "acme", Active: true})
	}))

	source := "newsletter"

	t.Run("records visit and page view", func(t *testing.T) {
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantID))

			v, err := r.RecordVisit(ctx, tx, VisitInput{SessionID: "sess", UTMSource: &source}, "198.51.100.7", "agent/1.0")
			require.NoError(t, err)
			require.Equal(t, tenantID, v.TenantID)
			require.Equal(t, r.HashIP("198.51.100.7"), v.IPHash)
			require.NotContains(t, *v.IPHash, "198.51.100.7")
			require.Equal(t, "agent/1.0", *v.UserAgent)

			events, err := tx.Visits().ListEvents(ctx, v.VisitID)
			require.NoError(t, err)
			require.Len(t, events, 1)
			require.Equal(t, models.UTMEventPageView, events[0].EventType)
			return nil
		}))
	})

	t.Run("no client address", func(t *testing.T) {
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantID))

			v, err := r.RecordVisit(ctx, tx, VisitInput{SessionID: "sess"}, "", "")
			require.NoError(t, err)
			require.Nil(t, v.IPHash)
			require.Nil(t, v.UserAgent)
			return nil
		}))
	})

	t.Run("unbound tenant", func(t *testing.T) {
		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := r.RecordVisit(ctx, tx, VisitInput{SessionID: "sess"}, "", "")
			return err
		})
		require.ErrorIs(t, err, store.ErrTenantNotBound)
	})

	t.Run("validation", func(t *testing.T) {
		long := strings.Repeat("x", 256)
		for _, in := range []VisitInput{{}, {SessionID: long}, {SessionID: "s", UTMTerm: &long}} {
			err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
				require.NoError(t, tx.SetTenant(ctx, tenantID))
				_, err := r.RecordVisit(ctx, tx, in, "", "")
				return err
			})
			require.ErrorIs(t, err, apperr.ErrValidation)
		}
	})
}
