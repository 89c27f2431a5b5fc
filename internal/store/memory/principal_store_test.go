package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
)

func TestPrincipalStore(t *testing.T) {
	ctx := context.Background()
	st := New()

	alice := &models.Principal{
		PrincipalID: uuid.Must(uuid.NewV7()),
		Subject:     "sub-alice",
		Email:       "alice@example.com",
		Name:        "Alice",
		Active:      true,
	}

	require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		inserted, err := tx.Principals().CreateIfAbsent(ctx, alice)
		require.True(t, inserted)
		return err
	}))

	t.Run("lookups", func(t *testing.T) {
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			got, err := tx.Principals().Get(ctx, alice.PrincipalID)
			require.NoError(t, err)
			require.Equal(t, "Alice", got.Name)

			got, err = tx.Principals().GetBySubject(ctx, "sub-alice")
			require.NoError(t, err)
			require.Equal(t, alice.PrincipalID, got.PrincipalID)

			got, err = tx.Principals().GetByEmail(ctx, "ALICE@Example.com")
			require.NoError(t, err)
			require.Equal(t, alice.PrincipalID, got.PrincipalID)

			_, err = tx.Principals().GetBySubject(ctx, "sub-nobody")
			require.ErrorIs(t, err, store.ErrPrincipalNotFound)
			return nil
		}))
	})

	t.Run("returned principals are copies", func(t *testing.T) {
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			got, err := tx.Principals().Get(ctx, alice.PrincipalID)
			require.NoError(t, err)
			got.Name = "Mallory"

			again, err := tx.Principals().Get(ctx, alice.PrincipalID)
			require.NoError(t, err)
			require.Equal(t, "Alice", again.Name)
			return nil
		}))
	})

	t.Run("email registered to another subject", func(t *testing.T) {
		require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			inserted, err := tx.Principals().CreateIfAbsent(ctx, &models.Principal{
				PrincipalID: uuid.Must(uuid.NewV7()),
				Subject:     "sub-other",
				Email:       "Alice@Example.com",
				Name:        "Other",
				Active:      true,
			})
			require.NoError(t, err)
			require.False(t, inserted)

			_, err = tx.Principals().GetBySubject(ctx, "sub-other")
			require.ErrorIs(t, err, store.ErrPrincipalNotFound)
			return nil
		}))
	})
}
