package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/storefront/internal/models"
	"github.com/wolfeidau/storefront/internal/store"
	"github.com/wolfeidau/storefront/internal/store/memory"
)

func TestLoadPlans(t *testing.T) {
	plans, err := loadPlans("testdata/plans.yaml")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	require.Equal(t, "Free", plans[0].Name)
	require.Equal(t, models.DefaultCurrency, plans[0].Currency)
	require.True(t, plans[0].PriceAmount.IsZero())
	require.Equal(t, 3, plans[0].MaxMembers)

	require.Equal(t, "Pro", plans[1].Name)
	require.Equal(t, "9.5", plans[1].PriceAmount.String())
	require.NotEqual(t, plans[0].PlanID, plans[1].PlanID)
}

func TestLoadPlans_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "missing name", content: "plans:\n  - price: \"1\"\n", errMsg: "name is required"},
		{name: "duplicate", content: "plans:\n  - name: Free\n  - name: Free\n", errMsg: "listed twice"},
		{name: "bad price", content: "plans:\n  - name: Free\n    price: abc\n", errMsg: "invalid price"},
		{name: "negative price", content: "plans:\n  - name: Free\n    price: \"-1\"\n", errMsg: "must not be negative"},
		{name: "not yaml", content: "plans: [", errMsg: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plans.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := loadPlans(path)
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestSeedPlans(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	plans, err := loadPlans("testdata/plans.yaml")
	require.NoError(t, err)
	require.NoError(t, seedPlans(ctx, st, plans))

	// seeding again keeps the existing plan identity
	again, err := loadPlans("testdata/plans.yaml")
	require.NoError(t, err)
	require.NoError(t, seedPlans(ctx, st, again))

	require.NoError(t, st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		free, err := tx.Plans().GetByName(ctx, models.DefaultPlanName)
		require.NoError(t, err)
		require.Equal(t, plans[0].PlanID, free.PlanID)
		return nil
	}))
}
