package numbering

import (
	"context"
	"errors"
	"sort"
	"sync"
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

func createTenant(t *testing.T, st store.Store, slug string) uuid.UUID {
	t.Helper()

	tenantID := uuid.Must(uuid.NewV7())
	err := st.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Tenants().Create(ctx, &models.Tenant{
			TenantID:        tenantID,
			Name:            slug,
			Slug:            slug,
			Active:          true,
			DefaultCurrency: models.DefaultCurrency,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		})
	})
	require.NoError(t, err)
	return tenantID
}

func newOrder(tenantID uuid.UUID, number string) *models.Order {
	return &models.Order{
		DocumentMeta: models.DocumentMeta{
			DocumentID: uuid.Must(uuid.NewV7()),
			TenantID:   tenantID,
			Number:     number,
			Status:     models.StatusPending,
			Currency:   models.DefaultCurrency,
			CreatedAt:  time.Now(),
		},
		Customer:    models.Contact{Name: "Customer"},
		Items:       []models.OrderItem{{Name: "Item", Qty: 1, UnitPrice: decimal.NewFromInt(1)}},
		TotalAmount: decimal.NewFromInt(1),
	}
}

func newDonation(tenantID uuid.UUID, number string) *models.Donation {
	return &models.Donation{
		DocumentMeta: models.DocumentMeta{
			DocumentID: uuid.Must(uuid.NewV7()),
			TenantID:   tenantID,
			Number:     number,
			Status:     models.StatusPending,
			Currency:   models.DefaultCurrency,
			CreatedAt:  time.Now(),
		},
		Donor:  models.Contact{Name: "Donor"},
		Amount: decimal.NewFromInt(10),
	}
}

// issueOrder takes the next ORD number and inserts an order with it in one transaction.
func issueOrder(ctx context.Context, st store.Store, tenantID uuid.UUID) (string, error) {
	var number string
	err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetTenant(ctx, tenantID); err != nil {
			return err
		}
		n, err := Next(ctx, tx, tenantID, models.PrefixOrder)
		if err != nil {
			return err
		}
		number = n
		return tx.Documents().CreateOrder(ctx, newOrder(tenantID, n))
	})
	return number, err
}

func TestFormat(t *testing.T) {
	require.Equal(t, "ORD-00001", Format("ORD", 1))
	require.Equal(t, "DON-00042", Format("DON", 42))
	require.Equal(t, "PLG-99999", Format("PLG", 99999))
}

func TestNext_SequentialTransactions(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	tenantID := createTenant(t, st, "acme")

	for _, want := range []string{"ORD-00001", "ORD-00002", "ORD-00003"} {
		got, err := issueOrder(ctx, st, tenantID)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestNext_ConcurrentCallersAreGapless(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	tenantID := createTenant(t, st, "acme")

	const callers = 25

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := issueOrder(ctx, st, tenantID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, n)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)

	expected := make([]string, 0, callers)
	for i := 1; i <= callers; i++ {
		expected = append(expected, Format(models.PrefixOrder, i))
	}
	sort.Strings(numbers)
	require.Equal(t, expected, numbers)
}

func TestNext_SequencesAreIndependent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	tenantA := createTenant(t, st, "tenant-a")
	tenantB := createTenant(t, st, "tenant-b")

	for range 3 {
		_, err := issueOrder(ctx, st, tenantA)
		require.NoError(t, err)
	}

	t.Run("other tenant starts at one", func(t *testing.T) {
		got, err := issueOrder(ctx, st, tenantB)
		require.NoError(t, err)
		require.Equal(t, "ORD-00001", got)
	})

	t.Run("other prefix starts at one", func(t *testing.T) {
		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantA))

			n, err := Next(ctx, tx, tenantA, models.PrefixDonation)
			require.NoError(t, err)
			require.Equal(t, "DON-00001", n)
			return tx.Documents().CreateDonation(ctx, newDonation(tenantA, n))
		})
		require.NoError(t, err)

		got, err := issueOrder(ctx, st, tenantA)
		require.NoError(t, err)
		require.Equal(t, "ORD-00004", got)
	})
}

func TestNext_RollbackDoesNotLeaveGap(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	tenantID := createTenant(t, st, "acme")

	_, err := issueOrder(ctx, st, tenantID)
	require.NoError(t, err)

	boom := errors.New("payment link failed")
	err = st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.SetTenant(ctx, tenantID))
		n, err := Next(ctx, tx, tenantID, models.PrefixOrder)
		require.NoError(t, err)
		require.NoError(t, tx.Documents().CreateOrder(ctx, newOrder(tenantID, n)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := issueOrder(ctx, st, tenantID)
	require.NoError(t, err)
	require.Equal(t, "ORD-00002", got)
}

func TestNext_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed stored number", func(t *testing.T) {
		st := memory.New()
		tenantID := createTenant(t, st, "acme")

		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantID))
			require.NoError(t, tx.Documents().CreateOrder(ctx, newOrder(tenantID, "ORD-00001")))
			require.NoError(t, tx.Documents().CreateOrder(ctx, newOrder(tenantID, "ORD-ABCDE")))

			_, err := Next(ctx, tx, tenantID, models.PrefixOrder)
			return err
		})
		require.ErrorIs(t, err, apperr.ErrDataIntegrity)
		require.ErrorIs(t, err, store.ErrMalformedNumber)
	})

	t.Run("unknown prefix", func(t *testing.T) {
		st := memory.New()
		tenantID := createTenant(t, st, "acme")

		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantID))
			_, err := Next(ctx, tx, tenantID, "INV")
			return err
		})
		require.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("tenant not bound", func(t *testing.T) {
		st := memory.New()
		tenantID := createTenant(t, st, "acme")

		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := Next(ctx, tx, tenantID, models.PrefixOrder)
			return err
		})
		require.ErrorIs(t, err, store.ErrTenantNotBound)
	})

	t.Run("bound to another tenant", func(t *testing.T) {
		st := memory.New()
		tenantA := createTenant(t, st, "tenant-a")
		tenantB := createTenant(t, st, "tenant-b")

		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantA))
			_, err := Next(ctx, tx, tenantB, models.PrefixOrder)
			return err
		})
		require.ErrorIs(t, err, store.ErrTenantNotBound)
	})

	t.Run("sequence exhausted", func(t *testing.T) {
		st := memory.New()
		tenantID := createTenant(t, st, "acme")

		err := st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantID))
			require.NoError(t, tx.Documents().CreateOrder(ctx, newOrder(tenantID, Format(models.PrefixOrder, MaxSequence))))
			_, err := Next(ctx, tx, tenantID, models.PrefixOrder)
			return err
		})
		require.ErrorIs(t, err, ErrSequenceExhausted)
		require.ErrorIs(t, err, apperr.ErrDataIntegrity)
	})

	t.Run("lock wait honours context", func(t *testing.T) {
		st := memory.New()
		tenantID := createTenant(t, st, "acme")

		holding := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- st.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
				if err := tx.AdvisoryLock(ctx, LockKey(tenantID, models.PrefixOrder)); err != nil {
					return err
				}
				close(holding)
				<-release
				return nil
			})
		}()
		<-holding

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := st.InTx(waitCtx, func(ctx context.Context, tx store.Tx) error {
			require.NoError(t, tx.SetTenant(ctx, tenantID))
			_, err := Next(ctx, tx, tenantID, models.PrefixOrder)
			return err
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		require.NoError(t, <-done)

		got, err := issueOrder(ctx, st, tenantID)
		require.NoError(t, err)
		require.Equal(t, "ORD-00001", got)
	})
}
