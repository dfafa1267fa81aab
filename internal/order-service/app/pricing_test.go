package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports/portstest"
)

func price(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func TestPriceAuthority_Resolve(t *testing.T) {
	products := portstest.NewProducts(
		domain.Product{ID: "P1", NameRU: "Диван", Price: price(150000), IsActive: true},
		domain.Product{ID: "P2", NameUZ: "Stol", IsActive: true},
		domain.Product{ID: "OLD", NameRU: "Старый шкаф", Price: price(10), IsActive: false},
	)
	pa := NewPriceAuthority(products)
	ctx := context.Background()

	t.Run("all active", func(t *testing.T) {
		got, err := pa.Resolve(ctx, []string{"P1", "P2"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.True(t, got["P2"].AuthoritativePrice().IsZero(), "null price resolves to zero")
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := pa.Resolve(ctx, []string{"X", "Y"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("one missing", func(t *testing.T) {
		_, err := pa.Resolve(ctx, []string{"P1", "GONE"})
		require.ErrorIs(t, err, domain.ErrNotFound)
		var perr *domain.ProductError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "GONE", perr.ProductID)
	})

	t.Run("inactive", func(t *testing.T) {
		_, err := pa.Resolve(ctx, []string{"P1", "OLD"})
		require.ErrorIs(t, err, domain.ErrProductUnavailable)
		var perr *domain.ProductError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "OLD", perr.ProductID)
		assert.Equal(t, "Старый шкаф", perr.Name)
	})

	t.Run("empty id set skips the store", func(t *testing.T) {
		before := products.Calls
		got, err := pa.Resolve(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, before, products.Calls)
	})
}

func TestPriceAuthority_SingleBatchedRead(t *testing.T) {
	products := portstest.NewProducts(
		domain.Product{ID: "P1", Price: price(1), IsActive: true},
		domain.Product{ID: "P2", Price: price(2), IsActive: true},
	)
	_, err := NewPriceAuthority(products).Resolve(context.Background(), []string{"P1", "P2"})
	require.NoError(t, err)
	assert.Equal(t, 1, products.Calls)
}

func TestPriceAuthority_StoreError(t *testing.T) {
	products := portstest.NewProducts()
	products.Err = portstest.ErrInjected

	_, err := NewPriceAuthority(products).Resolve(context.Background(), []string{"P1"})
	assert.ErrorIs(t, err, portstest.ErrInjected)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
