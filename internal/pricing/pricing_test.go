package pricing

import (
	"testing"

	"cart-order-service/internal/membership"
	"cart-order-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var params = Params{TaxRate: 0.18, CoinRate: 0.05, Shipping: 0}

func items(lines ...model.OrderItem) []model.OrderItem { return lines }

func TestSubtotalAndTax(t *testing.T) {
	q, err := Compute(items(
		model.OrderItem{ProductID: "crystal-1", UnitPrice: 499, Quantity: 2},
	), membership.TierNone, 0, 0, params)
	require.NoError(t, err)

	assert.Equal(t, 998.0, q.Subtotal)
	// GST-inclusive: base = 998/1.18, tax is the included portion.
	assert.InDelta(t, 845.76, q.Base, 0.01)
	assert.InDelta(t, 152.24, q.Tax, 0.01)
	assert.Equal(t, 998.0, q.Total)
	assert.Equal(t, int64(0), q.MaxRedeemableCoins)
}

func TestCoinRedemption(t *testing.T) {
	// Gold, balance 1000, base ~= 2000: cap = min(2000*0.05, 1000)/0.05
	// = 2000 coins, bound by balance to 1000.
	lines := items(model.OrderItem{ProductID: "p", UnitPrice: 2360, Quantity: 1})

	q, err := Compute(lines, membership.TierGold, 1000, 1000, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), q.MaxRedeemableCoins)
	assert.Equal(t, 50.0, q.CoinsDiscount)
	assert.Equal(t, 2310.0, q.Total)

	// One coin over the cap is rejected with no partial result applied.
	_, err = Compute(lines, membership.TierGold, 1000, 1001, params)
	assert.ErrorIs(t, err, ErrCoinLimitExceeded)

	_, err = Compute(lines, membership.TierGold, 1000, -1, params)
	assert.ErrorIs(t, err, ErrNegativeCoins)
}

func TestRedemptionBound(t *testing.T) {
	// max * rate never exceeds pct * base, and never exceeds balance.
	for _, tier := range []string{membership.TierGold, membership.TierPlatinum, membership.TierDiamond} {
		for _, balance := range []int64{0, 10, 1000, 100000} {
			q, err := Compute(items(
				model.OrderItem{ProductID: "p", UnitPrice: 1499, Quantity: 3},
			), tier, balance, 0, params)
			require.NoError(t, err)

			pct := membership.RedemptionPercent(tier)
			assert.LessOrEqual(t, float64(q.MaxRedeemableCoins)*params.CoinRate, pct*q.Base+1e-6)
			assert.LessOrEqual(t, q.MaxRedeemableCoins, balance)
		}
	}
}

func TestTierDiscountFlag(t *testing.T) {
	lines := items(model.OrderItem{ProductID: "p", UnitPrice: 1000, Quantity: 1})

	q, err := Compute(lines, membership.TierDiamond, 0, 0, params)
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.Discount, "discount stays off by default")

	flagged := params
	flagged.DiscountEnabled = true
	q, err = Compute(lines, membership.TierDiamond, 0, 0, flagged)
	require.NoError(t, err)
	assert.Equal(t, 100.0, q.Discount)
	assert.Equal(t, 900.0, q.Total)
}

func TestTotalClampedAtZero(t *testing.T) {
	flagged := params
	flagged.DiscountEnabled = true

	// Tiny order, huge redeemable balance relative to it.
	q, err := Compute(items(
		model.OrderItem{ProductID: "p", UnitPrice: 1, Quantity: 1},
	), membership.TierDiamond, 1000000, 3, flagged)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.Total, 0.0)
}

func TestShippingAdded(t *testing.T) {
	p := params
	p.Shipping = 49
	q, err := Compute(items(
		model.OrderItem{ProductID: "p", UnitPrice: 100, Quantity: 2},
	), membership.TierNone, 0, 0, p)
	require.NoError(t, err)
	assert.Equal(t, 249.0, q.Total)
}

func TestEmptyCart(t *testing.T) {
	q, err := Compute(nil, membership.TierGold, 500, 0, params)
	require.NoError(t, err)
	assert.Equal(t, 0.0, q.Subtotal)
	assert.Equal(t, 0.0, q.Total)
	assert.Equal(t, int64(0), q.MaxRedeemableCoins)
}
