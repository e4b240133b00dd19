package pricing

import (
	"errors"
	"math"

	"cart-order-service/internal/membership"
	"cart-order-service/internal/model"
	"cart-order-service/internal/wallet"
)

var (
	ErrCoinLimitExceeded = errors.New("coins exceed the redeemable limit")
	ErrNegativeCoins     = errors.New("coins must not be negative")
)

// Params are the storefront pricing knobs. TaxRate is the GST rate baked
// into catalog prices (prices are tax-inclusive), CoinRate is currency units
// per Angel Coin.
type Params struct {
	TaxRate         float64
	CoinRate        float64
	Shipping        float64
	DiscountEnabled bool
}

// Quote is the full monetary breakdown for a cart. Purely derived; nothing
// here has side effects until checkout commits.
type Quote struct {
	Subtotal           float64 `json:"subtotal"`
	Base               float64 `json:"base"`
	Discount           float64 `json:"discount"`
	CoinsUsed          int64   `json:"coinsUsed"`
	CoinsDiscount      float64 `json:"coinsDiscount"`
	MaxRedeemableCoins int64   `json:"maxRedeemableCoins"`
	Tax                float64 `json:"tax"`
	Shipping           float64 `json:"shipping"`
	Total              float64 `json:"total"`
}

// Compute prices a cart for a user at the given tier and coin balance.
// coinsUsed is validated against the redeemable cap before any caller acts
// on the quote; the cap already binds to the balance.
func Compute(items []model.OrderItem, tier string, balance, coinsUsed int64, p Params) (Quote, error) {
	var subtotal float64
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}

	// Catalog prices carry GST; the redemption cap works off the
	// tax-exclusive base.
	base := subtotal / (1 + p.TaxRate)
	tax := subtotal - base

	q := Quote{
		Subtotal:           round2(subtotal),
		Base:               round2(base),
		Tax:                round2(tax),
		Shipping:           p.Shipping,
		MaxRedeemableCoins: wallet.MaxRedeemable(balance, base, tier, p.CoinRate),
	}

	if coinsUsed < 0 {
		return q, ErrNegativeCoins
	}
	if coinsUsed > q.MaxRedeemableCoins {
		return q, ErrCoinLimitExceeded
	}

	if p.DiscountEnabled {
		q.Discount = round2(subtotal * membership.DiscountPercent(tier))
	}

	q.CoinsUsed = coinsUsed
	q.CoinsDiscount = round2(float64(coinsUsed) * p.CoinRate)

	// Tax is already inside the subtotal, so the payable total is the
	// subtotal less discounts plus shipping, never negative.
	total := q.Subtotal - q.Discount - q.CoinsDiscount + q.Shipping
	q.Total = round2(math.Max(total, 0))

	return q, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
