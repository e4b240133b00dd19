package wallet

import (
	"context"
	"errors"
	"math"

	"cart-order-service/internal/membership"
)

var (
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrInvalidAmount       = errors.New("coin amount must be positive")
)

// Ledger is the per-user Angel Coin counter. Redeem is all-or-nothing; the
// balance never goes negative.
type Ledger interface {
	Balance(ctx context.Context, userID string) (int64, error)
	// Redeem decrements the balance. Fails with ErrInvalidAmount on coins <= 0
	// and ErrInsufficientBalance when coins exceed the balance; on failure the
	// balance is untouched.
	Redeem(ctx context.Context, userID string, coins int64) error
	// Restore credits coins back after a failed or abandoned payment.
	Restore(ctx context.Context, userID string, coins int64) error
	// SetBalance replaces the balance outright (admin path).
	SetBalance(ctx context.Context, userID string, coins int64) error
}

// MaxRedeemable computes how many coins may be applied against a
// tax-exclusive base amount at the given tier:
//
//	floor(min(base * redemptionPercent, balance) / coinRate)
//
// further capped at the current balance. coinRate is currency units per coin.
func MaxRedeemable(balance int64, base float64, tier string, coinRate float64) int64 {
	if balance <= 0 || base <= 0 || coinRate <= 0 {
		return 0
	}
	pct := membership.RedemptionPercent(tier)
	if pct <= 0 {
		return 0
	}
	capped := math.Min(base*pct, float64(balance))
	coins := int64(math.Floor(capped / coinRate))
	if coins > balance {
		coins = balance
	}
	return coins
}
