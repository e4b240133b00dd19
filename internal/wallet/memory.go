package wallet

import (
	"context"
	"sync"
)

// MemoryLedger is the in-process fallback used when no Redis address is
// configured, and the ledger of choice in tests.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int64)}
}

func (l *MemoryLedger) Balance(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *MemoryLedger) Redeem(_ context.Context, userID string, coins int64) error {
	if coins <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if coins > l.balances[userID] {
		return ErrInsufficientBalance
	}
	l.balances[userID] -= coins
	return nil
}

func (l *MemoryLedger) Restore(_ context.Context, userID string, coins int64) error {
	if coins <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += coins
	return nil
}

func (l *MemoryLedger) SetBalance(_ context.Context, userID string, coins int64) error {
	if coins < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = coins
	return nil
}
