package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisLedger(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	l, err := NewRedisLedger(mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, mr
}

func TestRedisLedgerRedeemAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestRedisLedger(t)
	require.NoError(t, l.SetBalance(ctx, "u1", 100))

	// Rejected amounts leave the balance alone.
	assert.ErrorIs(t, l.Redeem(ctx, "u1", 0), ErrInvalidAmount)
	assert.ErrorIs(t, l.Redeem(ctx, "u1", -5), ErrInvalidAmount)
	assert.ErrorIs(t, l.Redeem(ctx, "u1", 101), ErrInsufficientBalance)

	bal, err := l.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	require.NoError(t, l.Redeem(ctx, "u1", 60))
	bal, _ = l.Balance(ctx, "u1")
	assert.Equal(t, int64(40), bal)

	require.NoError(t, l.Restore(ctx, "u1", 60))
	bal, _ = l.Balance(ctx, "u1")
	assert.Equal(t, int64(100), bal)
}

func TestRedisLedgerUnknownUser(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestRedisLedger(t)

	bal, err := l.Balance(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)

	// The script sees a missing key as balance zero.
	assert.ErrorIs(t, l.Redeem(ctx, "ghost", 1), ErrInsufficientBalance)
}

func TestRedisLedgerSetBalance(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestRedisLedger(t)

	assert.ErrorIs(t, l.SetBalance(ctx, "u1", -1), ErrInvalidAmount)

	require.NoError(t, l.SetBalance(ctx, "u1", 250))
	bal, _ := l.Balance(ctx, "u1")
	assert.Equal(t, int64(250), bal)
}

func TestRedisLedgerJournal(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedisLedger(t)
	require.NoError(t, l.SetBalance(ctx, "u1", 100))
	require.NoError(t, l.Redeem(ctx, "u1", 40))
	require.NoError(t, l.Restore(ctx, "u1", 40))

	raw, err := mr.List(journalKey("u1"))
	require.NoError(t, err)
	require.Len(t, raw, 3)

	// LPUSH keeps the newest entry first.
	var entry journalEntry
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &entry))
	assert.Equal(t, "restore", entry.Op)
	assert.Equal(t, int64(40), entry.Coins)
	assert.NotEmpty(t, entry.ID)
}
