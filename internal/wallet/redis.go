package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redeemScript decrements the balance only when the full amount is covered.
// Returns the new balance, or -1 when the balance is insufficient.
var redeemScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amt = tonumber(ARGV[1])
if amt > bal then
  return -1
end
return redis.call('DECRBY', KEYS[1], amt)
`)

// RedisLedger keeps each user's coin balance in a Redis counter and appends
// a journal entry per mutation for support audits.
type RedisLedger struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisLedger(addr, password string, db int, log *zap.Logger) (*RedisLedger, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis wallet ledger connected", zap.String("addr", addr))

	return &RedisLedger{client: rdb, log: log}, nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func balanceKey(userID string) string {
	return fmt.Sprintf("wallet:balance:%s", userID)
}

func journalKey(userID string) string {
	return fmt.Sprintf("wallet:journal:%s", userID)
}

type journalEntry struct {
	ID    string    `json:"id"`
	Op    string    `json:"op"`
	Coins int64     `json:"coins"`
	At    time.Time `json:"at"`
}

func (l *RedisLedger) journal(ctx context.Context, userID, op string, coins int64) {
	entry := journalEntry{
		ID:    uuid.NewString(),
		Op:    op,
		Coins: coins,
		At:    time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	// Journal writes are best-effort; the counter is the source of truth.
	if err := l.client.LPush(ctx, journalKey(userID), raw).Err(); err != nil {
		l.log.Warn("wallet journal write failed",
			zap.String("user", userID), zap.Error(err))
	}
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int64, error) {
	bal, err := l.client.Get(ctx, balanceKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return bal, err
}

func (l *RedisLedger) Redeem(ctx context.Context, userID string, coins int64) error {
	if coins <= 0 {
		return ErrInvalidAmount
	}
	res, err := redeemScript.Run(ctx, l.client, []string{balanceKey(userID)}, coins).Int64()
	if err != nil {
		return err
	}
	if res < 0 {
		return ErrInsufficientBalance
	}
	l.journal(ctx, userID, "redeem", coins)
	return nil
}

func (l *RedisLedger) Restore(ctx context.Context, userID string, coins int64) error {
	if coins <= 0 {
		return ErrInvalidAmount
	}
	if err := l.client.IncrBy(ctx, balanceKey(userID), coins).Err(); err != nil {
		return err
	}
	l.journal(ctx, userID, "restore", coins)
	return nil
}

func (l *RedisLedger) SetBalance(ctx context.Context, userID string, coins int64) error {
	if coins < 0 {
		return ErrInvalidAmount
	}
	if err := l.client.Set(ctx, balanceKey(userID), coins, 0).Err(); err != nil {
		return err
	}
	l.journal(ctx, userID, "set", coins)
	return nil
}
