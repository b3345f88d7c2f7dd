package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"dispatchly/internal/domain/resolution"

	"github.com/redis/go-redis/v9"
)

var _ resolution.DeliveryLedger = (*RedisLedger)(nil)

// reserveScript atomically prunes entries older than a day, checks the
// trailing-day and trailing-hour counts against the caps, and records the
// delivery when both are under. Running it as one script is what makes
// check-and-reserve safe under concurrent resolutions for the same key.
//
// Window boundaries are exclusive: an entry scored exactly one window ago is
// outside the window.
var reserveScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local hour_start = ARGV[2]
local day_start = ARGV[3]
local max_hour = tonumber(ARGV[4])
local max_day = tonumber(ARGV[5])
local member = ARGV[6]
local ttl_ms = tonumber(ARGV[7])

redis.call('ZREMRANGEBYSCORE', key, '-inf', day_start)

if max_day > 0 then
  local day_count = redis.call('ZCARD', key)
  if day_count >= max_day then
    return 0
  end
end

if max_hour > 0 then
  local hour_count = redis.call('ZCOUNT', key, '(' .. hour_start, '+inf')
  if hour_count >= max_hour then
    return 0
  end
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, ttl_ms)
return 1
`)

// RedisLedger implements the delivery-count ledger on Redis sorted sets.
// Each (user, dealer, module, channel) key holds one member per delivery,
// scored by its timestamp, giving true sliding windows.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger creates a new Redis-backed delivery ledger.
func NewRedisLedger(redisAddr, password string, db int) *RedisLedger {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return &RedisLedger{client: client}
}

// NewRedisLedgerFromClient wraps an existing Redis client.
func NewRedisLedgerFromClient(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func ledgerKey(key resolution.DeliveryKey) string {
	return fmt.Sprintf("dispatchly:ledger:%s:%s:%s:%s", key.DealerID, key.Module, key.UserID, key.Channel)
}

// uniqueMember builds a collision-free sorted-set member for one delivery.
func uniqueMember(at time.Time) string {
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	return fmt.Sprintf("%d:%s", at.UnixNano(), hex.EncodeToString(randBytes))
}

// RecordSend appends a delivery to the ledger without checking caps.
func (l *RedisLedger) RecordSend(ctx context.Context, key resolution.DeliveryKey, at time.Time) error {
	k := ledgerKey(key)
	dayStart := at.Add(-24 * time.Hour)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("%d", dayStart.UnixNano()))
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(at.UnixNano()),
		Member: uniqueMember(at),
	})
	pipe.Expire(ctx, k, 24*time.Hour+time.Minute) // TTL slightly longer than window for cleanup

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording delivery: %w", err)
	}
	return nil
}

// CountSince returns the number of deliveries for the key since the given
// instant, exclusive.
func (l *RedisLedger) CountSince(ctx context.Context, key resolution.DeliveryKey, since time.Time) (int, error) {
	count, err := l.client.ZCount(ctx, ledgerKey(key),
		fmt.Sprintf("(%d", since.UnixNano()),
		"+inf",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("counting deliveries: %w", err)
	}
	return int(count), nil
}

// Reserve atomically checks the trailing 1-hour and 24-hour counts against
// the caps and records the delivery when both are under.
func (l *RedisLedger) Reserve(ctx context.Context, key resolution.DeliveryKey, maxPerHour, maxPerDay int, at time.Time) (bool, error) {
	hourStart := at.Add(-time.Hour)
	dayStart := at.Add(-24 * time.Hour)
	ttl := 24*time.Hour + time.Minute

	res, err := reserveScript.Run(ctx, l.client,
		[]string{ledgerKey(key)},
		at.UnixNano(),
		fmt.Sprintf("%d", hourStart.UnixNano()),
		fmt.Sprintf("%d", dayStart.UnixNano()),
		maxPerHour,
		maxPerDay,
		uniqueMember(at),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("reserving delivery slot: %w", err)
	}
	return res == 1, nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
