package resolution

import (
	"context"
	"fmt"
	"time"
)

// ChannelRateLimiter enforces a user's per-channel throughput caps against
// the delivery ledger. Caps come from the user's stored preference; a
// channel with no configured cap is uncapped and recorded without a check.
type ChannelRateLimiter struct {
	ledger DeliveryLedger
	now    func() time.Time
}

// NewChannelRateLimiter creates a new channel rate limiter.
func NewChannelRateLimiter(ledger DeliveryLedger) *ChannelRateLimiter {
	return &ChannelRateLimiter{ledger: ledger, now: time.Now}
}

// CheckAndReserve checks the trailing-hour and trailing-day delivery counts
// for the key against the given caps and, when allowed, records the
// delivery. Check and record happen atomically inside the ledger: a true
// result means the slot is taken.
func (l *ChannelRateLimiter) CheckAndReserve(ctx context.Context, key DeliveryKey, limits RateLimit, hasLimits bool) (bool, error) {
	at := l.now()

	if !hasLimits || (limits.MaxPerHour <= 0 && limits.MaxPerDay <= 0) {
		// Uncapped: still record so the ledger stays an accurate count of
		// deliveries if caps are configured later.
		if err := l.ledger.RecordSend(ctx, key, at); err != nil {
			return false, fmt.Errorf("recording uncapped delivery: %w", err)
		}
		return true, nil
	}

	allowed, err := l.ledger.Reserve(ctx, key, limits.MaxPerHour, limits.MaxPerDay, at)
	if err != nil {
		return false, fmt.Errorf("reserving delivery slot: %w", err)
	}
	return allowed, nil
}
