package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StockLockKey builds redis keys for stock row critical sections.
func StockLockKey(stockID uuid.UUID) string {
	return fmt.Sprintf("stock:%s:lock", stockID)
}

// StockLockKeys builds the lock keys for a set of stock rows.
func StockLockKeys(ids []uuid.UUID) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, StockLockKey(id))
	}
	return keys
}

// Locker serialises mutations of the same stock rows across API instances.
// A nil Locker, or one built without a redis client, runs callbacks unguarded
// and leaves row safety to the database transaction.
type Locker struct {
	client   *redislock.Client
	ttl      time.Duration
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// LockerConfig groups optional lock settings.
type LockerConfig struct {
	TTL      time.Duration
	Attempts int
	Backoff  time.Duration
}

// NewLocker wires a redislock client on top of the shared redis client.
func NewLocker(client *redis.Client, cfg LockerConfig, logger *slog.Logger) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 40
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Locker{ttl: cfg.TTL, attempts: cfg.Attempts, backoff: cfg.Backoff, logger: logger}
	if client != nil {
		l.client = redislock.New(client)
	}
	return l
}

// WithLocks obtains every key in sorted order, runs fn and releases the locks.
func (l *Locker) WithLocks(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if l == nil || l.client == nil || len(keys) == 0 {
		return fn(ctx)
	}
	ordered := uniqueSorted(keys)
	held := make([]*redislock.Lock, 0, len(ordered))
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("release stock lock", slog.String("key", held[i].Key()), slog.Any("error", err))
			}
		}
	}()
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.attempts),
	}
	for _, key := range ordered {
		lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
		if errors.Is(err, redislock.ErrNotObtained) {
			l.logger.Warn("stock lock busy", slog.String("key", key))
			return Conflict("Stock item is being updated by another request, try again")
		}
		if err != nil {
			return fmt.Errorf("obtain lock %s: %w", key, err)
		}
		held = append(held, lock)
	}
	return fn(ctx)
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
