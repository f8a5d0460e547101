package shared

import (
	"context"
	"log/slog"
)

// Invalidator drops cached read models after a mutation commits.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Invalidate bumps inv when present and logs failures; a failed bump only
// widens the staleness window to the cache TTL.
func Invalidate(ctx context.Context, inv Invalidator, logger *slog.Logger) {
	if inv == nil {
		return
	}
	if err := inv.Bump(ctx); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("invalidate dashboard cache", slog.Any("error", err))
	}
}
