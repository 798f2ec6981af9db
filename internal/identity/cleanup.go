package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/tonechat/internal/shared"
	"github.com/ashureev/tonechat/internal/store"
)

// StartCleanupWorker runs a background goroutine that periodically deletes
// expired magic links and auth sessions.
func StartCleanupWorker(ctx context.Context, repo store.Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Auth cleanup worker started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				cleanupExpired(ctx, repo, time.Now())
			case <-ctx.Done():
				slog.Info("Auth cleanup worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func cleanupExpired(ctx context.Context, repo store.Repository, now time.Time) int64 {
	var deleted int64
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "cleanup expired auth", func() error {
		n, err := repo.CleanupExpired(ctx, now)
		deleted = n
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Auth cleanup interrupted by shutdown", "error", err)
			return 0
		}
		slog.Error("Auth cleanup failed", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Auth cleanup removed expired records", "count", deleted)
	}
	return deleted
}
