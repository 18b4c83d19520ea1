package auth

import (
	"context"
	"time"

	"rollcall.org/internal/obs"
)

// StartSweeper periodically purges revocation ledger entries whose expiry
// has passed. The sweep is an optimization only: Verify rejects expired
// tokens on expiry grounds before consulting the ledger, so correctness
// never depends on it. Returns when ctx is cancelled.
func StartSweeper(ctx context.Context, store CredentialStore, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := store.PurgeExpiredRevocations(ctx, time.Now())
			if err != nil {
				obs.LogEvent(map[string]any{
					"level": "error",
					"msg":   "revocation sweep failed",
					"error": err.Error(),
				})
				continue
			}
			if purged > 0 {
				obs.LogEvent(map[string]any{
					"level":  "info",
					"msg":    "revocation sweep",
					"purged": purged,
				})
			}
		}
	}
}
