package service

import (
	"context"
	"time"
)

// RunSessionJanitor purges sessions that ended more than retention ago,
// checking every interval, until ctx is done.
func (e *CATEngine) RunSessionJanitor(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		e.logger.Info("Session janitor disabled", "retention", retention, "interval", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.PurgeFinishedSessions(e.now().Add(-retention)); n > 0 {
				e.logger.Debug("Janitor pass", "purged", n)
			}
		}
	}
}
