package scheduler

import (
	"context"
	"fmt"

	"folio/internal/logger"
)

// SessionPurger deletes expired refresh sessions
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// PurgeSessionsTask removes expired refresh sessions from the identity store
func PurgeSessionsTask(purger SessionPurger) TaskHandler {
	return HandlerFunc(func(ctx context.Context) error {
		removed, err := purger.PurgeExpiredSessions(ctx)
		if err != nil {
			return fmt.Errorf("purge expired sessions: %w", err)
		}
		if removed > 0 {
			logger.Info("Purged expired sessions", "removed", removed)
		}
		return nil
	})
}
