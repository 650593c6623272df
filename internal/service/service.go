// Package service implements the user-facing operations of the sync
// engine. Every operation writes locally first, queues remote work through
// the outbox and then nudges the orchestrator; none of them waits on the
// network beyond the immediate-sync timeout.
package service

import (
	"context"
	"time"

	"github.com/moodtune/moodtune-sync/internal/worker"
)

// SyncScheduler is the slice of the orchestrator the services drive.
type SyncScheduler interface {
	ScheduleProfileReconciliation() bool
	ScheduleInterestsSync() bool
	SyncEmotionsNow(ctx context.Context) worker.Result
	CancelAllWork()
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
