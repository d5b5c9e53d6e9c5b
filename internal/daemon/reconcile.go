package daemon

import (
	"context"
	"fmt"
	"os"

	"interact/internal/liveness"
	"interact/internal/logging"
	"interact/internal/services"
	"interact/internal/tasks"
	"interact/internal/textutil"
)

// Reconcile removes queue entries whose job process is gone and marks the
// stage they were running as failed. It returns how many entries it removed.
func (d *Daemon) Reconcile(ctx context.Context) (int, error) {
	entries, err := d.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list queue: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if liveness.Alive(entry.TaskID) {
			continue
		}
		if err := d.store.Dequeue(ctx, entry.TaskID); err != nil {
			return removed, fmt.Errorf("dequeue job %d: %w", entry.TaskID, err)
		}
		removed++

		jobCtx := services.WithProject(services.WithJobID(ctx, entry.TaskID), entry.User, entry.Project)
		logger := logging.WithContext(jobCtx, d.logger)
		logging.WarnWithContext(logger, "removed orphaned queue entry", "queue_orphan",
			logging.String("queue_status", entry.Status),
		)
		if textutil.ValidateSegment("user", entry.User) != nil || textutil.ValidateSegment("project", entry.Project) != nil {
			continue
		}
		home := d.cfg.ProjectHome(entry.User, entry.Project)
		if _, err := os.Stat(tasks.Path(home)); err != nil {
			continue
		}
		changed, err := tasks.MarkAbandoned(jobCtx, home)
		if err != nil {
			logging.WarnWithContext(logger, "record abandoned job failed", "tracker_update_failed", logging.Error(err))
			continue
		}
		if changed {
			logger.Info("abandoned stage marked failed", logging.Event("job_abandoned"))
		}
	}
	return removed, nil
}
