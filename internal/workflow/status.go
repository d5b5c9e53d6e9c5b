package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"interact/internal/liveness"
	"interact/internal/pipeline"
	"interact/internal/queue"
	"interact/internal/services"
	"interact/internal/tasks"
	"interact/internal/textutil"
)

// Phase is what the status page shows for a project.
type Phase string

const (
	// PhaseRunning means the job is alive and at the front of the queue.
	PhaseRunning Phase = "running"
	// PhaseQueued means the job is alive and waiting behind other jobs.
	PhaseQueued Phase = "queued"
	// PhaseReady means the job is gone and its key output exists.
	PhaseReady Phase = "ready"
	// PhaseFailed means the job is gone without its key output.
	PhaseFailed Phase = "failed"
	// PhaseIdle means the project has never been run.
	PhaseIdle Phase = "idle"
)

// Files whose presence marks a finished job as successful.
const (
	ReportFileName     = "inspire-report.html"
	CandidatesFileName = "potentialEpitopeCandidates.xlsx"
)

// Snapshot is a point-in-time view of one project's job.
type Snapshot struct {
	User    string
	Project string
	Phase   Phase
	State   liveness.State
	// JobID is the recorded pid, or 0.
	JobID int
	// Position is the job's 0-based place in the queue, or -1.
	Position int
	Queue    []queue.Entry
	Tasks    []tasks.Entry
}

// Current returns the running stage, if any.
func (s Snapshot) Current() (tasks.Entry, bool) {
	return tasks.Current(s.Tasks)
}

// SelectVisible reports whether the project searched a host and a pathogen
// proteome, which adds the candidate outputs to its results.
func SelectVisible(home string) bool {
	for _, name := range []string{pipeline.ProteomeSelectName, "proteomeSelect_file_list.txt"} {
		if _, err := os.Stat(filepath.Join(home, name)); err == nil {
			return true
		}
	}
	return false
}

// KeyOutput returns the file whose presence marks a completed job for the
// project at home.
func KeyOutput(home string) string {
	if SelectVisible(home) {
		return filepath.Join(home, pipeline.OutputDirName, "epitope", CandidatesFileName)
	}
	return filepath.Join(home, pipeline.OutputDirName, ReportFileName)
}

// Snapshot reads the pid record, queue and tracker for user/project.
//
// A job whose tracker still shows pending stages may not have written its
// pid yet, so a clear reading is retried with the runner's confirm settings
// before the job is treated as gone.
func (c *Coordinator) Snapshot(ctx context.Context, user, project string) (Snapshot, error) {
	snap := Snapshot{User: user, Project: project, Position: -1}
	for _, seg := range [][2]string{{"user", user}, {"project", project}} {
		if err := textutil.ValidateSegment(seg[0], seg[1]); err != nil {
			return snap, services.Wrap(services.ErrValidation, "workflow", "snapshot", "", err)
		}
	}
	home := c.cfg.ProjectHome(user, project)

	entries, err := tasks.Read(ctx, home)
	if err != nil {
		return snap, fmt.Errorf("read task status: %w", err)
	}
	snap.Tasks = entries

	var checker liveness.Checker
	if pending(entries) {
		checker = liveness.Checker{Attempts: c.cfg.Runner.ConfirmAttempts, Delay: c.settleDelay}
	}
	if snap.State, err = checker.Status(ctx, home, liveness.KindInspire); err != nil {
		return snap, err
	}
	if snap.State == liveness.StateWaiting {
		if snap.JobID, err = checker.JobID(ctx, home, liveness.KindInspire); err != nil {
			return snap, err
		}
	}

	if err := c.readQueue(ctx, &snap); err != nil {
		return snap, err
	}
	// A live job that is not queued yet is between writing its pid and
	// joining the queue.
	if snap.State == liveness.StateWaiting && snap.Position < 0 && c.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-time.After(c.settleDelay):
		}
		if err := c.readQueue(ctx, &snap); err != nil {
			return snap, err
		}
	}

	switch {
	case snap.State == liveness.StateWaiting && snap.Position == 0:
		snap.Phase = PhaseRunning
	case snap.State == liveness.StateWaiting:
		snap.Phase = PhaseQueued
	case fileExists(KeyOutput(home)):
		snap.Phase = PhaseReady
	case len(entries) == 0:
		snap.Phase = PhaseIdle
	default:
		snap.Phase = PhaseFailed
	}
	return snap, nil
}

func (c *Coordinator) readQueue(ctx context.Context, snap *Snapshot) error {
	q, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list queue: %w", err)
	}
	snap.Queue = q
	snap.Position = -1
	for i, e := range q {
		if snap.JobID > 0 && e.TaskID == snap.JobID {
			snap.Position = i
			break
		}
	}
	return nil
}

func pending(entries []tasks.Entry) bool {
	for _, e := range entries {
		if e.Status == tasks.StatusQueued || e.Status == tasks.StatusRunning {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
