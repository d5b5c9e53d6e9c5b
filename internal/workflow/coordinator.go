package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"interact/internal/config"
	"interact/internal/logging"
	"interact/internal/notifications"
	"interact/internal/queue"
	"interact/internal/services"
	"interact/internal/tasks"
	"interact/internal/textutil"
)

var (
	// ErrStageFailed is returned by Record when the reported stage failed.
	ErrStageFailed = errors.New("stage failed")
	// ErrBlockingFailure ends a job whose blocking stage failed.
	ErrBlockingFailure = errors.New("blocking stage failed")
	// ErrNotQueued means the job left the queue while waiting for its turn,
	// usually because it was cancelled.
	ErrNotQueued = errors.New("job is not queued")
)

// Job identifies one job process.
type Job struct {
	User    string
	Project string
	// ID is the pid of the job script.
	ID   int
	Home string
}

// Coordinator performs queue and tracker transitions for jobs.
type Coordinator struct {
	cfg          *config.Config
	store        queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration
	settleDelay  time.Duration
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets the notification service used when jobs finish.
func WithNotifier(n notifications.Service) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithPollInterval overrides the fallback queue poll used by WaitForTurn.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewCoordinator builds a Coordinator over store.
func NewCoordinator(cfg *config.Config, store queue.Store, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifications.NewNoop(),
		pollInterval: time.Duration(cfg.Queue.PollInterval) * time.Second,
		settleDelay:  time.Duration(cfg.Runner.ConfirmDelayMS) * time.Millisecond,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = time.Minute
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Job resolves user/project to a Job with the given pid.
func (c *Coordinator) Job(user, project string, id int) (Job, error) {
	if err := textutil.ValidateSegment("user", user); err != nil {
		return Job{}, services.Wrap(services.ErrValidation, "workflow", "resolve job", "", err)
	}
	if err := textutil.ValidateSegment("project", project); err != nil {
		return Job{}, services.Wrap(services.ErrValidation, "workflow", "resolve job", "", err)
	}
	if id <= 0 {
		return Job{}, services.Wrap(services.ErrValidation, "workflow", "resolve job", fmt.Sprintf("invalid job id %d", id), nil)
	}
	return Job{User: user, Project: project, ID: id, Home: c.cfg.ProjectHome(user, project)}, nil
}

func (c *Coordinator) context(ctx context.Context, job Job) (context.Context, *slog.Logger) {
	ctx = services.WithProject(services.WithJobID(ctx, job.ID), job.User, job.Project)
	return ctx, logging.WithContext(ctx, c.logger)
}

// Admit appends the job to the queue.
func (c *Coordinator) Admit(ctx context.Context, job Job) error {
	ctx, logger := c.context(ctx, job)
	if err := c.store.Enqueue(ctx, job.User, job.Project, job.ID); err != nil {
		return fmt.Errorf("admit job: %w", err)
	}
	logger.Info("job queued", logging.Event("job_queued"))
	return nil
}

// WaitForTurn blocks until the job is at the front of the queue. It re-reads
// the queue whenever the queue directory changes and at least every poll
// interval.
func (c *Coordinator) WaitForTurn(ctx context.Context, job Job) error {
	ctx, logger := c.context(ctx, job)

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if watcher, err := fsnotify.NewWatcher(); err != nil {
		logger.Debug("queue watch unavailable, polling only", logging.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(c.cfg.LocksDir()); err != nil {
			logger.Debug("queue watch unavailable, polling only", logging.Error(err))
		} else {
			events, watchErrs = watcher.Events, watcher.Errors
		}
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	announced := false
	for {
		position, err := c.position(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("wait for turn: %w", err)
		}
		switch {
		case position == 0:
			logger.Info("job reached front of queue", logging.Event("job_admitted"))
			return nil
		case position < 0:
			return ErrNotQueued
		case !announced:
			logger.Info("waiting for earlier jobs", logging.Int("ahead", position))
			announced = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if strings.HasSuffix(event.Name, ".lock") {
				continue
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Debug("queue watch error", logging.Error(err))
		}
	}
}

// position returns the job's 0-based place in the queue, or -1.
func (c *Coordinator) position(ctx context.Context, id int) (int, error) {
	entries, err := c.store.List(ctx)
	if err != nil {
		return -1, err
	}
	for i, e := range entries {
		if e.TaskID == id {
			return i, nil
		}
	}
	return -1, nil
}

// Begin marks the first stage running and labels the queue entry with it.
func (c *Coordinator) Begin(ctx context.Context, job Job) (tasks.Entry, error) {
	ctx, logger := c.context(ctx, job)
	first, err := tasks.MarkStart(ctx, job.Home)
	if err != nil {
		return tasks.Entry{}, fmt.Errorf("begin job: %w", err)
	}
	c.label(ctx, logger, job, first)
	logger.Info("job started",
		logging.Event("job_started"),
		logging.Stage(first.TaskID),
	)
	if err := c.notifier.Publish(ctx, notifications.EventJobStarted, c.payload(job)); err != nil {
		logging.WarnWithContext(logger, "start notification failed", "notify_failed", logging.Error(err))
	}
	return first, nil
}

// Record stores the outcome of stage and relabels the queue entry with the
// stage now running. A failed stage returns ErrStageFailed after recording.
func (c *Coordinator) Record(ctx context.Context, job Job, stage string, succeeded bool) error {
	ctx, logger := c.context(services.WithStage(ctx, stage), job)
	next, hasNext, err := tasks.MarkResult(ctx, job.Home, stage, succeeded)
	if err != nil {
		return fmt.Errorf("record stage %s: %w", stage, err)
	}
	if hasNext {
		c.label(ctx, logger, job, next)
	}
	if !succeeded {
		if tasks.IsBlocking(stage) {
			logging.ErrorWithContext(logger, "stage failed, skipping remaining stages", "stage_failed",
				logging.String(logging.FieldImpact, "job stops"))
		} else {
			logging.WarnWithContext(logger, "optional stage failed, continuing", "stage_failed",
				logging.String(logging.FieldImpact, "job continues without this stage's output"))
		}
		return fmt.Errorf("%w: %s", ErrStageFailed, stage)
	}
	logger.Info("stage completed", logging.Event("stage_completed"))
	return nil
}

func (c *Coordinator) label(ctx context.Context, logger *slog.Logger, job Job, entry tasks.Entry) {
	err := c.store.SetRunningLabel(ctx, job.ID, entry.TaskName)
	if errors.Is(err, queue.ErrNotFront) {
		logging.WarnWithContext(logger, "job is running but not at the front of the queue", "queue_label",
			logging.Stage(entry.TaskID))
		return
	}
	if err != nil {
		logging.WarnWithContext(logger, "update queue label failed", "queue_label", logging.Error(err))
	}
}

// Finish removes the job from the queue and reports how it ended.
func (c *Coordinator) Finish(ctx context.Context, job Job) error {
	ctx, logger := c.context(ctx, job)
	if err := c.store.Dequeue(ctx, job.ID); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	entries, err := tasks.Read(ctx, job.Home)
	if err != nil {
		logging.WarnWithContext(logger, "read task status failed", "job_finished", logging.Error(err))
		return nil
	}
	summary := tasks.Summarize(entries)
	payload := c.payload(job)
	event := notifications.EventJobCompleted
	switch failed, ok := blockingFailure(entries); {
	case summary.Cancelled:
		logger.Info("cancelled job removed from queue", logging.Event("job_finished"))
		return nil
	case ok:
		event = notifications.EventJobFailed
		payload["stage"] = failed.TaskName
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Stage(failed.TaskID))
	default:
		payload["failed"] = summary.Failed
		logger.Info("job completed",
			logging.Event("job_completed"),
			logging.Int("failed_optional", summary.Failed),
		)
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "finish notification failed", "notify_failed", logging.Error(err))
	}
	return nil
}

func (c *Coordinator) payload(job Job) notifications.Payload {
	return notifications.Payload{"user": job.User, "project": job.Project, "jobID": job.ID}
}

func blockingFailure(entries []tasks.Entry) (tasks.Entry, bool) {
	for _, e := range entries {
		if e.Status == tasks.StatusFailed && tasks.IsBlocking(e.TaskID) {
			return e, true
		}
	}
	return tasks.Entry{}, false
}
