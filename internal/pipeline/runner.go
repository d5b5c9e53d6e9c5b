package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"interact/internal/config"
	"interact/internal/liveness"
	"interact/internal/logging"
	"interact/internal/notifications"
	"interact/internal/queue"
	"interact/internal/services"
	"interact/internal/tasks"
	"interact/internal/textutil"
)

var (
	// ErrAlreadyRunning means the project's job script is still alive.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrAlreadyQueued means the project already has a queue entry.
	ErrAlreadyQueued = errors.New("job already queued")
)

// Messages returned by Cancel.
const (
	MessageNothingRunning = "No task was running. Please refresh the page."
	MessageCancelled      = "Task cancelled. Please refresh the page."
)

// Submission describes a launched job.
type Submission struct {
	JobID     int
	StatusURL string
	Stages    []tasks.Stage
}

// Runner launches and cancels job scripts.
type Runner struct {
	cfg        *config.Config
	store      queue.Store
	logger     *slog.Logger
	notifier   notifications.Service
	checker    liveness.Checker
	configPath string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithConfigPath makes generated scripts pass --config path to interact.
func WithConfigPath(path string) Option {
	return func(r *Runner) { r.configPath = path }
}

// WithNotifier sets the notification service used for cancellations.
func WithNotifier(n notifications.Service) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// NewRunner builds a Runner over store.
func NewRunner(cfg *config.Config, store queue.Store, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "runner"),
		notifier: notifications.NewNoop(),
		checker: liveness.Checker{
			Attempts: cfg.Runner.ConfirmAttempts,
			Delay:    time.Duration(cfg.Runner.ConfirmDelayMS) * time.Millisecond,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StatusURL returns the status page for a project's inSPIRE job.
func (r *Runner) StatusURL(user, project string) string {
	return fmt.Sprintf("%s/interact/%s/%s/inspire", r.cfg.BaseURL(), user, project)
}

// Submit admits, prepares and launches a job for req. ErrAlreadyRunning and
// ErrAlreadyQueued are informational; the returned Submission still carries
// the status URL.
func (r *Runner) Submit(ctx context.Context, req RunRequest) (Submission, error) {
	if err := textutil.ValidateSegment("user", req.User); err != nil {
		return Submission{}, services.Wrap(services.ErrValidation, "runner", "submit", "", err)
	}
	if err := textutil.ValidateSegment("project", req.Project); err != nil {
		return Submission{}, services.Wrap(services.ErrValidation, "runner", "submit", "", err)
	}
	ctx = services.WithProject(ctx, req.User, req.Project)
	logger := logging.WithContext(ctx, r.logger)

	home := r.cfg.ProjectHome(req.User, req.Project)
	sub := Submission{StatusURL: r.StatusURL(req.User, req.Project)}
	if info, err := os.Stat(home); err != nil || !info.IsDir() {
		return sub, services.Wrap(services.ErrNotFound, "runner", "submit", "project does not exist", err)
	}

	state, err := liveness.Status(home, liveness.KindInspire)
	if err != nil {
		return sub, fmt.Errorf("check running job: %w", err)
	}
	if state == liveness.StateWaiting {
		return sub, ErrAlreadyRunning
	}
	queued, err := r.store.Contains(ctx, req.User, req.Project)
	if err != nil {
		return sub, fmt.Errorf("check queue: %w", err)
	}
	if queued {
		return sub, ErrAlreadyQueued
	}

	settings, err := Prepare(r.cfg, home, req)
	if err != nil {
		return sub, err
	}
	sub.Stages = tasks.Subset(settings)
	if err := tasks.Init(ctx, home, sub.Stages); err != nil {
		return sub, fmt.Errorf("init task status: %w", err)
	}

	// A rerun must not pick up the previous run's formatted results.
	stale := filepath.Join(home, OutputDirName, staleFormattedFile)
	if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return sub, fmt.Errorf("remove stale results: %w", err)
	}
	if err := os.Remove(liveness.PIDPath(home, liveness.KindInspire)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return sub, fmt.Errorf("remove stale pid record: %w", err)
	}

	script, err := WriteScript(Script{
		Mode:           r.cfg.Pipeline.ScriptMode,
		InteractBinary: r.cfg.Pipeline.InteractBinary,
		InspireBinary:  r.cfg.Pipeline.InspireBinary,
		ConfigPath:     r.configPath,
		ProjectHome:    home,
		User:           req.User,
		Project:        req.Project,
		Stages:         sub.Stages,
	})
	if err != nil {
		return sub, err
	}

	pid, err := launch(script, home)
	if err != nil {
		return sub, services.Wrap(services.ErrExternalTool, "runner", "launch", "start job script", err)
	}
	sub.JobID = pid

	state, err = r.checker.Status(ctx, home, liveness.KindInspire)
	if err != nil {
		return sub, fmt.Errorf("confirm job start: %w", err)
	}
	if state == liveness.StateClear {
		return sub, services.Wrap(services.ErrExternalTool, "runner", "launch", fmt.Sprintf("job script %d never recorded its pid", pid), nil)
	}

	logger.Info("job launched",
		logging.Event("job_launched"),
		logging.JobID(pid),
		logging.Int("stages", len(sub.Stages)),
		logging.String("script", script),
	)
	return sub, nil
}

// launch starts bash script in its own process group with output going to
// the job log, and reaps it in the background.
func launch(script, home string) (int, error) {
	logFile, err := os.OpenFile(filepath.Join(home, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open job log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command("bash", script)
	cmd.Dir = home
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return cmd.Process.Pid, nil
}

// Cancel stops a job. With jobID > 0 that pid is signalled and user/project
// may be empty, in which case they are resolved from the queue. Otherwise the
// pid recorded in the project home is used. The returned message is meant
// for the user; a job that is not running is not an error.
func (r *Runner) Cancel(ctx context.Context, user, project string, jobID int) (string, error) {
	if user == "" && jobID > 0 {
		entry, ok, err := r.store.Lookup(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("resolve job %d: %w", jobID, err)
		}
		if ok {
			user, project = entry.User, entry.Project
		}
	}

	var home string
	if user != "" {
		if err := textutil.ValidateSegment("user", user); err != nil {
			return "", services.Wrap(services.ErrValidation, "runner", "cancel", "", err)
		}
		if err := textutil.ValidateSegment("project", project); err != nil {
			return "", services.Wrap(services.ErrValidation, "runner", "cancel", "", err)
		}
		home = r.cfg.ProjectHome(user, project)
	}

	var pids []int
	switch {
	case jobID > 0:
		pids = []int{jobID}
	case home != "":
		recorded, err := liveness.ReadPIDs(home, liveness.KindInspire)
		if errors.Is(err, fs.ErrNotExist) {
			return MessageNothingRunning, nil
		}
		if err != nil {
			return "", err
		}
		pids = recorded
	}
	if len(pids) == 0 {
		return MessageNothingRunning, nil
	}

	ctx = services.WithProject(services.WithJobID(ctx, pids[0]), user, project)
	logger := logging.WithContext(ctx, r.logger)

	killed := false
	for _, pid := range pids {
		if err := terminate(pid); err != nil {
			logger.Debug("signal job failed", logging.Int("pid", pid), logging.Error(err))
			continue
		}
		killed = true
	}
	if !killed {
		return MessageNothingRunning, nil
	}

	if err := r.store.Dequeue(ctx, pids[0]); err != nil {
		return "", fmt.Errorf("remove cancelled job from queue: %w", err)
	}
	if home != "" {
		if _, err := os.Stat(tasks.Path(home)); err == nil {
			if err := tasks.MarkCancelled(ctx, home); err != nil {
				return "", fmt.Errorf("record cancellation: %w", err)
			}
		}
	}

	logger.Info("job cancelled", logging.Event("job_cancelled"))
	if err := r.notifier.Publish(ctx, notifications.EventJobCancelled, notifications.Payload{
		"user": user, "project": project, "jobID": pids[0],
	}); err != nil {
		logging.WarnWithContext(logger, "cancel notification failed", "notify_failed", logging.Error(err))
	}
	return MessageCancelled, nil
}

// ClearQueue cancels every queued job and empties the queue. It returns how
// many jobs were signalled.
func (r *Runner) ClearQueue(ctx context.Context) (int, error) {
	entries, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list queue: %w", err)
	}
	cancelled := 0
	for _, entry := range entries {
		msg, err := r.Cancel(ctx, entry.User, entry.Project, entry.TaskID)
		if err != nil {
			logging.WarnWithContext(r.logger, "cancel queued job failed", "queue_clear",
				logging.JobID(entry.TaskID), logging.Error(err))
			continue
		}
		if msg == MessageCancelled {
			cancelled++
		}
	}
	if err := r.store.Clear(ctx); err != nil {
		return cancelled, fmt.Errorf("clear queue: %w", err)
	}
	r.logger.Info("queue cleared",
		logging.Event("queue_cleared"),
		logging.Int("entries", len(entries)),
		logging.Int("cancelled", cancelled),
	)
	return cancelled, nil
}

// terminate sends SIGTERM to the job's process group, falling back to the
// single process when pid does not lead a group.
func terminate(pid int) error {
	if pid <= 0 || pid == os.Getpid() {
		return fmt.Errorf("refusing to signal pid %d", pid)
	}
	if err := unix.Kill(-pid, unix.SIGTERM); err == nil {
		return nil
	}
	return unix.Kill(pid, unix.SIGTERM)
}
