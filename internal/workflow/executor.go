package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"interact/internal/logging"
	"interact/internal/pipeline"
	"interact/internal/services"
	"interact/internal/tasks"
)

// StageRunner executes a single stage for a job.
type StageRunner interface {
	RunStage(ctx context.Context, job Job, stage tasks.Stage) error
}

// StageRunnerFunc adapts a function to StageRunner.
type StageRunnerFunc func(ctx context.Context, job Job, stage tasks.Stage) error

// RunStage calls f.
func (f StageRunnerFunc) RunStage(ctx context.Context, job Job, stage tasks.Stage) error {
	return f(ctx, job, stage)
}

// CommandStageRunner runs the inSPIRE binary once per stage.
type CommandStageRunner struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
}

// RunStage invokes "<binary> --pipeline <stage> --config_file <home>/config.yml".
func (r CommandStageRunner) RunStage(ctx context.Context, job Job, stage tasks.Stage) error {
	if r.Binary == "" {
		return services.Wrap(services.ErrConfiguration, "workflow", "run stage", "inspire binary not configured", nil)
	}
	cmd := exec.CommandContext(ctx, r.Binary,
		"--pipeline", stage.ID,
		"--config_file", filepath.Join(job.Home, pipeline.ConfigFileName),
	)
	cmd.Dir = job.Home
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "workflow", "run stage", stage.ID, err)
	}
	return nil
}

// Executor runs a job's stages in-process.
type Executor struct {
	coordinator *Coordinator
	runner      StageRunner
	logger      *slog.Logger
}

// NewExecutor builds an Executor that drives stages through runner.
func NewExecutor(coordinator *Coordinator, runner StageRunner) *Executor {
	return &Executor{
		coordinator: coordinator,
		runner:      runner,
		logger:      logging.NewComponentLogger(coordinator.logger, "executor"),
	}
}

// Run takes the job through the queue and its tracked stages. The job must
// already have a task tracker. The job leaves the queue on every return path.
func (e *Executor) Run(ctx context.Context, job Job) (err error) {
	entries, err := tasks.Read(ctx, job.Home)
	if err != nil {
		return fmt.Errorf("load stages: %w", err)
	}
	if len(entries) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "run job", "job has no stages", nil)
	}
	stages := make([]tasks.Stage, 0, len(entries))
	for _, entry := range entries {
		stage, _ := tasks.Lookup(entry.TaskID)
		stage.Name = entry.TaskName
		stages = append(stages, stage)
	}

	c := e.coordinator
	if err := c.Admit(ctx, job); err != nil {
		return err
	}
	defer func() {
		finishCtx := context.WithoutCancel(ctx)
		if finishErr := c.Finish(finishCtx, job); finishErr != nil && err == nil {
			err = finishErr
		}
	}()

	if err := c.WaitForTurn(ctx, job); err != nil {
		return err
	}
	if _, err := c.Begin(ctx, job); err != nil {
		return err
	}

	for _, stage := range stages {
		stageErr := e.runner.RunStage(ctx, job, stage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if stageErr != nil {
			stageCtx := services.WithStage(services.WithJobID(ctx, job.ID), stage.ID)
			logging.WarnWithContext(logging.WithContext(stageCtx, e.logger), "stage returned an error", "stage_error",
				logging.Error(stageErr))
		}
		recErr := c.Record(ctx, job, stage.ID, stageErr == nil)
		if recErr != nil && !errors.Is(recErr, ErrStageFailed) {
			return recErr
		}
		if stageErr != nil && stage.Blocking {
			return fmt.Errorf("%w: %s: %v", ErrBlockingFailure, stage.ID, stageErr)
		}
	}
	return nil
}
