package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"interact/internal/api"
	"interact/internal/liveness"
	"interact/internal/logs"
	"interact/internal/pipeline"
	"interact/internal/textutil"
	"interact/internal/workflow"
)

const followWait = 2 * time.Second

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Run, cancel, and inspect pipeline jobs",
	}

	jobCmd.AddCommand(newJobRunCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobLogCommand(ctx))

	return jobCmd
}

func newJobRunCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Queue and run every stage of a prepared job in this process",
		Long: "Run the stages listed in the project's task tracker, waiting for the job's turn in the queue. " +
			"Without --job-id the current process id is used and recorded as the project's running job.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				if flags.jobID == 0 {
					flags.jobID = os.Getpid()
				}
				job, err := flags.job(env.coordinator)
				if err != nil {
					return err
				}
				if flags.jobID == os.Getpid() {
					if err := liveness.WritePID(job.Home, liveness.KindInspire, job.ID); err != nil {
						return fmt.Errorf("record job pid: %w", err)
					}
				}
				runner := workflow.CommandStageRunner{
					Binary: env.cfg.Pipeline.InspireBinary,
					Stdout: cmd.OutOrStdout(),
					Stderr: cmd.ErrOrStderr(),
				}
				return workflow.NewExecutor(env.coordinator, runner).Run(cmd.Context(), job)
			})
		},
	}
	flags.bind(cmd, false)
	return cmd
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	var user, project string
	var jobID int
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a project's running or queued job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID <= 0 && (user == "" || project == "") {
				return errors.New("either --job-id or both --user and --project are required")
			}
			return ctx.withEnv("interact", func(env *appEnv) error {
				msg, err := env.runner.Cancel(cmd.Context(), user, project, jobID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Project owner")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().IntVar(&jobID, "job-id", 0, "Job id to cancel")
	return cmd
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	var user, project string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a project's job phase and stage progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				snap, err := env.coordinator.Snapshot(cmd.Context(), user, project)
				if err != nil {
					return err
				}
				resp := api.FromSnapshot(snap)
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project: %s/%s\n", resp.User, resp.Project)
				fmt.Fprintf(out, "Phase: %s\n", resp.Phase)
				if resp.JobID > 0 {
					fmt.Fprintf(out, "Job ID: %d\n", resp.JobID)
				}
				if resp.Position > 0 {
					fmt.Fprintf(out, "Queue position: %d\n", resp.Position)
				}
				if len(resp.Tasks) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(resp.Tasks))
				for _, task := range resp.Tasks {
					rows = append(rows, []string{strconv.Itoa(task.TaskIndex), task.TaskName, task.Status, yesNo(task.Blocking)})
				}
				fmt.Fprint(out, renderTable(
					[]string{"#", "Task", "Status", "Blocking"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Project owner")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newJobLogCommand(ctx *commandContext) *cobra.Command {
	var user, project string
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print a project's job log",
		Long:  "Print the last lines of the project's job log. With --follow, keep printing until the job exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := textutil.ValidateSegment("user", user); err != nil {
				return err
			}
			if err := textutil.ValidateSegment("project", project); err != nil {
				return err
			}
			home := cfg.ProjectHome(user, project)
			path := filepath.Join(home, pipeline.LogFileName)
			out := cmd.OutOrStdout()
			emit := func(chunk logs.Chunk) {
				for _, line := range chunk.Lines {
					fmt.Fprintln(out, line)
				}
			}

			chunk, err := logs.Tail(cmd.Context(), path, logs.Options{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			emit(chunk)
			for follow {
				chunk, err = logs.Tail(cmd.Context(), path, logs.Options{Offset: chunk.Offset, Wait: followWait})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				emit(chunk)
				if len(chunk.Lines) > 0 {
					continue
				}
				state, err := liveness.Status(home, liveness.KindInspire)
				if err != nil {
					return err
				}
				if state != liveness.StateWaiting {
					return nil
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Project owner")
	cmd.Flags().StringVar(&project, "project", "", "Project name")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing while the job runs")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
