package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"interact/internal/api"
	"interact/internal/workflow"
)

// jobFlags identify one job on the command line.
type jobFlags struct {
	user    string
	project string
	jobID   int
}

func (f *jobFlags) bind(cmd *cobra.Command, requireID bool) {
	cmd.Flags().StringVar(&f.user, "user", "", "Project owner")
	cmd.Flags().StringVar(&f.project, "project", "", "Project name")
	cmd.Flags().IntVar(&f.jobID, "job-id", 0, "Job id (the job script's pid)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("project")
	if requireID {
		_ = cmd.MarkFlagRequired("job-id")
	}
}

func (f *jobFlags) job(c *workflow.Coordinator) (workflow.Job, error) {
	return c.Job(f.user, f.project, f.jobID)
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueWaitCommand(ctx))
	queueCmd.AddCommand(newQueueUpdateCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a job to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				job, err := flags.job(env.coordinator)
				if err != nil {
					return err
				}
				return env.coordinator.Admit(cmd.Context(), job)
			})
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func newQueueWaitCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Block until the job reaches the front of the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				job, err := flags.job(env.coordinator)
				if err != nil {
					return err
				}
				return env.coordinator.WaitForTurn(cmd.Context(), job)
			})
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func newQueueUpdateCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var task string
	var result int

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Record a stage result in the task tracker",
		Long: "Record the exit status of a pipeline stage. --task start marks the first stage running. " +
			"A nonzero --result exits 1 so job scripts can stop after blocking stages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				job, err := flags.job(env.coordinator)
				if err != nil {
					return err
				}
				if task == "start" {
					_, err := env.coordinator.Begin(cmd.Context(), job)
					return err
				}
				return env.coordinator.Record(cmd.Context(), job, task, result == 0)
			})
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().StringVar(&task, "task", "", "Stage id, or \"start\"")
	cmd.Flags().IntVar(&result, "result", 0, "Stage exit status")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a finished job from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				job, err := flags.job(env.coordinator)
				if err != nil {
					return err
				}
				return env.coordinator.Finish(cmd.Context(), job)
			})
		},
	}
	flags.bind(cmd, true)
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				entries, err := env.store.List(cmd.Context())
				if err != nil {
					return err
				}
				items := api.FromQueueEntries(entries)
				if asJSON {
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.Itoa(item.Position), item.User, item.Project, strconv.Itoa(item.JobID), item.Status,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"#", "User", "Project", "Job ID", "Task Status"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Cancel every queued job and empty the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv("interact", func(env *appEnv) error {
				cancelled, err := env.runner.ClearQueue(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue cleared. %d job(s) cancelled.\n", cancelled)
				return nil
			})
		},
	}
}
