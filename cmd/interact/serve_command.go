package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interact/internal/daemon"
	"interact/internal/deps"
	"interact/internal/logging"
	"interact/internal/web"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server and queue reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			return ctx.withEnv("interact", func(env *appEnv) error {
				for _, missing := range deps.Missing(deps.Check(deps.Requirements(env.cfg))) {
					logging.WarnWithContext(env.logger, "required tool unavailable; jobs will fail", "dependency_missing",
						logging.String("tool", missing.Name),
						logging.String("detail", missing.Detail),
					)
				}
				srv, err := web.New(env.cfg, env.store, env.runner, env.coordinator, env.logger)
				if err != nil {
					return fmt.Errorf("build web server: %w", err)
				}
				d, err := daemon.New(env.cfg, env.store, srv.Handler(), env.logger)
				if err != nil {
					return err
				}
				return d.Run(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind (host:port)")
	return cmd
}
