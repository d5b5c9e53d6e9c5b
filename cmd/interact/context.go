package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"interact/internal/config"
	"interact/internal/logging"
	"interact/internal/notifications"
	"interact/internal/pipeline"
	"interact/internal/queue"
	"interact/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// scriptConfigPath is the --config value job scripts pass back to interact.
func (c *commandContext) scriptConfigPath() string {
	if !c.configExists {
		return ""
	}
	return c.configPath
}

func (c *commandContext) logger(name string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// appEnv bundles what most subcommands need. close releases the store.
type appEnv struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       queue.Store
	notifier    notifications.Service
	runner      *pipeline.Runner
	coordinator *workflow.Coordinator
}

func (s *appEnv) close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (c *commandContext) withEnv(logName string, fn func(*appEnv) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(logName)
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	notifier := notifications.NewService(cfg)
	svc := &appEnv{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifier,
		runner: pipeline.NewRunner(cfg, store, logger,
			pipeline.WithNotifier(notifier),
			pipeline.WithConfigPath(c.scriptConfigPath()),
		),
		coordinator: workflow.NewCoordinator(cfg, store, logger, workflow.WithNotifier(notifier)),
	}
	defer svc.close()
	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
