package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.InteractHome) == "" {
		if value, ok := os.LookupEnv("INTERACT_HOME"); ok && strings.TrimSpace(value) != "" {
			c.Paths.InteractHome = strings.TrimSpace(value)
		} else {
			c.Paths.InteractHome = defaultInteractHome
		}
	}
	if c.Paths.InteractHome, err = expandPath(c.Paths.InteractHome); err != nil {
		return fmt.Errorf("paths.interact_home: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.ServerAddress = strings.TrimSpace(c.Server.ServerAddress)
	if c.Server.ServerAddress == "" {
		c.Server.ServerAddress = defaultServerAddress
	}
	c.Server.Mode = strings.TrimSpace(c.Server.Mode)
	c.Server.FileserverName = strings.TrimSpace(c.Server.FileserverName)
}

func (c *Config) normalizePipeline() error {
	var err error
	c.Pipeline.InspireBinary = strings.TrimSpace(c.Pipeline.InspireBinary)
	if c.Pipeline.InspireBinary == "" {
		c.Pipeline.InspireBinary = defaultInspireBinary
	}
	c.Pipeline.InteractBinary = strings.TrimSpace(c.Pipeline.InteractBinary)
	if c.Pipeline.InteractBinary == "" {
		c.Pipeline.InteractBinary = defaultInteractBinary
	}
	if c.Pipeline.FraggerPath, err = expandPath(strings.TrimSpace(c.Pipeline.FraggerPath)); err != nil {
		return fmt.Errorf("pipeline.fragger_path: %w", err)
	}
	if c.Pipeline.NetMHCpan, err = expandPath(strings.TrimSpace(c.Pipeline.NetMHCpan)); err != nil {
		return fmt.Errorf("pipeline.netmhcpan: %w", err)
	}
	c.Pipeline.ScriptMode = strings.ToLower(strings.TrimSpace(c.Pipeline.ScriptMode))
	if c.Pipeline.ScriptMode == "" {
		c.Pipeline.ScriptMode = defaultScriptMode
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
