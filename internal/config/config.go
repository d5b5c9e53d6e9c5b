package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	InteractHome string `toml:"interact_home"`
	LogDir       string `toml:"log_dir"`
}

// Server contains configuration for the web front end.
type Server struct {
	Bind           string `toml:"bind"`
	ServerAddress  string `toml:"server_address"`
	Mode           string `toml:"mode"`
	FileserverName string `toml:"fileserver_name"`
}

// Pipeline contains configuration for the external inSPIRE tool and the
// generated job scripts.
type Pipeline struct {
	InspireBinary  string `toml:"inspire_binary"`
	InteractBinary string `toml:"interact_binary"`
	FraggerPath    string `toml:"fragger_path"`
	FraggerMemory  int    `toml:"fragger_memory"`
	MaxCPUs        int    `toml:"max_cpus"`
	NetMHCpan      string `toml:"netmhcpan"`
	ScriptMode     string `toml:"script_mode"`
}

// Queue contains configuration for the global job queue.
type Queue struct {
	Backend           string `toml:"backend"`
	PollInterval      int    `toml:"poll_interval"`
	ReconcileInterval int    `toml:"reconcile_interval"`
}

// Runner contains configuration for job launch confirmation.
type Runner struct {
	ConfirmAttempts int `toml:"confirm_attempts"`
	ConfirmDelayMS  int `toml:"confirm_delay_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
	JobCancelled   bool   `toml:"job_cancelled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for interact.
//
// Configuration sections by subsystem:
//   - Paths: interact home and log directory
//   - Server: web bind address and links rendered into pages
//   - Pipeline: inSPIRE binary, search engine resources, job script mode
//   - Queue: queue backend and polling cadence
//   - Runner: launch confirmation retries
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Queue         Queue         `toml:"queue"`
	Runner        Runner        `toml:"runner"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/interact/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Unknown keys are rejected.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: unrecognised key: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("interact.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the interact home layout and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InteractHome, c.ProjectsDir(), c.LocksDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProjectsDir returns the root directory holding per-user project folders.
func (c *Config) ProjectsDir() string {
	return filepath.Join(c.Paths.InteractHome, "projects")
}

// LocksDir returns the directory holding the shared queue file.
func (c *Config) LocksDir() string {
	return filepath.Join(c.Paths.InteractHome, "locks")
}

// ProjectHome returns the job home for a user's project.
func (c *Config) ProjectHome(user, project string) string {
	return filepath.Join(c.ProjectsDir(), user, project)
}

// BaseURL returns the address rendered into page links and status
// messages, e.g. http://127.0.0.1:5000.
func (c *Config) BaseURL() string {
	port := "5000"
	if _, p, err := net.SplitHostPort(c.Server.Bind); err == nil && p != "" && p != "0" {
		port = p
	}
	return "http://" + net.JoinHostPort(c.Server.ServerAddress, port)
}

// NativeScripts reports whether job scripts delegate the whole job to a
// single interact process instead of one shell step per stage.
func (c *Config) NativeScripts() bool {
	return c.Pipeline.ScriptMode == ScriptModeNative
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
