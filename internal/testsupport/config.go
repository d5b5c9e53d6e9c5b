package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"interact/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InteractHome = filepath.Join(base, "home")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Queue.PollInterval = 1
	cfgVal.Runner.ConfirmDelayMS = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithQueueBackend selects the queue backend on the test config.
func WithQueueBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Backend = backend
	}
}

// WithScriptMode selects shell or native job scripts.
func WithScriptMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.ScriptMode = mode
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// points the pipeline config at them. Each stub exits with status 0 unless a
// file named "<name>.fail-<stage>" exists next to it, in which case a call
// with "--pipeline <stage>" exits 1.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"inspire"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			target := filepath.Join(binDir, name)
			script := "#!/bin/sh\n" +
				"if [ \"$1\" = \"--pipeline\" ] && [ -e \"" + target + ".fail-$2\" ]; then exit 1; fi\n" +
				"exit 0\n"
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "inspire":
				b.cfg.Pipeline.InspireBinary = target
			case "interact":
				b.cfg.Pipeline.InteractBinary = target
			}
		}
	}
}

// FailStage makes the stub binary at path exit 1 for the given stage.
func FailStage(t testing.TB, binary, stage string) {
	t.Helper()
	if err := os.WriteFile(binary+".fail-"+stage, nil, 0o644); err != nil {
		t.Fatalf("mark stage %s failing: %v", stage, err)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InteractHome)
}
