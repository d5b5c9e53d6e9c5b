package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"interact/internal/config"
	"interact/internal/fileutil"
	"interact/internal/liveness"
	"interact/internal/tasks"
)

// Script describes one generated job script.
type Script struct {
	Mode           string
	InteractBinary string
	InspireBinary  string
	// ConfigPath is passed to every interact call so the script sees the
	// same interact_home as the server that wrote it. Empty omits --config.
	ConfigPath  string
	ProjectHome string
	User        string
	Project     string
	Stages      []tasks.Stage
}

// Render returns the script body.
func (s Script) Render() string {
	var b strings.Builder
	pidFile := liveness.PIDPath(s.ProjectHome, liveness.KindInspire)
	b.WriteString("#!/usr/bin/env bash\n")
	fmt.Fprintf(&b, "echo $$ > %s\n", shellQuote(pidFile))

	if s.Mode == config.ScriptModeNative {
		fmt.Fprintf(&b, "exec %s job run --user %s --project %s --job-id $$\n",
			s.interact(), shellQuote(s.User), shellQuote(s.Project))
		return b.String()
	}

	job := fmt.Sprintf("--user %s --project %s --job-id $$", shellQuote(s.User), shellQuote(s.Project))
	// No stage may run unless the job holds the front slot.
	abort := fmt.Sprintf("{ %s queue remove %s; exit 1; }", s.interact(), job)
	fmt.Fprintf(&b, "%s queue add %s || exit 1\n", s.interact(), job)
	fmt.Fprintf(&b, "%s queue wait %s || %s\n", s.interact(), job, abort)
	fmt.Fprintf(&b, "%s queue update %s --task start --result 0 || %s\n", s.interact(), job, abort)

	cfgFile := shellQuote(filepath.Join(s.ProjectHome, ConfigFileName))
	for _, stage := range s.Stages {
		fmt.Fprintf(&b, "%s --pipeline %s --config_file %s\n", shellQuote(s.InspireBinary), shellQuote(stage.ID), cfgFile)
		fmt.Fprintf(&b, "%s queue update %s --task %s --result $?\n", s.interact(), job, shellQuote(stage.ID))
		if stage.Blocking {
			fmt.Fprintf(&b, "if [ \"$?\" -ne \"0\" ]\n  then\n    %s queue remove %s\n    exit 1\nfi\n", s.interact(), job)
		}
	}
	fmt.Fprintf(&b, "%s queue remove %s\n", s.interact(), job)
	return b.String()
}

func (s Script) interact() string {
	cmd := shellQuote(s.InteractBinary)
	if s.ConfigPath != "" {
		cmd += " --config " + shellQuote(s.ConfigPath)
	}
	return cmd
}

// WriteScript renders s to {projectHome}/inspire_script.sh and returns the path.
func WriteScript(s Script) (string, error) {
	path := filepath.Join(s.ProjectHome, ScriptFileName)
	if err := fileutil.AtomicWrite(path, []byte(s.Render()), 0o755); err != nil {
		return "", fmt.Errorf("write job script: %w", err)
	}
	return path, nil
}

// shellQuote wraps value in single quotes unless it is made only of
// characters the shell passes through unchanged.
func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	safe := true
	for _, r := range value {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./+=:@,", r)) {
			safe = false
			break
		}
	}
	if safe {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
