package pipeline

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interact/internal/config"
	"interact/internal/tasks"
)

func TestRenderShellScript(t *testing.T) {
	s := Script{
		Mode:           config.ScriptModeShell,
		InteractBinary: "/usr/bin/interact",
		InspireBinary:  "inspire",
		ConfigPath:     "/etc/interact/config.toml",
		ProjectHome:    "/data/projects/alice/p1",
		User:           "alice",
		Project:        "p1",
		Stages:         tasks.Stages("prepare", "predictBinding"),
	}
	got := s.Render()

	job := "--user alice --project p1 --job-id $$"
	ic := "/usr/bin/interact --config /etc/interact/config.toml"
	want := []string{
		"#!/usr/bin/env bash",
		"echo $$ > /data/projects/alice/p1/inspire_pids.txt",
		ic + " queue add " + job + " || exit 1",
		ic + " queue wait " + job + " || { " + ic + " queue remove " + job + "; exit 1; }",
		ic + " queue update " + job + " --task start --result 0 || { " + ic + " queue remove " + job + "; exit 1; }",
		"inspire --pipeline prepare --config_file /data/projects/alice/p1/config.yml",
		ic + " queue update " + job + " --task prepare --result $?",
		"if [ \"$?\" -ne \"0\" ]",
		"    " + ic + " queue remove " + job,
		"    exit 1",
		"fi",
		"inspire --pipeline predictBinding --config_file /data/projects/alice/p1/config.yml",
		ic + " queue update " + job + " --task predictBinding --result $?",
		ic + " queue remove " + job,
	}
	lines := strings.Split(strings.TrimSpace(got), "\n")
	var filtered []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "then" {
			continue
		}
		filtered = append(filtered, line)
	}
	assert.Equal(t, want, filtered)
}

func TestShellScriptStopsWithoutQueueSlot(t *testing.T) {
	tests := []struct {
		name      string
		failCall  string
		wantCalls string
	}{
		{name: "add fails", failCall: "add", wantCalls: "add\n"},
		{name: "wait fails", failCall: "wait", wantCalls: "add\nwait\nremove\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			home := filepath.Join(dir, "alice", "p1")
			require.NoError(t, os.MkdirAll(home, 0o755))
			calls := filepath.Join(dir, "calls")
			ran := filepath.Join(dir, "stages")
			interact := filepath.Join(dir, "interact")
			inspire := filepath.Join(dir, "inspire")
			writeStub(t, interact, "#!/bin/sh\necho \"$2\" >> "+calls+"\n"+
				"if [ \"$2\" = \""+tc.failCall+"\" ]; then exit 1; fi\nexit 0\n")
			writeStub(t, inspire, "#!/bin/sh\necho \"$2\" >> "+ran+"\nexit 0\n")

			path, err := WriteScript(Script{
				Mode:           config.ScriptModeShell,
				InteractBinary: interact,
				InspireBinary:  inspire,
				ProjectHome:    home,
				User:           "alice",
				Project:        "p1",
				Stages:         tasks.Stages("prepare", "predictSpectra"),
			})
			require.NoError(t, err)
			cmd := exec.Command("bash", path)
			cmd.Dir = home
			err = cmd.Run()
			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 1, exitErr.ExitCode())
			assert.NoFileExists(t, ran, "stages ran without a queue slot")
			data, err := os.ReadFile(calls)
			require.NoError(t, err)
			assert.Equal(t, tc.wantCalls, string(data))
		})
	}
}

func writeStub(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
}

func TestRenderNativeScript(t *testing.T) {
	s := Script{
		Mode:           config.ScriptModeNative,
		InteractBinary: "interact",
		ProjectHome:    "/data/projects/alice/my project",
		User:           "alice",
		Project:        "my project",
		Stages:         tasks.Stages("prepare"),
	}
	got := s.Render()
	assert.Contains(t, got, "echo $$ > '/data/projects/alice/my project/inspire_pids.txt'\n")
	assert.Contains(t, got, "exec interact job run --user alice --project 'my project' --job-id $$\n")
	assert.NotContains(t, got, "--pipeline", "native script must not call the pipeline directly")
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"":             "''",
		"plain-name_1": "plain-name_1",
		"/a/b.c":       "/a/b.c",
		"has space":    "'has space'",
		"it's":         `'it'"'"'s'`,
		"$(rm -rf /)":  "'$(rm -rf /)'",
		"featureSel+":  "featureSel+",
	}
	for in, want := range tests {
		assert.Equal(t, want, shellQuote(in), "shellQuote(%q)", in)
	}
}
