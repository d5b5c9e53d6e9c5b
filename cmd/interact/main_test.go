package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"interact/internal/api"
	"interact/internal/config"
	"interact/internal/liveness"
	"interact/internal/pipeline"
	"interact/internal/queue"
	"interact/internal/tasks"
	"interact/internal/testsupport"
	"interact/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("inspire", "interact"))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (e *cliTestEnv) openStore(t *testing.T) queue.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, e.cfg)
}

func initTracker(t *testing.T, home string, stages ...string) {
	t.Helper()
	if err := tasks.Init(context.Background(), home, tasks.Stages(stages...)); err != nil {
		t.Fatalf("tasks.Init: %v", err)
	}
}

func trackerStatuses(t *testing.T, home string) []tasks.Status {
	t.Helper()
	entries, err := tasks.Read(context.Background(), home)
	if err != nil {
		t.Fatalf("tasks.Read: %v", err)
	}
	out := make([]tasks.Status, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Status)
	}
	return out
}

func requireStatuses(t *testing.T, home string, want ...tasks.Status) {
	t.Helper()
	got := trackerStatuses(t, home)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

func TestQueueCommandsDriveTheTracker(t *testing.T) {
	env := setupCLITestEnv(t)
	home := testsupport.NewProject(t, env.cfg, "alice", "p1")
	initTracker(t, home, "prepare", "predictSpectra", "featureGeneration")
	job := []string{"--user", "alice", "--project", "p1", "--job-id", "4242"}

	if _, err := runCLI(t, env.configPath, append([]string{"queue", "add"}, job...)...); err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if _, err := runCLI(t, env.configPath, append([]string{"queue", "wait"}, job...)...); err != nil {
		t.Fatalf("queue wait: %v", err)
	}
	if _, err := runCLI(t, env.configPath, append([]string{"queue", "update", "--task", "start", "--result", "0"}, job...)...); err != nil {
		t.Fatalf("queue update start: %v", err)
	}

	out, err := runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "alice")
	requireContains(t, out, "Preparing search results")

	if _, err := runCLI(t, env.configPath, append([]string{"queue", "update", "--task", "prepare", "--result", "0"}, job...)...); err != nil {
		t.Fatalf("queue update prepare: %v", err)
	}
	_, err = runCLI(t, env.configPath, append([]string{"queue", "update", "--task", "predictSpectra", "--result", "1"}, job...)...)
	if !errors.Is(err, workflow.ErrStageFailed) {
		t.Fatalf("expected ErrStageFailed, got %v", err)
	}
	requireStatuses(t, home, tasks.StatusCompleted, tasks.StatusFailed, tasks.StatusSkipped)

	if _, err := runCLI(t, env.configPath, append([]string{"queue", "remove"}, job...)...); err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	out, err = runCLI(t, env.configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "Queue is empty")
}

func TestQueueCommandsRequireJobFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env.configPath, "queue", "add", "--user", "alice", "--project", "p1"); err == nil {
		t.Fatal("expected missing --job-id to fail")
	}
	if _, err := runCLI(t, env.configPath, "queue", "add", "--user", "../x", "--project", "p1", "--job-id", "5"); err == nil {
		t.Fatal("expected invalid user to fail")
	}
}

func TestQueueListJSONAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)
	testsupport.MustEnqueue(t, store, "alice", "p1", 1<<30)
	testsupport.MustEnqueue(t, store, "bob", "p2", (1<<30)+1)

	out, err := runCLI(t, env.configPath, "queue", "list", "--json")
	if err != nil {
		t.Fatalf("queue list --json: %v", err)
	}
	var resp api.QueueListResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(resp.Items) != 2 || resp.Items[0].Position != 1 || resp.Items[1].User != "bob" {
		t.Fatalf("unexpected items %+v", resp.Items)
	}

	out, err = runCLI(t, env.configPath, "queue", "clear")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Queue cleared. 0 job(s) cancelled.")
	entries, err := store.List(context.Background())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty queue, got %+v %v", entries, err)
	}
}

func TestJobRunExecutesEveryStage(t *testing.T) {
	env := setupCLITestEnv(t)
	home := testsupport.NewProject(t, env.cfg, "alice", "p1")
	initTracker(t, home, "prepare", "predictSpectra", "generateReport")

	if _, err := runCLI(t, env.configPath, "job", "run", "--user", "alice", "--project", "p1"); err != nil {
		t.Fatalf("job run: %v", err)
	}
	requireStatuses(t, home, tasks.StatusCompleted, tasks.StatusCompleted, tasks.StatusCompleted)

	pids, err := liveness.ReadPIDs(home, liveness.KindInspire)
	if err != nil || len(pids) != 1 || pids[0] != os.Getpid() {
		t.Fatalf("expected pid record for this process, got %v %v", pids, err)
	}
	entries, err := env.openStore(t).List(context.Background())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected job to leave the queue, got %+v %v", entries, err)
	}
}

func TestJobRunStopsOnBlockingFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	home := testsupport.NewProject(t, env.cfg, "alice", "p1")
	initTracker(t, home, "prepare", "predictSpectra", "generateReport")
	testsupport.FailStage(t, env.cfg.Pipeline.InspireBinary, "predictSpectra")

	_, err := runCLI(t, env.configPath, "job", "run", "--user", "alice", "--project", "p1", "--job-id", "777")
	if !errors.Is(err, workflow.ErrBlockingFailure) {
		t.Fatalf("expected ErrBlockingFailure, got %v", err)
	}
	requireStatuses(t, home, tasks.StatusCompleted, tasks.StatusFailed, tasks.StatusSkipped)
	if _, err := os.Stat(liveness.PIDPath(home, liveness.KindInspire)); !os.IsNotExist(err) {
		t.Fatalf("job run with --job-id must not write a pid file, stat err %v", err)
	}
}

func TestJobStatusAndCancel(t *testing.T) {
	env := setupCLITestEnv(t)
	home := testsupport.NewProject(t, env.cfg, "alice", "p1")

	out, err := runCLI(t, env.configPath, "job", "status", "--user", "alice", "--project", "p1")
	if err != nil {
		t.Fatalf("job status: %v", err)
	}
	requireContains(t, out, "Phase: idle")

	initTracker(t, home, "prepare", "predictSpectra")
	testsupport.WriteFile(t, filepath.Join(home, pipeline.OutputDirName, workflow.ReportFileName), "<html></html>")
	out, err = runCLI(t, env.configPath, "job", "status", "--user", "alice", "--project", "p1", "--json")
	if err != nil {
		t.Fatalf("job status --json: %v", err)
	}
	var resp api.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if resp.Phase != string(workflow.PhaseReady) || len(resp.Tasks) != 2 {
		t.Fatalf("unexpected status %+v", resp)
	}

	out, err = runCLI(t, env.configPath, "job", "cancel", "--user", "alice", "--project", "p1")
	if err != nil {
		t.Fatalf("job cancel: %v", err)
	}
	requireContains(t, out, pipeline.MessageNothingRunning)

	if _, err := runCLI(t, env.configPath, "job", "cancel"); err == nil {
		t.Fatal("expected job cancel without a target to fail")
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# Config path: "+env.configPath)
	requireContains(t, out, "[queue]")
	requireContains(t, out, env.cfg.Paths.InteractHome)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	if _, _, _, err := config.Load(target); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestJobLogCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	home := testsupport.NewProject(t, env.cfg, "alice", "p1")
	testsupport.WriteFile(t, filepath.Join(home, pipeline.LogFileName), "one\ntwo\nthree\n")

	out, err := runCLI(t, env.configPath, "job", "log", "--user", "alice", "--project", "p1", "-n", "2")
	if err != nil {
		t.Fatalf("job log: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected output %q", out)
	}

	// No live job: follow prints nothing new and returns.
	out, err = runCLI(t, env.configPath, "job", "log", "--user", "alice", "--project", "p1", "-n", "1", "--follow")
	if err != nil {
		t.Fatalf("job log --follow: %v", err)
	}
	if out != "three\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestConfigValidateReportsTools(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil && !strings.Contains(err.Error(), "bash") {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "inSPIRE")
	requireContains(t, out, "MSFragger")

	env.cfg.Pipeline.InspireBinary = filepath.Join(t.TempDir(), "missing-inspire")
	writeTestConfig(t, env.configPath, env.cfg)
	_, err = runCLI(t, env.configPath, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "inSPIRE") {
		t.Fatalf("expected missing inSPIRE to fail validation, got %v", err)
	}
}
