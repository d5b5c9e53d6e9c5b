package tasks_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"interact/internal/tasks"
)

func statuses(t *testing.T, jobHome string) []tasks.Status {
	t.Helper()
	entries, err := tasks.Read(context.Background(), jobHome)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	out := make([]tasks.Status, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Status)
	}
	return out
}

func assertStatuses(t *testing.T, jobHome string, want ...tasks.Status) {
	t.Helper()
	got := statuses(t, jobHome)
	if len(got) != len(want) {
		t.Fatalf("got %d entries %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func initJob(t *testing.T, ids ...string) string {
	t.Helper()
	jobHome := t.TempDir()
	if err := tasks.Init(context.Background(), jobHome, tasks.Stages(ids...)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return jobHome
}

func TestInitWritesQueuedEntries(t *testing.T) {
	jobHome := initJob(t, "convert", "prepare", "predictSpectra")

	entries, err := tasks.Read(context.Background(), jobHome)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.TaskIndex != i+1 {
			t.Fatalf("entry %d has index %d", i, e.TaskIndex)
		}
		if e.Status != tasks.StatusQueued {
			t.Fatalf("entry %d has status %q", i, e.Status)
		}
	}
	if entries[0].TaskName != "Converting raw files to MGF" {
		t.Fatalf("unexpected label %q", entries[0].TaskName)
	}

	data, err := os.ReadFile(filepath.Join(jobHome, tasks.FileName))
	if err != nil {
		t.Fatalf("read tracker: %v", err)
	}
	want := "taskId,taskIndex,taskName,status\n" +
		"convert,1,Converting raw files to MGF,Queued\n" +
		"prepare,2,Preparing search results,Queued\n" +
		"predictSpectra,3,Predicting spectra,Queued\n"
	if string(data) != want {
		t.Fatalf("unexpected file layout:\n%s", data)
	}
}

func TestMarkResultTransitions(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		stages   []string
		task     string
		ok       bool
		want     []tasks.Status
		wantNext string
	}{
		{
			name:     "success advances",
			stages:   []string{"prepare", "predictSpectra", "featureGeneration"},
			task:     "prepare",
			ok:       true,
			want:     []tasks.Status{tasks.StatusCompleted, tasks.StatusRunning, tasks.StatusQueued},
			wantNext: "predictSpectra",
		},
		{
			name:   "blocking failure skips downstream",
			stages: []string{"prepare", "predictSpectra", "featureGeneration", "generateReport"},
			task:   "predictSpectra",
			ok:     false,
			want:   []tasks.Status{tasks.StatusRunning, tasks.StatusFailed, tasks.StatusSkipped, tasks.StatusSkipped},
		},
		{
			name:     "non-blocking failure continues",
			stages:   []string{"prepare", "predictBinding", "featureGeneration"},
			task:     "predictBinding",
			ok:       false,
			want:     []tasks.Status{tasks.StatusRunning, tasks.StatusFailed, tasks.StatusRunning},
			wantNext: "featureGeneration",
		},
		{
			name:   "last stage success",
			stages: []string{"prepare", "generateReport"},
			task:   "generateReport",
			ok:     true,
			want:   []tasks.Status{tasks.StatusRunning, tasks.StatusCompleted},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			jobHome := initJob(t, tc.stages...)
			if _, err := tasks.MarkStart(ctx, jobHome); err != nil {
				t.Fatalf("MarkStart: %v", err)
			}
			next, hasNext, err := tasks.MarkResult(ctx, jobHome, tc.task, tc.ok)
			if err != nil {
				t.Fatalf("MarkResult: %v", err)
			}
			assertStatuses(t, jobHome, tc.want...)
			if tc.wantNext == "" && hasNext {
				t.Fatalf("expected no next stage, got %+v", next)
			}
			if tc.wantNext != "" && (!hasNext || next.TaskID != tc.wantNext) {
				t.Fatalf("expected next %q, got %+v (%v)", tc.wantNext, next, hasNext)
			}
		})
	}
}

func TestMarkResultUnknownTask(t *testing.T) {
	jobHome := initJob(t, "prepare")
	_, _, err := tasks.MarkResult(context.Background(), jobHome, "quantify", true)
	if !errors.Is(err, tasks.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	assertStatuses(t, jobHome, tasks.StatusQueued)
}

func TestMarkStartOnEmptyJob(t *testing.T) {
	jobHome := initJob(t)
	if _, err := tasks.MarkStart(context.Background(), jobHome); !errors.Is(err, tasks.ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
}

func TestMarkCancelledOverwritesEverything(t *testing.T) {
	ctx := context.Background()
	jobHome := initJob(t, "prepare", "predictSpectra", "quantify")
	if _, err := tasks.MarkStart(ctx, jobHome); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tasks.MarkResult(ctx, jobHome, "prepare", true); err != nil {
		t.Fatal(err)
	}
	if err := tasks.MarkCancelled(ctx, jobHome); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	assertStatuses(t, jobHome, tasks.StatusCancelled, tasks.StatusCancelled, tasks.StatusCancelled)
}

func TestMarkAbandoned(t *testing.T) {
	ctx := context.Background()
	jobHome := initJob(t, "prepare", "predictSpectra", "featureGeneration")
	if _, err := tasks.MarkStart(ctx, jobHome); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tasks.MarkResult(ctx, jobHome, "prepare", true); err != nil {
		t.Fatal(err)
	}
	changed, err := tasks.MarkAbandoned(ctx, jobHome)
	if err != nil || !changed {
		t.Fatalf("MarkAbandoned: %v %v", changed, err)
	}
	assertStatuses(t, jobHome, tasks.StatusCompleted, tasks.StatusFailed, tasks.StatusSkipped)

	changed, err = tasks.MarkAbandoned(ctx, jobHome)
	if err != nil || changed {
		t.Fatalf("expected second call to be a no-op, got %v %v", changed, err)
	}
}

func TestReadMissingFile(t *testing.T) {
	jobHome := filepath.Join(t.TempDir(), "never-created")
	entries, err := tasks.Read(context.Background(), jobHome)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty read, got %v %v", entries, err)
	}
	if _, err := os.Stat(jobHome); !os.IsNotExist(err) {
		t.Fatalf("Read must not create the job home, stat err %v", err)
	}
}

func TestReadAcceptsReorderedColumns(t *testing.T) {
	jobHome := t.TempDir()
	content := "taskId,taskName,taskIndex,status\nprepare,Preparing search results,1,Running\n"
	if err := os.WriteFile(filepath.Join(jobHome, tasks.FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	entries, err := tasks.Read(context.Background(), jobHome)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 || entries[0].TaskIndex != 1 || entries[0].Status != tasks.StatusRunning {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestCurrentAndSummarize(t *testing.T) {
	entries := []tasks.Entry{
		{TaskID: "prepare", TaskName: "Preparing search results", Status: tasks.StatusCompleted},
		{TaskID: "predictBinding", TaskName: "Predicting binding affinity", Status: tasks.StatusFailed},
		{TaskID: "featureGeneration", TaskName: "Generating features", Status: tasks.StatusRunning},
		{TaskID: "generateReport", TaskName: "Generating report", Status: tasks.StatusQueued},
	}
	cur, ok := tasks.Current(entries)
	if !ok || cur.TaskID != "featureGeneration" {
		t.Fatalf("unexpected current %+v %v", cur, ok)
	}
	sum := tasks.Summarize(entries)
	if sum.Total != 4 || sum.Completed != 1 || sum.Failed != 1 || !sum.Running || sum.Cancelled {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if _, ok := tasks.Current(entries[:2]); ok {
		t.Fatal("expected no running entry")
	}
}
