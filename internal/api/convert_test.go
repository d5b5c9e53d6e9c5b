package api

import (
	"encoding/json"
	"testing"

	"interact/internal/liveness"
	"interact/internal/queue"
	"interact/internal/tasks"
	"interact/internal/workflow"
)

func TestFromQueueEntries(t *testing.T) {
	items := FromQueueEntries([]queue.Entry{
		{User: "alice", Project: "p1", TaskID: 10, Status: "Predicting spectra"},
		{User: "bob", Project: "p2", TaskID: 20, Status: queue.StatusWaiting},
	})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Position != 1 || !items[0].Running || items[0].JobID != 10 {
		t.Fatalf("unexpected front item %+v", items[0])
	}
	if items[1].Position != 2 || items[1].Running {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestFromSnapshot(t *testing.T) {
	snap := workflow.Snapshot{
		User:     "alice",
		Project:  "p1",
		Phase:    workflow.PhaseQueued,
		State:    liveness.StateWaiting,
		JobID:    20,
		Position: 1,
		Queue: []queue.Entry{
			{User: "bob", Project: "p2", TaskID: 10, Status: "Preparing search results"},
			{User: "alice", Project: "p1", TaskID: 20, Status: queue.StatusWaiting},
		},
		Tasks: []tasks.Entry{
			{TaskID: "prepare", TaskIndex: 1, TaskName: "Preparing search results", Status: tasks.StatusQueued},
			{TaskID: "predictBinding", TaskIndex: 2, TaskName: "Predicting binding affinity", Status: tasks.StatusQueued},
		},
	}
	resp := FromSnapshot(snap)
	if resp.Position != 2 || resp.Phase != "queued" || resp.State != "waiting" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.Queue) != 2 || resp.CurrentStage != "" {
		t.Fatalf("unexpected queue/current %+v", resp)
	}
	if !resp.Tasks[0].Blocking || resp.Tasks[1].Blocking {
		t.Fatalf("unexpected blocking flags %+v", resp.Tasks)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"user", "project", "phase", "jobId", "tasks", "queue"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, raw)
		}
	}
}

func TestFromSnapshotIdle(t *testing.T) {
	resp := FromSnapshot(workflow.Snapshot{User: "alice", Project: "p1", Phase: workflow.PhaseIdle, Position: -1})
	if resp.Position != 0 || resp.Queue != nil || resp.JobID != 0 {
		t.Fatalf("unexpected idle response %+v", resp)
	}
	if resp.Tasks == nil {
		t.Fatal("tasks must encode as an empty list")
	}
}
