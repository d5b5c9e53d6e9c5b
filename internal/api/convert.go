package api

import (
	"interact/internal/queue"
	"interact/internal/tasks"
	"interact/internal/workflow"
)

// FromQueueEntries converts the queue in order, numbering positions from 1.
func FromQueueEntries(entries []queue.Entry) []QueueItem {
	out := make([]QueueItem, 0, len(entries))
	for i, e := range entries {
		out = append(out, QueueItem{
			Position: i + 1,
			User:     e.User,
			Project:  e.Project,
			JobID:    e.TaskID,
			Status:   e.Status,
			Running:  e.Running(),
		})
	}
	return out
}

// FromTaskEntries converts tracker rows.
func FromTaskEntries(entries []tasks.Entry) []TaskItem {
	out := make([]TaskItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, TaskItem{
			TaskID:    e.TaskID,
			TaskIndex: e.TaskIndex,
			TaskName:  e.TaskName,
			Status:    string(e.Status),
			Blocking:  tasks.IsBlocking(e.TaskID),
		})
	}
	return out
}

// FromSnapshot converts a workflow snapshot. The queue is included only
// while the job is waiting behind others.
func FromSnapshot(snap workflow.Snapshot) StatusResponse {
	resp := StatusResponse{
		User:     snap.User,
		Project:  snap.Project,
		Phase:    string(snap.Phase),
		State:    string(snap.State),
		JobID:    snap.JobID,
		Position: snap.Position,
		Tasks:    FromTaskEntries(snap.Tasks),
	}
	if resp.Position >= 0 {
		resp.Position++
	} else {
		resp.Position = 0
	}
	if current, ok := snap.Current(); ok {
		resp.CurrentStage = current.TaskName
	}
	if snap.Phase == workflow.PhaseQueued {
		resp.Queue = FromQueueEntries(snap.Queue)
	}
	return resp
}
