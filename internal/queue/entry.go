package queue

import "errors"

// StatusWaiting is the status of every entry that has not reached the front.
const StatusWaiting = "waiting"

// ErrNotFront is returned when a job tries to label the queue while another
// job occupies the front slot.
var ErrNotFront = errors.New("job is not at the front of the queue")

// Entry is one queued job. TaskID is the pid of the job script and is the
// key joining an entry to the pid file in the project home.
type Entry struct {
	User    string `json:"user"`
	Project string `json:"project"`
	TaskID  int    `json:"taskID"`
	Status  string `json:"status"`
}

// Running reports whether the entry has left the waiting state.
func (e Entry) Running() bool {
	return e.Status != "" && e.Status != StatusWaiting
}

func indexOf(entries []Entry, jobID int) int {
	for i, e := range entries {
		if e.TaskID == jobID {
			return i
		}
	}
	return -1
}
