package api

// Message is the reply body for every non-page web action.
type Message struct {
	Message string `json:"message"`
}

// QueueItem describes one queue entry.
type QueueItem struct {
	Position int    `json:"position"`
	User     string `json:"user"`
	Project  string `json:"project"`
	JobID    int    `json:"jobId"`
	Status   string `json:"status"`
	Running  bool   `json:"running"`
}

// QueueListResponse wraps the queue in arrival order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// TaskItem describes one stage of a job.
type TaskItem struct {
	TaskID    string `json:"taskId"`
	TaskIndex int    `json:"taskIndex"`
	TaskName  string `json:"taskName"`
	Status    string `json:"status"`
	Blocking  bool   `json:"blocking"`
}

// StatusResponse summarizes one project's job.
type StatusResponse struct {
	User     string `json:"user"`
	Project  string `json:"project"`
	Phase    string `json:"phase"`
	State    string `json:"state"`
	JobID    int    `json:"jobId,omitempty"`
	Position int    `json:"position"`
	// CurrentStage is the label of the running stage, if any.
	CurrentStage string      `json:"currentStage,omitempty"`
	Tasks        []TaskItem  `json:"tasks"`
	Queue        []QueueItem `json:"queue,omitempty"`
}

// ListMessage carries a list of names, such as projects or uploaded files.
type ListMessage struct {
	Message []string `json:"message"`
}

// MetadataMessage carries a project's metadata document.
type MetadataMessage struct {
	Message map[string]any `json:"message"`
}
