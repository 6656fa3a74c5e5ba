package domain

// TaskUpdate is a normalised status report for an upstream generation task.
// Webhook callbacks and poll responses both reduce to this shape before a
// transition is applied.
type TaskUpdate struct {
	TaskID     string      `json:"task_id"`
	Status     TaskStatus  `json:"status"`
	ResultRefs []ResultRef `json:"result_refs,omitempty"`
	Error      string      `json:"error,omitempty"`
	// Source names the channel that produced the update ("callback" or "poll").
	Source string `json:"source,omitempty"`
}

// Update sources.
const (
	UpdateSourceCallback = "callback"
	UpdateSourcePoll     = "poll"
)
