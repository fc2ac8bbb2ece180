package domain

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskInProgress TaskStatus = "In progress"
	TaskDone       TaskStatus = "Done"
	TaskError      TaskStatus = "Error"
)

// Terminal reports whether no further transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskError
}

// TaskStatusRecord tracks one background job. Timestamps are preformatted
// strings so the stored JSON matches what clients poll.
type TaskStatusRecord struct {
	UUID      string     `json:"uuid"`
	Status    TaskStatus `json:"status"`
	CreatedAt string     `json:"created_at"`
	DoneAt    *string    `json:"done_at"`
	Details   any        `json:"details"`
}
