package models

import "time"

// RunStatus is the outcome recorded on a [TaskRun] and mirrored on [TaskState].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// TaskRun is an append-only execution record. CompletedAt is nil while the run is in flight.
type TaskRun struct {
	ID              int64      `json:"id"`
	TaskName        string     `json:"task_name"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          RunStatus  `json:"status"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	TracksProcessed int        `json:"tracks_processed"`
}

// Duration is the wall time of a sealed run, or zero while running.
func (r TaskRun) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// TaskState is the persisted scheduling cursor of one task.
type TaskState struct {
	TaskName   string     `json:"task_name"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus RunStatus  `json:"last_status,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	// NextRunInvalid is set when the stored next_run_at could not be parsed.
	NextRunInvalid bool `json:"-"`
	Enabled        bool `json:"enabled"`
}
