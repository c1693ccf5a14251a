package model

import "time"

// JobState follows the lifecycle of a workflow run.
type JobState string

const (
	JobPending JobState = "PENDING"
	JobStarted JobState = "STARTED"
	JobSuccess JobState = "SUCCESS"
	JobFailure JobState = "FAILURE"
)

// Job is one asynchronous workflow run over a set of sources.
type Job struct {
	ID          string        `json:"task_id"`
	Sources     []string      `json:"sources,omitempty"`
	State       JobState      `json:"task_status"`
	SubmittedAt time.Time     `json:"submitted_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
	Reports     []BatchReport `json:"task_result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.State == JobSuccess || j.State == JobFailure
}

// BatchReport summarizes one source batch.
type BatchReport struct {
	Source       string        `json:"source"`
	PayloadBytes int           `json:"payload_bytes"`
	Extracted    int           `json:"extracted"`
	Dropped      int           `json:"dropped"`
	Inserted     int           `json:"inserted"`
	Unchanged    int           `json:"unchanged"`
	Superseded   int           `json:"superseded"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration_ns"`
	Error        string        `json:"error,omitempty"`
}

// Add folds a transition into the counters.
func (b *BatchReport) Add(kind TransitionKind) {
	switch kind {
	case TransitionInserted:
		b.Inserted++
	case TransitionUnchanged:
		b.Unchanged++
	case TransitionSuperseded:
		b.Superseded++
	}
}
