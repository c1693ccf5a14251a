// Package types contains the response shapes the HTTP API returns.
package types

import "github.com/okian/xsrledger/internal/domain/model"

// TaskAccepted is returned when a workflow run was queued.
type TaskAccepted struct {
	TaskID string `json:"task_id"`
}

// TaskStatus reports the state of a workflow run.
type TaskStatus struct {
	TaskID     string              `json:"task_id"`
	TaskStatus model.JobState      `json:"task_status"`
	TaskResult []model.BatchReport `json:"task_result"`
	Error      string              `json:"error,omitempty"`
}

// NewTaskStatus converts a job into its status response. Jobs that have not
// finished report a null result.
func NewTaskStatus(j model.Job) TaskStatus {
	st := TaskStatus{TaskID: j.ID, TaskStatus: j.State, Error: j.Error}
	if j.Done() {
		st.TaskResult = j.Reports
		if st.TaskResult == nil {
			st.TaskResult = []model.BatchReport{}
		}
	}
	return st
}

// LedgerHistory lists every version stored under one key hash.
type LedgerHistory struct {
	KeyHash string              `json:"source_metadata_key_hash"`
	Active  *model.LedgerEntry  `json:"active,omitempty"`
	Entries []model.LedgerEntry `json:"entries"`
}

// NewLedgerHistory builds a history response and picks out the active entry.
func NewLedgerHistory(keyHash string, entries []model.LedgerEntry) LedgerHistory {
	h := LedgerHistory{KeyHash: keyHash, Entries: entries}
	for i := range entries {
		if entries[i].Active() {
			h.Active = &entries[i]
		}
	}
	return h
}

// CopyResult reports a copy-to-target pass.
type CopyResult struct {
	Rows int `json:"rows"`
}
