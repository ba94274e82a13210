package model

import "time"

// RunStatus represents the current state of a dedupe run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Done reports whether the run has finished, successfully or not.
func (s RunStatus) Done() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// RunSpec is the input of a run, as given on the command line.
type RunSpec struct {
	Source     string `json:"source"`
	Pattern    string `json:"pattern"`
	Identifier string `json:"identifier"`
	SortBy     string `json:"sort_by,omitempty"`
}

// Run is one recorded dedupe run.
type Run struct {
	ID        string     `json:"id"`
	Spec      RunSpec    `json:"spec"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the counts of a finished run.
type RunResult struct {
	Listed     int   `json:"listed"`
	Fetched    int   `json:"fetched"`
	Skipped    int   `json:"skipped"`
	Failed     int   `json:"failed"`
	Records    int   `json:"records"`
	Deduped    int   `json:"deduped"`
	Duplicates int   `json:"duplicates"`
	ElapsedMS  int64 `json:"elapsed_ms"`
}

// Elapsed returns the wall time the run took.
func (r *RunResult) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMS) * time.Millisecond
}
