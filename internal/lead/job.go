package lead

import (
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of a bulk-analysis job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// Job represents one bulk-analysis request.
type Job struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Submitted time.Time   `json:"submitted_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	LeadIDs   []int64     `json:"lead_ids"`
	Counters  JobCounters `json:"counters"`
}

// JobCounters tracks per-lead outcomes for a job.
type JobCounters struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// IsTerminal reports whether no further transitions are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}
