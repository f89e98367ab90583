// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/leadscan/internal/lead"
)

// JobStore keeps bulk-analysis jobs in memory.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]lead.Job
	clock lead.Clock
}

// NewJobStore constructs a JobStore. A nil clock uses the wall clock.
func NewJobStore(clock lead.Clock) *JobStore {
	return &JobStore{
		jobs:  make(map[string]lead.Job),
		clock: orSystemClock(clock),
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job lead.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	job.LeadIDs = append([]int64(nil), job.LeadIDs...)
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status lead.JobStatus,
	errText string,
	counters lead.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update job %s: %w", jobID, lead.ErrJobNotFound)
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := s.clock.Now().UTC()
	if status == lead.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.IsTerminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (lead.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return lead.Job{}, fmt.Errorf("get job %s: %w", jobID, lead.ErrJobNotFound)
	}
	job.LeadIDs = append([]int64(nil), job.LeadIDs...)
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
