package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/lead"
)

// JobStore persists bulk-analysis jobs in analysis_jobs.
type JobStore struct {
	pool  Pool
	clock lead.Clock
}

// NewJobStore wraps an open pool. A nil clock uses the wall clock.
func NewJobStore(pool Pool, clock lead.Clock) *JobStore {
	if clock == nil {
		clock = system.New()
	}
	return &JobStore{pool: pool, clock: clock}
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job lead.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_jobs (job_id, status, lead_ids, submitted_at)
		VALUES ($1, $2, $3, $4)`,
		job.ID, string(job.Status), job.LeadIDs, job.Submitted)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJobStatus records a status transition with its counters. The start
// time is set on the first transition to running and the finish time on a
// terminal status.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status lead.JobStatus,
	errText string,
	counters lead.JobCounters,
) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE analysis_jobs SET
			status = $2,
			error_text = $3,
			succeeded = $4,
			failed = $5,
			started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN $6 ELSE started_at END,
			finished_at = CASE WHEN $7 THEN $6 ELSE finished_at END
		WHERE job_id = $1`,
		jobID, string(status), errText, counters.Succeeded, counters.Failed,
		s.clock.Now().UTC(), status.IsTerminal())
	if err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", jobID, lead.ErrJobNotFound)
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (lead.Job, error) {
	var (
		job       lead.Job
		status    string
		submitted time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT job_id, status, lead_ids, error_text, succeeded, failed,
			submitted_at, started_at, finished_at
		FROM analysis_jobs WHERE job_id = $1`, jobID).Scan(
		&job.ID, &status, &job.LeadIDs, &job.ErrorText,
		&job.Counters.Succeeded, &job.Counters.Failed,
		&submitted, &job.Started, &job.Finished,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.Job{}, fmt.Errorf("get job %s: %w", jobID, lead.ErrJobNotFound)
	}
	if err != nil {
		return lead.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	job.Status = lead.JobStatus(status)
	job.Submitted = submitted
	return job, nil
}
