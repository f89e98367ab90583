// Package worker runs queued bulk-analysis jobs.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/enrich"
	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/metrics"
)

// BatchEnricher enriches a set of leads and reports per-lead outcomes.
type BatchEnricher interface {
	EnrichBatch(ctx context.Context, ids []int64) enrich.BatchResult
}

// Worker consumes queue items and enriches the leads they carry.
type Worker struct {
	queue    lead.Queue
	jobStore lead.JobStore
	enricher BatchEnricher
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	queue lead.Queue,
	jobStore lead.JobStore,
	enricher BatchEnricher,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    queue,
		jobStore: jobStore,
		enricher: enricher,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID), zap.Int("leads", len(item.LeadIDs)))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item lead.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if w.enricher == nil {
		w.logger.Error("no enricher configured", zap.String("job_id", item.JobID))
		w.finish(ctx, item.JobID, lead.JobStatusFailed, "no enricher configured", lead.JobCounters{})
		return
	}

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, lead.JobStatusRunning, "", lead.JobCounters{}); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	res := w.enricher.EnrichBatch(ctx, item.LeadIDs)
	counters := lead.JobCounters{Succeeded: res.Succeeded, Failed: res.Failed}
	status, errText := deriveFinalStatus(ctx, item, res)
	w.finish(ctx, item.JobID, status, errText, counters)

	w.logger.Info("job finished",
		zap.String("job_id", item.JobID),
		zap.String("status", string(status)),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
}

func (w *Worker) finish(ctx context.Context, jobID string, status lead.JobStatus, errText string, counters lead.JobCounters) {
	metrics.ObserveJob(string(status))
	// The job context may already be canceled; the final write still has to land.
	if err := w.jobStore.UpdateJobStatus(context.WithoutCancel(ctx), jobID, status, errText, counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// deriveFinalStatus fails a job only when it had leads and none succeeded.
// Partial failures succeed with the failure count in the error text.
func deriveFinalStatus(ctx context.Context, item lead.QueueItem, res enrich.BatchResult) (lead.JobStatus, string) {
	switch {
	case ctx.Err() != nil:
		return lead.JobStatusFailed, fmt.Sprintf("canceled: %v", ctx.Err())
	case len(item.LeadIDs) > 0 && res.Succeeded == 0:
		return lead.JobStatusFailed, fmt.Sprintf("all %d leads failed", res.Failed)
	case res.Failed > 0:
		return lead.JobStatusSucceeded, fmt.Sprintf("%d of %d leads failed", res.Failed, len(item.LeadIDs))
	default:
		return lead.JobStatusSucceeded, ""
	}
}
