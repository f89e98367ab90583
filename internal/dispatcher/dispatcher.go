// Package dispatcher turns bulk-analysis requests into queued jobs and fans
// the queue out to a pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/metrics"
	"github.com/JakeFAU/leadscan/internal/worker"
)

// ErrNoLeads is returned by Submit for an empty lead list.
var ErrNoLeads = errors.New("no leads to analyze")

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue    lead.Queue
	jobStore lead.JobStore
	idGen    lead.IDGenerator
	clock    lead.Clock
	workers  []*worker.Worker
}

// New creates a Dispatcher.
func New(
	queue lead.Queue,
	jobStore lead.JobStore,
	idGen lead.IDGenerator,
	clock lead.Clock,
	workers []*worker.Worker,
) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		jobStore: jobStore,
		idGen:    idGen,
		clock:    clock,
		workers:  workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit records a queued job for leadIDs and enqueues it. The returned job
// is what the store holds at submission time.
func (d *Dispatcher) Submit(ctx context.Context, leadIDs []int64) (lead.Job, error) {
	if len(leadIDs) == 0 {
		return lead.Job{}, ErrNoLeads
	}
	jobID, err := d.idGen.NewID()
	if err != nil {
		return lead.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	now := d.clock.Now()
	job := lead.Job{
		ID:        jobID,
		Status:    lead.JobStatusQueued,
		Submitted: now,
		LeadIDs:   append([]int64(nil), leadIDs...),
	}
	if err := d.jobStore.CreateJob(ctx, job); err != nil {
		return lead.Job{}, fmt.Errorf("create job: %w", err)
	}
	item := lead.QueueItem{
		JobID:     jobID,
		LeadIDs:   job.LeadIDs,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := d.Enqueue(ctx, item); err != nil {
		// Leave no queued job behind that nothing will ever run.
		if uerr := d.jobStore.UpdateJobStatus(context.WithoutCancel(ctx), jobID, lead.JobStatusFailed,
			err.Error(), lead.JobCounters{}); uerr != nil {
			err = errors.Join(err, uerr)
		}
		return lead.Job{}, err
	}
	metrics.ObserveJob(string(lead.JobStatusQueued))
	return job, nil
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item lead.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
