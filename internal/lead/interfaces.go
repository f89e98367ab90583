package lead

import (
	"context"
	"time"
)

// Store persists leads. SaveAnalysis must commit atomically or not at all.
type Store interface {
	CreateIfAbsent(ctx context.Context, candidate PlaceCandidate, createdAt time.Time) (Lead, bool, error)
	GetLead(ctx context.Context, id int64) (Lead, error)
	ListLeads(ctx context.Context, filter ListFilter) ([]Lead, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
	SaveAnalysis(ctx context.Context, update AnalysisUpdate) error
}

// ListFilter narrows ListLeads results.
type ListFilter struct {
	Status         *Status
	ExcludeIgnored bool
	// OldestFirst orders by ascending id instead of newest first.
	OldestFirst bool
	Limit       int
}

// QuotaStore tracks provider usage counters against a monthly billing cycle.
// Increment must check the billing month and apply the delta atomically.
type QuotaStore interface {
	Get(ctx context.Context, key, def string) (string, error)
	Set(ctx context.Context, key, value string) error
	Increment(ctx context.Context, key string, amount int64) (int64, error)
	Usage(ctx context.Context) (map[string]int64, error)
}

// Quota counter names.
const (
	CounterNearby  = "google_api_nearby"
	CounterDetails = "google_api_details"
)

// KeyBillingMonth stores the YYYY-MM marker of the current billing cycle.
const KeyBillingMonth = "last_billing_month"

// BillingMonth formats t as a billing-cycle marker.
func BillingMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Prober analyzes a website.
type Prober interface {
	Probe(ctx context.Context, rawURL string) AnalysisReport
}

// DetailFetcher resolves canonical contact fields for a place.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, placeID string) PlaceDetails
}

// Publisher pushes analysis notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// JobStore persists bulk-analysis job metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Queue provides enqueue/dequeue semantics for bulk-analysis jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	LeadIDs   []int64
	Attempt   int
	Submitted int64
}
