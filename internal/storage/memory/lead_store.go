package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/leadscan/internal/lead"
)

// LeadStore keeps leads in memory, keyed by id with a unique place id index.
type LeadStore struct {
	mu      sync.RWMutex
	nextID  int64
	leads   map[int64]lead.Lead
	byPlace map[string]int64
}

// NewLeadStore constructs an empty LeadStore.
func NewLeadStore() *LeadStore {
	return &LeadStore{
		leads:   make(map[int64]lead.Lead),
		byPlace: make(map[string]int64),
	}
}

// CreateIfAbsent inserts a Scraped lead unless the place id already exists.
func (s *LeadStore) CreateIfAbsent(_ context.Context, c lead.PlaceCandidate, createdAt time.Time) (lead.Lead, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPlace[c.PlaceID]; ok {
		return s.leads[id], false, nil
	}
	s.nextID++
	l := lead.Lead{
		ID:        s.nextID,
		PlaceID:   c.PlaceID,
		Name:      c.Name,
		Address:   c.Address,
		Status:    lead.StatusScraped,
		CreatedAt: createdAt,
	}
	s.leads[l.ID] = l
	s.byPlace[l.PlaceID] = l.ID
	return l, true, nil
}

// GetLead fetches a lead by id.
func (s *LeadStore) GetLead(_ context.Context, id int64) (lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return lead.Lead{}, fmt.Errorf("get lead %d: %w", id, lead.ErrLeadNotFound)
	}
	return l, nil
}

// ListLeads returns leads matching filter, newest first unless OldestFirst.
func (s *LeadStore) ListLeads(_ context.Context, filter lead.ListFilter) ([]lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]lead.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.ExcludeIgnored && l.Status == lead.StatusIgnored {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OldestFirst {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus sets a caller-driven workflow status.
func (s *LeadStore) UpdateStatus(_ context.Context, id int64, status lead.Status) error {
	return s.mutate(id, func(l *lead.Lead) {
		l.Status = status
	})
}

// UpdateNotes replaces the free-text notes.
func (s *LeadStore) UpdateNotes(_ context.Context, id int64, notes string) error {
	return s.mutate(id, func(l *lead.Lead) {
		l.Notes = notes
	})
}

// SaveAnalysis applies an enrichment result. The status only moves when the
// stored lead is still Scraped.
func (s *LeadStore) SaveAnalysis(_ context.Context, update lead.AnalysisUpdate) error {
	return s.mutate(update.LeadID, func(l *lead.Lead) {
		if l.Status != lead.StatusScraped {
			update.Status = l.Status
		}
		update.Apply(l)
	})
}

func (s *LeadStore) mutate(id int64, fn func(*lead.Lead)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return fmt.Errorf("update lead %d: %w", id, lead.ErrLeadNotFound)
	}
	fn(&l)
	s.leads[id] = l
	return nil
}
