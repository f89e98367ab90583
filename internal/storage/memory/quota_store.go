package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/JakeFAU/leadscan/internal/lead"
)

// QuotaStore is an in-memory key/value store with monthly usage counters.
type QuotaStore struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]struct{}
	clock    lead.Clock
}

// NewQuotaStore constructs a QuotaStore. A nil clock uses the wall clock.
func NewQuotaStore(clock lead.Clock) *QuotaStore {
	return &QuotaStore{
		values: make(map[string]string),
		counters: map[string]struct{}{
			lead.CounterNearby:  {},
			lead.CounterDetails: {},
		},
		clock: orSystemClock(clock),
	}
}

// Get returns the stored value or def.
func (s *QuotaStore) Get(_ context.Context, key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return def, nil
}

// Set stores value under key.
func (s *QuotaStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Increment resets every counter when the billing month changed, then adds
// amount to key and returns the new value.
func (s *QuotaStore) Increment(_ context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfNewMonth()
	s.counters[key] = struct{}{}
	next := s.counterValue(key) + amount
	s.values[key] = strconv.FormatInt(next, 10)
	return next, nil
}

// Usage reports the tracked provider counters for the current month.
func (s *QuotaStore) Usage(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.values[lead.KeyBillingMonth] == lead.BillingMonth(s.clock.Now())
	out := make(map[string]int64, len(s.counters))
	for name := range s.counters {
		if current {
			out[name] = s.counterValue(name)
		} else {
			out[name] = 0
		}
	}
	return out, nil
}

func (s *QuotaStore) resetIfNewMonth() {
	month := lead.BillingMonth(s.clock.Now())
	if s.values[lead.KeyBillingMonth] == month {
		return
	}
	s.values[lead.KeyBillingMonth] = month
	for name := range s.counters {
		s.values[name] = "0"
	}
}

// counterValue parses a stored counter; unparsable values count as zero.
func (s *QuotaStore) counterValue(key string) int64 {
	v, err := strconv.ParseInt(s.values[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
