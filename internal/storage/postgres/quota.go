package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/lead"
)

// QuotaStore keeps settings in app_config and provider counters in
// api_usage. Each counter row carries the billing month it was last written
// in, so the monthly reset and the increment happen in one statement.
type QuotaStore struct {
	pool  Pool
	clock lead.Clock
}

// NewQuotaStore wraps an open pool. A nil clock uses the wall clock.
func NewQuotaStore(pool Pool, clock lead.Clock) *QuotaStore {
	if clock == nil {
		clock = system.New()
	}
	return &QuotaStore{pool: pool, clock: clock}
}

// Get returns the stored value or def.
func (s *QuotaStore) Get(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key.
func (s *QuotaStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO app_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

// Increment adds amount to the counter, restarting it from zero when its
// stored billing month is not the current one.
func (s *QuotaStore) Increment(ctx context.Context, key string, amount int64) (int64, error) {
	month := lead.BillingMonth(s.clock.Now())
	var value int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO api_usage (name, value, billing_month) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			value = CASE
				WHEN api_usage.billing_month = EXCLUDED.billing_month THEN api_usage.value + EXCLUDED.value
				ELSE EXCLUDED.value
			END,
			billing_month = EXCLUDED.billing_month
		RETURNING value`, key, amount, month).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment usage %s: %w", key, err)
	}
	return value, nil
}

// Usage reports every tracked counter for the current billing month.
// Counters last written in an earlier month read as zero.
func (s *QuotaStore) Usage(ctx context.Context) (map[string]int64, error) {
	month := lead.BillingMonth(s.clock.Now())
	rows, err := s.pool.Query(ctx, `
		SELECT name, CASE WHEN billing_month = $1 THEN value ELSE 0 END
		FROM api_usage`, month)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{
		lead.CounterNearby:  0,
		lead.CounterDetails: 0,
	}
	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	return out, nil
}
