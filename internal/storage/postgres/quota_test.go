package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/lead"
)

func TestQuotaStoreGetFallsBackToDefault(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store := NewQuotaStore(mock, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM app_config WHERE key = $1")).
		WithArgs("theme").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	got, err := store.Get(context.Background(), "theme", "dark")
	require.NoError(t, err)
	require.Equal(t, "dark", got)
}

func TestQuotaStoreSetUpserts(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store := NewQuotaStore(mock, nil)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value")).
		WithArgs("theme", "light").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Set(context.Background(), "theme", "light"))
}

func TestQuotaStoreIncrementUsesCurrentBillingMonth(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	clock := system.NewFrozen(time.Date(2026, 4, 30, 23, 59, 0, 0, time.UTC))
	store := NewQuotaStore(mock, clock)

	mock.ExpectQuery(regexp.QuoteMeta("WHEN api_usage.billing_month = EXCLUDED.billing_month")).
		WithArgs(lead.CounterNearby, int64(1), "2026-04").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(12)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO api_usage")).
		WithArgs(lead.CounterNearby, int64(1), "2026-05").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(1)))

	got, err := store.Increment(context.Background(), lead.CounterNearby, 1)
	require.NoError(t, err)
	require.Equal(t, int64(12), got)

	clock.Advance(2 * time.Minute)
	got, err = store.Increment(context.Background(), lead.CounterNearby, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), got)
}

func TestQuotaStoreIncrementError(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store := NewQuotaStore(mock, system.NewFrozen(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO api_usage")).
		WithArgs(lead.CounterDetails, int64(1), "2026-01").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Increment(context.Background(), lead.CounterDetails, 1)
	require.ErrorContains(t, err, "increment usage google_api_details")
}

func TestQuotaStoreUsageIncludesTrackedCounters(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	store := NewQuotaStore(mock, system.NewFrozen(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)))

	mock.ExpectQuery(regexp.QuoteMeta("CASE WHEN billing_month = $1 THEN value ELSE 0 END")).
		WithArgs("2026-02").
		WillReturnRows(pgxmock.NewRows([]string{"name", "value"}).AddRow(lead.CounterNearby, int64(40)))

	usage, err := store.Usage(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{
		lead.CounterNearby:  40,
		lead.CounterDetails: 0,
	}, usage)
}
