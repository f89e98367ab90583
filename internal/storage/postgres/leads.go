package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/leadscan/internal/lead"
)

const leadColumns = `id, place_id, name, address, phone, website_url, ssl_active, mobile_viewport,
	contact_info_found, content_heuristic_score, status_code, analysis_error, analysis_notes,
	tech_stack, load_time_ms, copyright_year, status, notes, created_at, last_analyzed_at`

// LeadStore persists leads in Postgres.
type LeadStore struct {
	pool Pool
}

// NewLeadStore wraps an open pool.
func NewLeadStore(pool Pool) *LeadStore {
	return &LeadStore{pool: pool}
}

// CreateIfAbsent inserts a Scraped lead unless the place id already exists,
// in which case the stored lead is returned with created=false.
func (s *LeadStore) CreateIfAbsent(ctx context.Context, c lead.PlaceCandidate, createdAt time.Time) (lead.Lead, bool, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO leads (place_id, name, address, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (place_id) DO NOTHING
		RETURNING `+leadColumns,
		c.PlaceID, c.Name, c.Address, string(lead.StatusScraped), createdAt)
	l, err := scanLead(row)
	if err == nil {
		return l, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return lead.Lead{}, false, fmt.Errorf("insert lead %s: %w", c.PlaceID, err)
	}
	row = s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE place_id = $1`, c.PlaceID)
	l, err = scanLead(row)
	if err != nil {
		return lead.Lead{}, false, fmt.Errorf("load lead %s: %w", c.PlaceID, err)
	}
	return l, false, nil
}

// GetLead fetches a lead by id.
func (s *LeadStore) GetLead(ctx context.Context, id int64) (lead.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead.Lead{}, fmt.Errorf("get lead %d: %w", id, lead.ErrLeadNotFound)
	}
	if err != nil {
		return lead.Lead{}, fmt.Errorf("get lead %d: %w", id, err)
	}
	return l, nil
}

// ListLeads returns leads matching filter, newest first unless OldestFirst.
func (s *LeadStore) ListLeads(ctx context.Context, filter lead.ListFilter) ([]lead.Lead, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ExcludeIgnored {
		args = append(args, string(lead.StatusIgnored))
		where = append(where, fmt.Sprintf("status <> $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + leadColumns + ` FROM leads`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if filter.OldestFirst {
		b.WriteString(" ORDER BY id ASC")
	} else {
		b.WriteString(" ORDER BY id DESC")
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []lead.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return out, nil
}

// UpdateStatus sets a caller-driven workflow status.
func (s *LeadStore) UpdateStatus(ctx context.Context, id int64, status lead.Status) error {
	return s.execOne(ctx, "update lead status", `UPDATE leads SET status = $2 WHERE id = $1`, id, string(status))
}

// UpdateNotes replaces the free-text notes.
func (s *LeadStore) UpdateNotes(ctx context.Context, id int64, notes string) error {
	return s.execOne(ctx, "update lead notes", `UPDATE leads SET notes = $2 WHERE id = $1`, id, notes)
}

// SaveAnalysis writes one enrichment result in a single transaction. The
// status only moves away from Scraped; any other stored status is kept.
func (s *LeadStore) SaveAnalysis(ctx context.Context, update lead.AnalysisUpdate) error {
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE leads SET
				phone = $2,
				website_url = $3,
				address = $4,
				status = CASE WHEN status = 'Scraped' THEN $5 ELSE status END,
				last_analyzed_at = $6
			WHERE id = $1`,
			update.LeadID, update.Phone, update.WebsiteURL, update.Address, string(update.Status), update.LastAnalyzedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return lead.ErrLeadNotFound
		}
		if update.Report == nil {
			return nil
		}

		var l lead.Lead
		update.Apply(&l)
		_, err = tx.Exec(ctx, `
			UPDATE leads SET
				ssl_active = $2,
				mobile_viewport = $3,
				contact_info_found = $4,
				content_heuristic_score = $5,
				status_code = $6,
				analysis_error = $7,
				analysis_notes = $8,
				tech_stack = $9,
				load_time_ms = $10,
				copyright_year = $11
			WHERE id = $1`,
			update.LeadID, l.SSLActive, l.MobileViewport, l.ContactInfoFound, l.Score,
			l.StatusCode, l.AnalysisError, l.AnalysisNotes, l.TechStack, l.LoadTimeMs, l.CopyrightYear)
		return err
	})
	if err != nil {
		return fmt.Errorf("save analysis for lead %d: %w", update.LeadID, err)
	}
	return nil
}

func (s *LeadStore) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, lead.ErrLeadNotFound)
	}
	return nil
}

func scanLead(row pgx.Row) (lead.Lead, error) {
	var (
		l      lead.Lead
		status string
	)
	err := row.Scan(
		&l.ID, &l.PlaceID, &l.Name, &l.Address, &l.Phone, &l.WebsiteURL,
		&l.SSLActive, &l.MobileViewport, &l.ContactInfoFound, &l.Score,
		&l.StatusCode, &l.AnalysisError, &l.AnalysisNotes, &l.TechStack,
		&l.LoadTimeMs, &l.CopyrightYear, &status, &l.Notes, &l.CreatedAt, &l.LastAnalyzedAt,
	)
	if err != nil {
		return lead.Lead{}, err
	}
	l.Status = lead.Status(status)
	return l, nil
}
