// Package lead defines the core types shared across the discovery and
// enrichment subsystems.
package lead

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the workflow state of a lead.
type Status string

// Workflow states persisted with each lead.
const (
	StatusScraped       Status = "Scraped"
	StatusAnalyzed      Status = "Analyzed"
	StatusContacted     Status = "Contacted"
	StatusWon           Status = "Won"
	StatusLost          Status = "Lost"
	StatusGoodCondition Status = "Good Condition"
	StatusIgnored       Status = "Ignored"
)

var (
	// ErrLeadNotFound is returned when a lead id does not exist.
	ErrLeadNotFound = errors.New("lead not found")
	// ErrInvalidStatus is returned for values outside the workflow enum.
	ErrInvalidStatus = errors.New("invalid lead status")
)

// Statuses lists every workflow state in display order.
var Statuses = []Status{
	StatusAnalyzed,
	StatusScraped,
	StatusContacted,
	StatusWon,
	StatusLost,
	StatusGoodCondition,
	StatusIgnored,
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Advance returns the status after a successful analysis. Only Scraped moves;
// caller-driven states are never regressed.
func (s Status) Advance() Status {
	if s == StatusScraped {
		return StatusAnalyzed
	}
	return s
}

// PlaceCandidate is a single accepted row from a nearby search.
type PlaceCandidate struct {
	PlaceID string   `json:"place_id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Types   []string `json:"types"`
	Rating  *float64 `json:"rating,omitempty"`
}

// PlaceDetails carries the canonical contact fields for one place. Empty
// fields mean "no update".
type PlaceDetails struct {
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
}

// Empty reports whether the details carry no usable field.
func (d PlaceDetails) Empty() bool {
	return d.Phone == "" && d.Website == "" && d.Address == ""
}

// Lead is the persisted record mutated by the enrichment pipeline.
type Lead struct {
	ID               int64      `json:"id"`
	PlaceID          string     `json:"place_id"`
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	Phone            string     `json:"phone"`
	WebsiteURL       string     `json:"website_url"`
	SSLActive        bool       `json:"ssl_active"`
	MobileViewport   bool       `json:"mobile_viewport"`
	ContactInfoFound bool       `json:"contact_info_found"`
	Score            int        `json:"content_heuristic_score"`
	StatusCode       *int       `json:"status_code,omitempty"`
	AnalysisError    *string    `json:"analysis_error,omitempty"`
	AnalysisNotes    string     `json:"analysis_notes"`
	TechStack        *string    `json:"tech_stack,omitempty"`
	LoadTimeMs       *int64     `json:"load_time_ms,omitempty"`
	CopyrightYear    *int       `json:"copyright_year,omitempty"`
	Status           Status     `json:"status"`
	Notes            string     `json:"notes"`
	CreatedAt        time.Time  `json:"created_at"`
	LastAnalyzedAt   *time.Time `json:"last_analyzed_at,omitempty"`
}

// AnalysisReport is the transient output of a website probe.
type AnalysisReport struct {
	Exists           bool     `json:"exists"`
	URL              string   `json:"url"`
	FinalURL         string   `json:"final_url,omitempty"`
	StatusCode       int      `json:"status_code,omitempty"`
	SSLActive        bool     `json:"ssl_active"`
	SSLFetchFailed   bool     `json:"ssl_fetch_failed"`
	MobileViewport   bool     `json:"mobile_viewport"`
	ContactInfoFound bool     `json:"contact_info_found"`
	CopyrightYear    *int     `json:"copyright_year,omitempty"`
	TechStack        string   `json:"tech_stack,omitempty"`
	LoadTimeMs       int64    `json:"load_time_ms"`
	Logs             []string `json:"logs"`
	Error            string   `json:"error,omitempty"`
}

// Logf appends a formatted line to the operator log trail.
func (r *AnalysisReport) Logf(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// Score derives the coarse 0-100 heuristic score from the four report signals.
func (r AnalysisReport) Score() int {
	score := 0
	for _, signal := range []bool{r.SSLActive, r.MobileViewport, r.ContactInfoFound, r.Exists} {
		if signal {
			score += 25
		}
	}
	return score
}

// EventKind tags the variant carried by an Event.
type EventKind string

// Discovery event kinds.
const (
	EventLog    EventKind = "log"
	EventResult EventKind = "result"
)

// Event is one item of the discovery stream: either a progress message or an
// accepted candidate.
type Event struct {
	Kind      EventKind       `json:"type"`
	Message   string          `json:"message,omitempty"`
	Candidate *PlaceCandidate `json:"result,omitempty"`
}

// LogEvent builds a progress event.
func LogEvent(format string, args ...any) Event {
	return Event{Kind: EventLog, Message: fmt.Sprintf(format, args...)}
}

// ResultEvent builds a candidate event.
func ResultEvent(c PlaceCandidate) Event {
	return Event{Kind: EventResult, Candidate: &c}
}

// AnalysisUpdate is the set of columns written by one enrichment.
type AnalysisUpdate struct {
	LeadID         int64
	Phone          string
	WebsiteURL     string
	Address        string
	Report         *AnalysisReport
	Score          int
	Status         Status
	LastAnalyzedAt time.Time
}

// Apply copies the update onto an in-memory lead.
func (u AnalysisUpdate) Apply(l *Lead) {
	l.Phone = u.Phone
	l.WebsiteURL = u.WebsiteURL
	l.Address = u.Address
	l.Status = u.Status
	analyzed := u.LastAnalyzedAt
	l.LastAnalyzedAt = &analyzed
	if u.Report == nil {
		return
	}
	r := u.Report
	l.SSLActive = r.SSLActive
	l.MobileViewport = r.MobileViewport
	l.ContactInfoFound = r.ContactInfoFound
	l.CopyrightYear = r.CopyrightYear
	l.StatusCode = intPtrOrNil(r.StatusCode)
	l.AnalysisError = stringPtrOrNil(r.Error)
	l.TechStack = stringPtrOrNil(r.TechStack)
	if r.Exists || r.LoadTimeMs > 0 {
		load := r.LoadTimeMs
		l.LoadTimeMs = &load
	} else {
		l.LoadTimeMs = nil
	}
	l.AnalysisNotes = JoinLogs(r.Logs)
	l.Score = u.Score
}

// JoinLogs renders the probe trail into the persisted notes column.
func JoinLogs(logs []string) string {
	return strings.Join(logs, "\n")
}

func intPtrOrNil(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func stringPtrOrNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
