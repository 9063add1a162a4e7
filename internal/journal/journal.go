package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Submission outcomes.
const (
	OutcomeSubmitted = "submitted"
	OutcomeAccepted  = "accepted"
	OutcomeFailed    = "failed"
)

// Submission is one recorded process request.
type Submission struct {
	ID           string
	PreviewURL   string
	DataSourceID string
	Filename     string
	DateFormat   string
	ImportID     *string
	Outcome      string
	SubmittedAt  time.Time
}

// Repo handles submission records.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// Record writes a new submission entry and returns its id.
func (r *Repo) Record(ctx context.Context, s Submission) (string, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Outcome == "" {
		s.Outcome = OutcomeSubmitted
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO submissions(id, preview_url, data_source_id, filename, date_format, import_id, outcome, submitted_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?);
	`, s.ID, s.PreviewURL, s.DataSourceID, s.Filename, s.DateFormat, s.ImportID, s.Outcome, Now())
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// SetOutcome updates a submission after the backend answered.
func (r *Repo) SetOutcome(ctx context.Context, id, outcome string, importID *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET outcome = ?, import_id = ? WHERE id = ?`,
		outcome, importID, id)
	return err
}

// PriorSubmissions returns earlier entries for the same preview URL, newest
// first. A non-empty result means the operator is about to submit the same
// uploaded file again.
func (r *Repo) PriorSubmissions(ctx context.Context, previewURL string) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, preview_url, data_source_id, filename, date_format, import_id, outcome, submitted_at
	FROM submissions WHERE preview_url = ? ORDER BY submitted_at DESC`, previewURL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

// Recent returns the latest n submissions across all data sources.
func (r *Repo) Recent(ctx context.Context, n int) ([]Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, preview_url, data_source_id, filename, date_format, import_id, outcome, submitted_at
	FROM submissions ORDER BY submitted_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubmissions(rows)
}

func scanSubmissions(rows *sql.Rows) ([]Submission, error) {
	var out []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.PreviewURL, &s.DataSourceID, &s.Filename,
			&s.DateFormat, &s.ImportID, &s.Outcome, &s.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
