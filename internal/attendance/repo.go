package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// HistoryRecord is one confirmed attendance session.
type HistoryRecord struct {
	ID            string    `db:"id" json:"id"`
	WorkflowID    string    `db:"workflow_id" json:"workflow_id"`
	SessionID     string    `db:"session_id" json:"session_id"`
	ClassID       string    `db:"class_id" json:"class_id"`
	SessionDate   string    `db:"session_date" json:"session_date"`
	Operator      string    `db:"operator" json:"operator"`
	Note          string    `db:"note" json:"note"`
	Total         int       `db:"total" json:"total"`
	Present       int       `db:"present" json:"present"`
	Absent        int       `db:"absent" json:"absent"`
	Unmarked      int       `db:"unmarked" json:"unmarked"`
	FacesDetected int       `db:"faces_detected" json:"faces_detected"`
	MatchesFound  int       `db:"matches_found" json:"matches_found"`
	ConfirmedAt   time.Time `db:"confirmed_at" json:"confirmed_at"`
}

// HistoryFilter narrows ListConfirmed.
type HistoryFilter struct {
	ClassID  string `form:"class_id" validate:"max=64"`
	Operator string `form:"-"`
	Limit    int    `form:"limit" validate:"min=0,max=200"`
	Offset   int    `form:"offset" validate:"min=0"`
}

// Repository persists confirmed sessions in Postgres or SQLite.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const historySchema = `
CREATE TABLE IF NOT EXISTS attendance_sessions (
	id             TEXT PRIMARY KEY,
	workflow_id    TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	class_id       TEXT NOT NULL,
	session_date   TEXT NOT NULL,
	operator       TEXT NOT NULL,
	note           TEXT NOT NULL DEFAULT '',
	total          INTEGER NOT NULL,
	present        INTEGER NOT NULL,
	absent         INTEGER NOT NULL,
	unmarked       INTEGER NOT NULL,
	faces_detected INTEGER NOT NULL,
	matches_found  INTEGER NOT NULL,
	confirmed_at   TIMESTAMP NOT NULL
)`

// Migrate creates the history table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, historySchema)
	return err
}

// SaveConfirmed writes a confirmed session.
func (r *Repository) SaveConfirmed(ctx context.Context, rec HistoryRecord) (HistoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ConfirmedAt.IsZero() {
		rec.ConfirmedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO attendance_sessions
			(id, workflow_id, session_id, class_id, session_date, operator, note,
			 total, present, absent, unmarked, faces_detected, matches_found, confirmed_at)
		VALUES
			(:id, :workflow_id, :session_id, :class_id, :session_date, :operator, :note,
			 :total, :present, :absent, :unmarked, :faces_detected, :matches_found, :confirmed_at)
	`, rec)
	if err != nil {
		return HistoryRecord{}, err
	}
	return rec, nil
}

// ListConfirmed returns confirmed sessions, newest first.
func (r *Repository) ListConfirmed(ctx context.Context, f HistoryFilter) ([]HistoryRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := `SELECT id, workflow_id, session_id, class_id, session_date, operator, note,
		total, present, absent, unmarked, faces_detected, matches_found, confirmed_at
		FROM attendance_sessions`
	var (
		clauses []string
		args    []interface{}
	)
	if f.ClassID != "" {
		clauses = append(clauses, "class_id = ?")
		args = append(args, f.ClassID)
	}
	if f.Operator != "" {
		clauses = append(clauses, "operator = ?")
		args = append(args, f.Operator)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY confirmed_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	records := []HistoryRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return records, nil
}
