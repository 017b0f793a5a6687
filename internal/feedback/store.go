// Package feedback persists user feedback records so they can later
// inform product roadmaps. The store is owned entirely by the feedback
// tools; the dispatch core never touches it.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Record represents one piece of logged user feedback.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Urgency     string    `json:"urgency"`
	Category    string    `json:"category"`
	Date        string    `json:"date"` // as reported by the user, free-form
	CreatedAt   time.Time `json:"created_at"`
}

// Store manages feedback persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a feedback store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a feedback store using an existing connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			company TEXT NOT NULL,
			description TEXT NOT NULL,
			urgency TEXT NOT NULL,
			category TEXT NOT NULL,
			date TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_feedback_company ON feedback(company);
	`)
	return err
}

// Append stores one feedback record and returns it with its assigned ID.
func (s *Store) Append(ctx context.Context, r Record) (Record, error) {
	r.ID = uuid.New()
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, company, description, urgency, category, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Company, r.Description, r.Urgency, r.Category, r.Date,
		r.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Record{}, fmt.Errorf("insert feedback: %w", err)
	}

	return r, nil
}

// List returns all feedback records, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company, description, urgency, category, date, created_at
		FROM feedback
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var id, createdAt string
		if err := rows.Scan(&id, &r.Company, &r.Description, &r.Urgency, &r.Category, &r.Date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		r.ID, _ = uuid.Parse(id)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}

	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
