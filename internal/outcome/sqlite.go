package outcome

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the database file and migrates it to
// the latest schema.
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets exports read while outcomes are being recorded
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	runner, err := NewMigrationRunner(db, DialectSQLite, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := runner.Up(); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Save stores or updates an outcome.
func (s *SQLiteStore) Save(ctx context.Context, o *Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	tags, err := encodeTags(o.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM outcomes WHERE patient_ref = ? AND drug_key = ?",
		o.PatientRef, o.DrugKey,
	).Scan(&existingID, &createdAt)

	if err == nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE outcomes SET
				trace_id = ?,
				drug_name = ?,
				tags = ?,
				predicted_score = ?,
				predicted_label = ?,
				adverse_event = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			o.TraceID,
			o.DrugName,
			tags,
			o.PredictedScore,
			string(o.PredictedLabel),
			o.AdverseEvent,
			o.Notes,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		o.ID = existingID
		o.CreatedAt = createdAt
		o.UpdatedAt = now
		return nil
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (
			trace_id, patient_ref, drug_key, drug_name, tags,
			predicted_score, predicted_label, adverse_event, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.TraceID,
		o.PatientRef,
		o.DrugKey,
		o.DrugName,
		tags,
		o.PredictedScore,
		string(o.PredictedLabel),
		o.AdverseEvent,
		o.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// Get retrieves the outcome for a patient and drug.
func (s *SQLiteStore) Get(ctx context.Context, patientRef, drugKey string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM outcomes WHERE patient_ref = ? AND drug_key = ? LIMIT 1",
		patientRef, drugKey,
	)

	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return o, nil
}

// List returns outcomes with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM outcomes ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := []*Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// Count returns the total number of outcomes.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&count)
	return count, err
}

// Delete removes an outcome by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcomes WHERE id = ?", id)
	return err
}

// ExportJSON exports all outcomes to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, w io.Writer) error {
	return exportJSON(ctx, s, w)
}

// ImportJSON imports outcomes from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, r io.Reader) (int, int, error) {
	return importJSON(ctx, s, r)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
