package outcome

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open connection. The schema must already exist;
// NewPostgresStoreFromURL migrates it.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL connects, migrates and returns a store.
func NewPostgresStoreFromURL(databaseURL string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	runner, err := NewMigrationRunner(db, DialectPostgres, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := runner.Up(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save upserts an outcome keyed by patient_ref and drug_key.
func (s *PostgresStore) Save(ctx context.Context, o *Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}
	tags, err := encodeTags(o.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO outcomes (
			trace_id, patient_ref, drug_key, drug_name, tags,
			predicted_score, predicted_label, adverse_event, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (patient_ref, drug_key) DO UPDATE SET
			trace_id = EXCLUDED.trace_id,
			drug_name = EXCLUDED.drug_name,
			tags = EXCLUDED.tags,
			predicted_score = EXCLUDED.predicted_score,
			predicted_label = EXCLUDED.predicted_label,
			adverse_event = EXCLUDED.adverse_event,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = s.db.QueryRowContext(ctx, query,
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
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	o.UpdatedAt = now
	return nil
}

// Get retrieves the outcome for a patient and drug.
func (s *PostgresStore) Get(ctx context.Context, patientRef, drugKey string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM outcomes WHERE patient_ref = $1 AND drug_key = $2 LIMIT 1",
		patientRef, drugKey,
	)

	o, err := scanOutcome(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome: %w", err)
	}
	return o, nil
}

// List returns outcomes with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM outcomes ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
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
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcomes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}
	return count, nil
}

// Delete removes an outcome by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM outcomes WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete outcome: %w", err)
	}
	return nil
}

// ExportJSON exports all outcomes to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, w io.Writer) error {
	return exportJSON(ctx, s, w)
}

// ImportJSON imports outcomes from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, r io.Reader) (int, int, error) {
	return importJSON(ctx, s, r)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
