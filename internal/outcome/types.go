// Package outcome stores clinician-recorded medication outcomes. The
// outcomes are the labeled data the ML scorer is trained on.
package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/epi-risk-server/internal/domain"
)

// ExportVersion is the schema version of Export documents.
const ExportVersion = "1.0"

// ErrDisabled is returned by Open when no outcome store is configured.
var ErrDisabled = errors.New("outcome store disabled")

// Outcome is one observed result of giving a medication to a patient.
// Only functional tags are kept, never raw genotype rows.
type Outcome struct {
	ID             int64                  `json:"id,omitempty"`
	TraceID        string                 `json:"trace_id,omitempty"`
	PatientRef     string                 `json:"patient_ref"`
	DrugKey        string                 `json:"drug_key"`
	DrugName       string                 `json:"drug_name"`
	Tags           []domain.FunctionalTag `json:"tags"`
	PredictedScore float64                `json:"predicted_score"`
	PredictedLabel domain.RiskLabel       `json:"predicted_label,omitempty"`
	AdverseEvent   bool                   `json:"adverse_event"`
	Notes          string                 `json:"notes,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// Validate checks the fields a store relies on
func (o *Outcome) Validate() error {
	if strings.TrimSpace(o.PatientRef) == "" {
		return domain.NewValidationError("patient_ref", "patient reference is required", o.PatientRef)
	}
	if strings.TrimSpace(o.DrugKey) == "" {
		return domain.NewValidationError("drug_key", "drug key is required", o.DrugKey)
	}
	if o.PredictedScore < 0 || o.PredictedScore > 1 {
		return domain.NewValidationError("predicted_score", "must be within [0, 1]", o.PredictedScore)
	}
	return nil
}

// Store defines outcome storage operations.
type Store interface {
	// Save stores an outcome. An existing outcome for the same
	// patient_ref+drug_key is updated.
	Save(ctx context.Context, o *Outcome) error

	// Get returns the outcome for a patient and drug, or nil when none exists.
	Get(ctx context.Context, patientRef, drugKey string) (*Outcome, error)

	// List returns outcomes newest first.
	List(ctx context.Context, limit, offset int) ([]*Outcome, error)

	// Count returns the number of stored outcomes.
	Count(ctx context.Context) (int64, error)

	// Delete removes an outcome by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON writes every outcome as an Export document.
	ExportJSON(ctx context.Context, w io.Writer) error

	// ImportJSON loads an Export document, skipping outcomes that already exist.
	ImportJSON(ctx context.Context, r io.Reader) (imported int, skipped int, err error)

	// Close releases the underlying connection.
	Close() error
}

// Export is the JSON training-data export format.
type Export struct {
	Version    string     `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	Count      int        `json:"count"`
	Outcomes   []*Outcome `json:"outcomes"`
}

// ReadExport decodes an Export document
func ReadExport(r io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if export.Outcomes == nil {
		export.Outcomes = []*Outcome{}
	}
	return &export, nil
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, s Store, w io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list outcomes: %w", err)
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Outcomes:   all,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, r io.Reader) (imported int, skipped int, err error) {
	export, err := ReadExport(r)
	if err != nil {
		return 0, 0, err
	}

	for _, o := range export.Outcomes {
		existing, err := s.Get(ctx, o.PatientRef, o.DrugKey)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		o.ID = 0
		if err := s.Save(ctx, o); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}

func encodeTags(tags []domain.FunctionalTag) (string, error) {
	if tags == nil {
		tags = []domain.FunctionalTag{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

func decodeTags(raw string) ([]domain.FunctionalTag, error) {
	tags := []domain.FunctionalTag{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, trace_id, patient_ref, drug_key, drug_name, tags,
	predicted_score, predicted_label, adverse_event, notes, created_at, updated_at`

func scanOutcome(s scanner) (*Outcome, error) {
	o := &Outcome{}
	var tags, label string

	err := s.Scan(
		&o.ID, &o.TraceID, &o.PatientRef, &o.DrugKey, &o.DrugName, &tags,
		&o.PredictedScore, &label, &o.AdverseEvent, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.PredictedLabel = domain.RiskLabel(label)
	if o.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	return o, nil
}
