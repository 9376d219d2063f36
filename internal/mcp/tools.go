package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
)

// --- Tool input/output types ---

type scoreInput struct {
	Variants       []map[string]string `json:"variants,omitempty" jsonschema:"variant rows, e.g. {\"rsid\":\"rs3892097\",\"genotype\":\"AA\"} or {\"gene\":\"CYP2D6\",\"star\":\"*4/*4\"}"`
	MedicationName string              `json:"medication_name,omitempty" jsonschema:"medication name, e.g. codeine"`
	RxNorm         string              `json:"rxnorm,omitempty" jsonschema:"RxNorm code; takes precedence over the name"`
	Scorer         string              `json:"scorer,omitempty" jsonschema:"rules or ml (default from configuration)"`
}

type scoreOutput struct {
	TraceID          string                         `json:"trace_id"`
	Medication       string                         `json:"medication"`
	DrugKey          string                         `json:"drug_key"`
	Score            float64                        `json:"risk_score"`
	Label            string                         `json:"risk_label"`
	Rationales       []domain.Rationale             `json:"rationales"`
	Alternatives     []domain.AlternativeMedication `json:"suggested_alternatives"`
	TagsInPathway    []string                       `json:"tags_in_pathway"`
	RowsSkipped      int                            `json:"rows_skipped"`
	Scorer           string                         `json:"scorer"`
	ModelVersion     string                         `json:"model_version"`
	KnowledgeVersion string                         `json:"knowledge_version"`
}

type normalizeInput struct {
	Variants []map[string]string `json:"variants" jsonschema:"raw variant rows with any supported column names"`
}

type normalizeOutput struct {
	Variants []domain.NormalizedVariant `json:"variants"`
	Received int                        `json:"rows_received"`
	Skipped  int                        `json:"rows_skipped"`
}

type listMedicationsInput struct{}

type medicationInfo struct {
	Key    string   `json:"drug_key"`
	Name   string   `json:"name"`
	RxNorm string   `json:"rxnorm,omitempty"`
	Genes  []string `json:"genes"`
}

type listMedicationsOutput struct {
	Medications      []medicationInfo `json:"medications"`
	KnowledgeVersion string           `json:"knowledge_version"`
}

type recordOutcomeInput struct {
	PatientRef     string              `json:"patient_ref" jsonschema:"opaque patient reference"`
	MedicationName string              `json:"medication_name,omitempty" jsonschema:"medication name"`
	RxNorm         string              `json:"rxnorm,omitempty" jsonschema:"RxNorm code"`
	Variants       []map[string]string `json:"variants,omitempty" jsonschema:"variant rows; pathway tags are derived from them"`
	AdverseEvent   bool                `json:"adverse_event" jsonschema:"whether an adverse drug response was observed"`
	TraceID        string              `json:"trace_id,omitempty" jsonschema:"trace_id of the assessment this outcome follows up"`
	PredictedScore float64             `json:"predicted_score,omitempty" jsonschema:"risk_score reported at the time"`
	PredictedLabel string              `json:"predicted_label,omitempty" jsonschema:"risk_label reported at the time"`
	Notes          string              `json:"notes,omitempty"`
}

type recordOutcomeOutput struct {
	ID      int64    `json:"id"`
	DrugKey string   `json:"drug_key"`
	Tags    []string `json:"tags"`
}

// --- Tool handlers ---

func (s *Server) handleScore(ctx context.Context, _ *sdkmcp.CallToolRequest, input scoreInput) (*sdkmcp.CallToolResult, scoreOutput, error) {
	a, err := s.risk.Evaluate(ctx, service.EvaluateRequest{
		Rows:           toRows(input.Variants),
		MedicationName: input.MedicationName,
		MedicationCode: input.RxNorm,
		Scorer:         domain.ScorerKind(strings.ToLower(input.Scorer)),
	})
	if err != nil {
		return nil, scoreOutput{}, fmt.Errorf("score: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"trace_id":   a.TraceID,
		"medication": a.Medication.Name,
		"risk_label": a.Label,
	}).Debug("MCP score")

	inPathway := a.Diagnostics.TagsInPathway
	if inPathway == nil {
		inPathway = []string{}
	}
	return nil, scoreOutput{
		TraceID:          a.TraceID,
		Medication:       a.Medication.Name,
		DrugKey:          a.Medication.Key,
		Score:            a.Score,
		Label:            string(a.Label),
		Rationales:       a.Rationales,
		Alternatives:     a.Alternatives,
		TagsInPathway:    inPathway,
		RowsSkipped:      a.Diagnostics.RowsSkipped,
		Scorer:           string(a.ScorerUsed),
		ModelVersion:     a.ModelVersion,
		KnowledgeVersion: a.KnowledgeVersion,
	}, nil
}

func (s *Server) handleNormalize(_ context.Context, _ *sdkmcp.CallToolRequest, input normalizeInput) (*sdkmcp.CallToolResult, normalizeOutput, error) {
	variants, stats := s.risk.NormalizeRows(toRows(input.Variants))
	if variants == nil {
		variants = []domain.NormalizedVariant{}
	}
	return nil, normalizeOutput{
		Variants: variants,
		Received: stats.Received,
		Skipped:  stats.Skipped,
	}, nil
}

func (s *Server) handleListMedications(_ context.Context, _ *sdkmcp.CallToolRequest, _ listMedicationsInput) (*sdkmcp.CallToolResult, listMedicationsOutput, error) {
	kb := s.risk.Knowledge()
	meds := kb.Medications()
	out := listMedicationsOutput{
		Medications:      make([]medicationInfo, 0, len(meds)),
		KnowledgeVersion: kb.Version(),
	}
	for _, m := range meds {
		out.Medications = append(out.Medications, medicationInfo{
			Key:    m.Key,
			Name:   m.Name,
			RxNorm: m.Code,
			Genes:  m.Genes,
		})
	}
	return nil, out, nil
}

func (s *Server) handleRecordOutcome(ctx context.Context, _ *sdkmcp.CallToolRequest, input recordOutcomeInput) (*sdkmcp.CallToolResult, recordOutcomeOutput, error) {
	drug, tags, err := s.risk.PathwayTags(toRows(input.Variants), input.MedicationName, input.RxNorm)
	if err != nil {
		return nil, recordOutcomeOutput{}, fmt.Errorf("record outcome: %w", err)
	}

	o := &outcome.Outcome{
		TraceID:        input.TraceID,
		PatientRef:     input.PatientRef,
		DrugKey:        drug.Key,
		DrugName:       drug.Name,
		Tags:           tags,
		PredictedScore: input.PredictedScore,
		PredictedLabel: domain.RiskLabel(input.PredictedLabel),
		AdverseEvent:   input.AdverseEvent,
		Notes:          input.Notes,
	}
	if err := s.outcomes.Save(ctx, o); err != nil {
		return nil, recordOutcomeOutput{}, fmt.Errorf("record outcome: %w", err)
	}

	out := recordOutcomeOutput{ID: o.ID, DrugKey: o.DrugKey, Tags: make([]string, 0, len(tags))}
	for _, t := range tags {
		out.Tags = append(out.Tags, string(t))
	}
	return nil, out, nil
}

func toRows(variants []map[string]string) []domain.RawVariantRow {
	rows := make([]domain.RawVariantRow, 0, len(variants))
	for _, v := range variants {
		rows = append(rows, domain.RawVariantRow(v))
	}
	return rows
}
