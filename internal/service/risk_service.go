package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
)

// EvaluateRequest is one scoring request
type EvaluateRequest struct {
	Rows           []domain.RawVariantRow
	MedicationName string
	MedicationCode string
	Scorer         domain.ScorerKind
	// TraceID is generated when empty
	TraceID        string
}

// RiskService sequences normalization, tag mapping, pathway filtering and
// scoring against a single knowledge snapshot per request.
type RiskService struct {
	store         *knowledge.Store
	normalizer    *Normalizer
	scorers       map[domain.ScorerKind]Scorer
	defaultScorer domain.ScorerKind
	memo          *lru.Cache
	logger        *logrus.Logger
}

// RiskServiceConfig wires a RiskService
type RiskServiceConfig struct {
	DefaultScorer domain.ScorerKind
	CacheSize     int
}

// NewRiskService creates the orchestrator. Scorers are registered by kind;
// the rule scorer is always present.
func NewRiskService(store *knowledge.Store, cfg RiskServiceConfig, logger *logrus.Logger, scorers ...Scorer) (*RiskService, error) {
	s := &RiskService{
		store:         store,
		normalizer:    NewNormalizer(logger),
		scorers:       map[domain.ScorerKind]Scorer{domain.ScorerRules: NewRuleScorer()},
		defaultScorer: cfg.DefaultScorer,
		logger:        logger,
	}
	for _, sc := range scorers {
		s.scorers[sc.Kind()] = sc
	}
	if s.defaultScorer == "" {
		s.defaultScorer = domain.ScorerRules
	}
	if _, ok := s.scorers[s.defaultScorer]; !ok {
		return nil, fmt.Errorf("default scorer %q is not registered", s.defaultScorer)
	}
	if cfg.CacheSize > 0 {
		memo, err := lru.New(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create score cache: %w", err)
		}
		s.memo = memo
	}
	return s, nil
}

// Knowledge returns the current knowledge snapshot
func (s *RiskService) Knowledge() *knowledge.Tables {
	return s.store.Snapshot()
}

// ReloadKnowledge swaps in freshly loaded tables and drops memoized scores
func (s *RiskService) ReloadKnowledge() (*knowledge.Tables, error) {
	t, err := s.store.Reload()
	if err != nil {
		return nil, err
	}
	if s.memo != nil {
		s.memo.Purge()
	}
	return t, nil
}

// ModelAvailable reports whether a trained model backs the ML scorer
func (s *RiskService) ModelAvailable() bool {
	sc, ok := s.scorers[domain.ScorerML]
	if !ok {
		return false
	}
	if r, ok := sc.(*ResilientScorer); ok {
		return r.Available()
	}
	return true
}

// ModelVersion is the version reported for the default scorer
func (s *RiskService) ModelVersion() string {
	if s.defaultScorer == domain.ScorerML {
		if r, ok := s.scorers[domain.ScorerML].(*ResilientScorer); ok && r.Available() {
			if ml, ok := r.primary.(*MLScorer); ok {
				return ml.Version()
			}
		}
	}
	return RulesVersion
}

// NormalizeRows exposes the normalizer on its own
func (s *RiskService) NormalizeRows(rows []domain.RawVariantRow) ([]domain.NormalizedVariant, domain.NormalizationStats) {
	return s.normalizer.Normalize(rows)
}

// PathwayTags resolves a medication and returns the tags Evaluate would
// score for rows, sorted.
func (s *RiskService) PathwayTags(rows []domain.RawVariantRow, name, code string) (*domain.DrugPathway, []domain.FunctionalTag, error) {
	kb := s.store.Snapshot()
	drug, _, err := ResolvePathway(kb, name, code)
	if err != nil {
		return nil, nil, err
	}
	variants, _ := s.normalizer.Normalize(rows)
	tags, index := MapToTags(kb, variants)
	filtered, _ := FilterByPathway(tags, index, drug)
	return drug, filtered.Sorted(), nil
}

// Evaluate scores rows against one medication. Unknown or missing
// medications fail before any row is looked at.
func (s *RiskService) Evaluate(ctx context.Context, req EvaluateRequest) (*domain.RiskAssessment, error) {
	kb := s.store.Snapshot()
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	kind := req.Scorer
	if kind == "" {
		kind = s.defaultScorer
	}
	scorer, ok := s.scorers[kind]
	if !ok {
		return nil, domain.NewValidationError("scorer", fmt.Sprintf("unknown scorer %q", kind), string(kind))
	}

	drug, mismatch, err := ResolvePathway(kb, req.MedicationName, req.MedicationCode)
	if err != nil {
		return nil, err
	}
	if mismatch {
		s.logger.WithFields(logrus.Fields{
			"trace_id":        traceID,
			"medication_name": req.MedicationName,
			"drug_code":       req.MedicationCode,
			"resolved":        drug.Name,
		}).Warn("Medication name does not match drug code, using drug code")
	}

	variants, stats := s.normalizer.Normalize(req.Rows)
	tags, index := MapToTags(kb, variants)
	filtered, affected := FilterByPathway(tags, index, drug)
	in := ScoringInput{Tags: filtered, AffectedGenes: affected, Drug: drug}

	report, err := s.score(ctx, kb, scorer, in)
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", drug.Name, err)
	}

	result := report.Result.Clone()
	result.Alternatives = kb.Alternatives(drug)

	assessment := &domain.RiskAssessment{
		TraceID:     traceID,
		Medication:  *drug,
		ScoreResult: *result,
		Diagnostics: domain.PipelineDiagnostics{
			RowsReceived:  stats.Received,
			RowsSkipped:   stats.Skipped,
			Variants:      len(variants),
			TagsMapped:    tags.Strings(),
			TagsInPathway: filtered.Strings(),
			AffectedGenes: affected,
		},
		ScorerUsed:       report.Engine,
		ModelVersion:     report.ModelVersion,
		KnowledgeVersion: kb.Version(),
	}

	s.logger.WithFields(logrus.Fields{
		"trace_id":        traceID,
		"medication":      drug.Name,
		"scorer":          report.Engine,
		"rows_received":   stats.Received,
		"rows_skipped":    stats.Skipped,
		"tags_mapped":     len(tags),
		"tags_in_pathway": len(filtered),
		"score":           assessment.Score,
		"label":           assessment.Label,
	}).Info("Risk evaluated")

	return assessment, nil
}

// score consults the memo before running the scorer. Only results produced
// by the requested engine are memoized, so a temporary fallback is not
// remembered.
func (s *RiskService) score(ctx context.Context, kb *knowledge.Tables, scorer Scorer, in ScoringInput) (*ScoreReport, error) {
	if s.memo == nil {
		return scorer.Score(ctx, kb, in)
	}

	key := memoKey(kb, scorer.Kind(), in)
	if cached, ok := s.memo.Get(key); ok {
		report := cached.(*ScoreReport)
		return &ScoreReport{Result: report.Result.Clone(), Engine: report.Engine, ModelVersion: report.ModelVersion}, nil
	}

	report, err := scorer.Score(ctx, kb, in)
	if err != nil {
		return nil, err
	}
	if report.Engine == scorer.Kind() {
		s.memo.Add(key, &ScoreReport{Result: report.Result.Clone(), Engine: report.Engine, ModelVersion: report.ModelVersion})
	}
	return report, nil
}

func memoKey(kb *knowledge.Tables, kind domain.ScorerKind, in ScoringInput) string {
	return strings.Join([]string{
		kb.Version(),
		string(kind),
		in.Drug.Key,
		strings.Join(in.Tags.Strings(), ","),
		strings.Join(in.AffectedGenes, ","),
	}, "|")
}
