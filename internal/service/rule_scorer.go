package service

import (
	"context"
	"sort"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
)

// RulesVersion identifies the deterministic scoring algorithm
const RulesVersion = "rules-0.1.0"

// RuleScorer is the deterministic additive scorer: base score, single-tag
// weights, drug-gated pair weights and a multi-gene pathway burden.
type RuleScorer struct{}

// NewRuleScorer creates the rule scorer
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{}
}

// Kind implements Scorer
func (s *RuleScorer) Kind() domain.ScorerKind { return domain.ScorerRules }

// Score implements Scorer. It never fails.
func (s *RuleScorer) Score(_ context.Context, kb *knowledge.Tables, in ScoringInput) (*ScoreReport, error) {
	score, rationales := evaluateRules(kb, in)
	score = domain.ClampScore(score)
	return &ScoreReport{
		Result: &domain.ScoreResult{
			Score:        score,
			Label:        domain.LabelForScore(score),
			Rationales:   rationales,
			Alternatives: []domain.AlternativeMedication{},
		},
		Engine:       domain.ScorerRules,
		ModelVersion: RulesVersion,
	}, nil
}

// Rationales explains an input the way the rule scorer would, regardless
// of which engine computed the score.
func Rationales(kb *knowledge.Tables, in ScoringInput) []domain.Rationale {
	_, rationales := evaluateRules(kb, in)
	return rationales
}

// evaluateRules returns the unclamped score and the ordered rationales:
// pairs, then single tags, then burden.
func evaluateRules(kb *knowledge.Tables, in ScoringInput) (float64, []domain.Rationale) {
	score := domain.BaseScore
	tags := in.Tags.Sorted()

	var singles []domain.Rationale
	threshold := kb.MaterialityThreshold()
	for _, tag := range tags {
		w, ok := kb.SingleTag(tag)
		if !ok {
			continue
		}
		score += w.Value
		if w.Value >= threshold {
			singles = append(singles, domain.Rationale{
				Type:     domain.RationaleSingle,
				Tag:      tag,
				Genes:    []string{tag.Gene()},
				Weight:   w.Value,
				Evidence: copyStrings(w.Evidence),
			})
		}
	}

	// tags is sorted, so i<j yields each unordered pair once in key order
	var pairs []domain.Rationale
	for i := 0; i < len(tags); i++ {
		for j := i + 1; j < len(tags); j++ {
			pw, ok := kb.Pair(tags[i], tags[j])
			if !ok || !pw.AppliesTo(in.Drug) {
				continue
			}
			score += pw.Value
			pairs = append(pairs, domain.Rationale{
				Type:     domain.RationalePair,
				Pair:     []domain.FunctionalTag{tags[i], tags[j]},
				Genes:    []string{tags[i].Gene(), tags[j].Gene()},
				Weight:   pw.Value,
				Evidence: copyStrings(pw.Evidence),
			})
		}
	}

	var burden []domain.Rationale
	if len(in.AffectedGenes) >= 2 {
		b := kb.PathwayBurden()
		score += b.Value
		genes := copyStrings(in.AffectedGenes)
		sort.Strings(genes)
		burden = append(burden, domain.Rationale{
			Type:     domain.RationaleBurden,
			Pathway:  in.Drug.Name,
			Genes:    genes,
			Weight:   b.Value,
			Evidence: copyStrings(b.Evidence),
		})
	}

	rationales := make([]domain.Rationale, 0, len(pairs)+len(singles)+len(burden))
	rationales = append(rationales, pairs...)
	rationales = append(rationales, singles...)
	rationales = append(rationales, burden...)
	return score, rationales
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
