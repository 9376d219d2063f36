package service

import (
	"context"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
)

// ScoringInput is what every scorer receives after pathway filtering
type ScoringInput struct {
	Tags          domain.TagSet
	AffectedGenes []string
	Drug          *domain.DrugPathway
}

// ScoreReport is a scorer's result plus which engine actually produced it
type ScoreReport struct {
	Result       *domain.ScoreResult
	Engine       domain.ScorerKind
	ModelVersion string
}

// Scorer turns filtered tags into a score, label and rationales. Alternatives
// are attached by the caller.
type Scorer interface {
	Kind() domain.ScorerKind
	Score(ctx context.Context, kb *knowledge.Tables, in ScoringInput) (*ScoreReport, error)
}
