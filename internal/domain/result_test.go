package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelForScore(t *testing.T) {
	tests := []struct {
		score    float64
		expected RiskLabel
	}{
		{0, RiskLow},
		{BaseScore, RiskLow},
		{0.3299, RiskLow},
		{0.33, RiskModerate},
		{0.45, RiskModerate},
		{0.66, RiskModerate},
		{0.6601, RiskHigh},
		{1, RiskHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LabelForScore(tt.score), "score %v", tt.score)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.2))
	assert.Equal(t, 1.0, ClampScore(1.7))
	assert.Equal(t, 0.42, ClampScore(0.42))
}

func TestScoreResultClone(t *testing.T) {
	orig := &ScoreResult{
		Score: 0.8,
		Label: RiskHigh,
		Rationales: []Rationale{{
			Type:     RationalePair,
			Pair:     []FunctionalTag{"CYP2D6_loss", "CYP3A4_reduced"},
			Genes:    []string{"CYP2D6", "CYP3A4"},
			Evidence: []string{"combined loss"},
		}},
		Alternatives: []AlternativeMedication{{Code: "7052", Name: "morphine"}},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Rationales[0].Evidence[0] = "changed"
	clone.Rationales[0].Pair[0] = "X_y"
	clone.Alternatives[0].Name = "changed"

	assert.Equal(t, "combined loss", orig.Rationales[0].Evidence[0])
	assert.Equal(t, FunctionalTag("CYP2D6_loss"), orig.Rationales[0].Pair[0])
	assert.Equal(t, "morphine", orig.Alternatives[0].Name)

	var nilResult *ScoreResult
	assert.Nil(t, nilResult.Clone())
}

func TestScorerKindValid(t *testing.T) {
	assert.True(t, ScorerRules.Valid())
	assert.True(t, ScorerML.Valid())
	assert.False(t, ScorerKind("neural").Valid())
}
