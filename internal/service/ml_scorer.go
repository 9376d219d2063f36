package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ModelFileName is the serialized model inside a model directory
const ModelFileName = "model.json"

// ErrNoModel is returned when a model directory holds no model.
var ErrNoModel = errors.New("no trained model found")

// Stump is a depth-one regression tree over one feature
type Stump struct {
	Feature   string  `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

// Model is a gradient-boosted ensemble of stumps with a logistic link
type Model struct {
	Version    string          `json:"version"`
	TrainedAt  time.Time       `json:"trained_at"`
	BaseMargin float64         `json:"base_margin"`
	Trees      []Stump         `json:"trees"`
	Metrics    *TrainingReport `json:"metrics,omitempty"`
}

// LoadModel reads <dir>/latest/model.json, falling back to <dir>/model.json.
func LoadModel(dir string) (*Model, error) {
	for _, p := range []string{
		filepath.Join(dir, "latest", ModelFileName),
		filepath.Join(dir, ModelFileName),
	} {
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading model %s: %w", p, err)
		}
		var m Model
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding model %s: %w", p, err)
		}
		if m.Version == "" {
			return nil, fmt.Errorf("model %s has no version", p)
		}
		return &m, nil
	}
	return nil, fmt.Errorf("%w in %s", ErrNoModel, dir)
}

// SaveModel writes the model under <dir>/<version>/ and refreshes <dir>/latest/.
func SaveModel(dir string, m *Model) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding model: %w", err)
	}
	versioned := filepath.Join(dir, m.Version)
	for _, d := range []string{versioned, filepath.Join(dir, "latest")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return "", fmt.Errorf("creating model directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(d, ModelFileName), data, 0644); err != nil {
			return "", fmt.Errorf("writing model: %w", err)
		}
	}
	return versioned, nil
}

// Predict returns the adverse-event probability for x
func (m *Model) Predict(space *FeatureSpace, x *mat.VecDense) (float64, error) {
	leaves := make([]float64, len(m.Trees))
	for i, tree := range m.Trees {
		idx, ok := space.Index(tree.Feature)
		if !ok {
			return 0, fmt.Errorf("model %s uses feature %q unknown to the knowledge base", m.Version, tree.Feature)
		}
		if x.AtVec(idx) < tree.Threshold {
			leaves[i] = tree.Left
		} else {
			leaves[i] = tree.Right
		}
	}
	return sigmoid(m.BaseMargin + floats.Sum(leaves)), nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

type cachedSpace struct {
	kb    *knowledge.Tables
	space *FeatureSpace
}

// MLScorer scores with a trained model and explains with the rule
// rationales for the same input.
type MLScorer struct {
	model *Model
	space atomic.Pointer[cachedSpace]
}

// NewMLScorer wraps a loaded model
func NewMLScorer(model *Model) *MLScorer {
	return &MLScorer{model: model}
}

// Kind implements Scorer
func (s *MLScorer) Kind() domain.ScorerKind { return domain.ScorerML }

// Version is the loaded model's version
func (s *MLScorer) Version() string { return s.model.Version }

// Score implements Scorer
func (s *MLScorer) Score(ctx context.Context, kb *knowledge.Tables, in ScoringInput) (*ScoreReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	space := s.featureSpace(kb)
	p, err := s.model.Predict(space, space.Vector(in))
	if err != nil {
		return nil, err
	}
	score := domain.ClampScore(p)
	return &ScoreReport{
		Result: &domain.ScoreResult{
			Score:        score,
			Label:        domain.LabelForScore(score),
			Rationales:   Rationales(kb, in),
			Alternatives: []domain.AlternativeMedication{},
		},
		Engine:       domain.ScorerML,
		ModelVersion: s.model.Version,
	}, nil
}

// featureSpace rebuilds the layout only when the knowledge snapshot changes
func (s *MLScorer) featureSpace(kb *knowledge.Tables) *FeatureSpace {
	if c := s.space.Load(); c != nil && c.kb == kb {
		return c.space
	}
	space := NewFeatureSpace(kb)
	s.space.Store(&cachedSpace{kb: kb, space: space})
	return space
}
