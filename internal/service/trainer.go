package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MinTrainingSamples is the smallest labeled set a model is fitted on.
const MinTrainingSamples = 10

// TrainingSample is one labeled observation: the tags seen for a patient,
// the drug given and whether an adverse event followed.
type TrainingSample struct {
	Tags         []domain.FunctionalTag
	DrugName     string
	DrugCode     string
	AdverseEvent bool
}

// TrainConfig tunes boosting
type TrainConfig struct {
	Rounds       int
	LearningRate float64
}

// TrainingReport summarizes a fit
type TrainingReport struct {
	Samples   int     `json:"samples"`
	Skipped   int     `json:"skipped"`
	Positives int     `json:"positives"`
	Features  int     `json:"features"`
	Trees     int     `json:"trees"`
	LogLoss   float64 `json:"log_loss"`
	Accuracy  float64 `json:"accuracy"`
}

// ErrInsufficientData is returned when too few usable samples exist.
var ErrInsufficientData = errors.New("insufficient training data")

// TrainModel fits boosted stumps with logistic loss. Samples whose drug is
// unknown to kb are skipped. Tags are filtered to the drug pathway the same
// way they are at scoring time.
func TrainModel(kb *knowledge.Tables, samples []TrainingSample, cfg TrainConfig, now time.Time) (*Model, error) {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 100
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}

	space := NewFeatureSpace(kb)
	var (
		rows    [][]float64
		labels  []float64
		skipped int
	)
	for _, s := range samples {
		drug, _, err := kb.ResolveMedication(s.DrugName, s.DrugCode)
		if err != nil {
			skipped++
			continue
		}
		tags := domain.NewTagSet(s.Tags...)
		index := domain.GeneTagIndex{}
		for t := range tags {
			index.Add(t.Gene(), t)
		}
		filtered, affected := FilterByPathway(tags, index, drug)
		x := space.Vector(ScoringInput{Tags: filtered, AffectedGenes: affected, Drug: drug})
		rows = append(rows, x.RawVector().Data)
		y := 0.0
		if s.AdverseEvent {
			y = 1
		}
		labels = append(labels, y)
	}

	n := len(rows)
	if n < MinTrainingSamples {
		return nil, fmt.Errorf("%w: %d usable samples, need %d", ErrInsufficientData, n, MinTrainingSamples)
	}
	positives := floats.Sum(labels)
	if positives == 0 || positives == float64(n) {
		return nil, fmt.Errorf("%w: both outcomes must be present", ErrInsufficientData)
	}

	X := mat.NewDense(n, space.Len(), nil)
	for i, r := range rows {
		X.SetRow(i, r)
	}
	y := mat.NewVecDense(n, labels)

	prior := positives / float64(n)
	model := &Model{
		Version:    "gbm-" + now.UTC().Format("20060102-150405"),
		TrainedAt:  now.UTC(),
		BaseMargin: math.Log(prior / (1 - prior)),
	}

	margin := make([]float64, n)
	for i := range margin {
		margin[i] = model.BaseMargin
	}

	names := space.Names()
	for round := 0; round < cfg.Rounds; round++ {
		grad := make([]float64, n)
		hess := make([]float64, n)
		for i := 0; i < n; i++ {
			p := sigmoid(margin[i])
			grad[i] = y.AtVec(i) - p
			hess[i] = p * (1 - p)
		}

		best, ok := bestStump(X, grad, hess)
		if !ok {
			break
		}
		stump := Stump{
			Feature:   names[best.feature],
			Threshold: 0.5,
			Left:      cfg.LearningRate * best.left,
			Right:     cfg.LearningRate * best.right,
		}
		model.Trees = append(model.Trees, stump)
		for i := 0; i < n; i++ {
			if X.At(i, best.feature) < stump.Threshold {
				margin[i] += stump.Left
			} else {
				margin[i] += stump.Right
			}
		}
	}

	model.Metrics = evaluateFit(margin, labels)
	model.Metrics.Skipped = skipped
	model.Metrics.Positives = int(positives)
	model.Metrics.Features = space.Len()
	model.Metrics.Trees = len(model.Trees)
	return model, nil
}

type split struct {
	feature     int
	gain        float64
	left, right float64
}

const minGain = 1e-9

// bestStump picks the binary split with the largest Newton gain
func bestStump(X *mat.Dense, grad, hess []float64) (split, bool) {
	n, p := X.Dims()
	best := split{gain: minGain}
	found := false

	for j := 0; j < p; j++ {
		var gl, hl, gr, hr float64
		for i := 0; i < n; i++ {
			if X.At(i, j) < 0.5 {
				gl += grad[i]
				hl += hess[i]
			} else {
				gr += grad[i]
				hr += hess[i]
			}
		}
		if hl == 0 || hr == 0 {
			continue
		}
		gain := gl*gl/hl + gr*gr/hr - (gl+gr)*(gl+gr)/(hl+hr)
		if gain > best.gain {
			best = split{feature: j, gain: gain, left: gl / hl, right: gr / hr}
			found = true
		}
	}
	return best, found
}

func evaluateFit(margin, labels []float64) *TrainingReport {
	const eps = 1e-12
	losses := make([]float64, len(labels))
	correct := 0.0
	for i, y := range labels {
		p := math.Min(math.Max(sigmoid(margin[i]), eps), 1-eps)
		losses[i] = -(y*math.Log(p) + (1-y)*math.Log(1-p))
		if (p >= 0.5) == (y == 1) {
			correct++
		}
	}
	n := float64(len(labels))
	return &TrainingReport{
		Samples:  len(labels),
		LogLoss:  floats.Sum(losses) / n,
		Accuracy: correct / n,
	}
}
