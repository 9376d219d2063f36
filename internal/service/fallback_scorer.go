package service

import (
	"context"
	"errors"
	"time"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ResilientScorer runs a primary scorer behind a circuit breaker and
// answers with the fallback when the primary is missing, failing or tripped.
type ResilientScorer struct {
	kind     domain.ScorerKind
	primary  Scorer
	fallback Scorer
	breaker  *gobreaker.CircuitBreaker
	logger   *logrus.Logger
}

// NewResilientScorer wires primary (may be nil) and fallback
func NewResilientScorer(kind domain.ScorerKind, primary, fallback Scorer, cfg domain.ScoringConfig, logger *logrus.Logger) *ResilientScorer {
	maxRequests := cfg.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	interval := cfg.BreakerInterval
	if interval == 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.BreakerTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(kind) + "-scorer",
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Scorer circuit breaker changed state")
		},
	})

	return &ResilientScorer{
		kind:     kind,
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

// Kind implements Scorer
func (s *ResilientScorer) Kind() domain.ScorerKind { return s.kind }

// Available reports whether a primary scorer is loaded
func (s *ResilientScorer) Available() bool { return s.primary != nil }

// State exposes the breaker state for health reporting
func (s *ResilientScorer) State() gobreaker.State { return s.breaker.State() }

// Score implements Scorer
func (s *ResilientScorer) Score(ctx context.Context, kb *knowledge.Tables, in ScoringInput) (*ScoreReport, error) {
	if s.primary == nil {
		return s.fallback.Score(ctx, kb, in)
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.primary.Score(ctx, kb, in)
	})
	if err == nil {
		return res.(*ScoreReport), nil
	}

	entry := s.logger.WithFields(logrus.Fields{
		"scorer":   s.kind,
		"fallback": s.fallback.Kind(),
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		entry.Debug("Scorer circuit open, using fallback")
	} else {
		entry.WithError(err).Warn("Scorer failed, using fallback")
	}
	return s.fallback.Score(ctx, kb, in)
}
