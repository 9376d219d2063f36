package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/epi-risk-server/internal/config"
	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"github.com/epi-risk-server/internal/logging"
	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
)

// app holds the wired components shared by the subcommands
type app struct {
	cfg      *domain.Config
	logger   *logrus.Logger
	risk     *service.RiskService
	outcomes outcome.Store
}

type bootOptions struct {
	// stderrLogs keeps stdout free for protocol or command output
	stderrLogs bool
	outcomes   bool
}

func bootstrap(opts bootOptions) (*app, error) {
	var mgr domain.ConfigManager
	mgr, err := config.NewManager(configFile)
	if err != nil {
		return nil, err
	}
	if err := mgr.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := mgr.GetConfig()

	logCfg := cfg.Logging
	if opts.stderrLogs {
		logCfg.Output = "stderr"
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.WithField("config_file", used).Info("Loaded configuration")
	}

	store, err := knowledge.NewStore(knowledge.SourceFromConfig(cfg.Knowledge), logger)
	if err != nil {
		return nil, err
	}

	risk, err := service.NewRiskService(store, service.RiskServiceConfig{
		DefaultScorer: cfg.Scoring.Engine,
		CacheSize:     cfg.Scoring.CacheSize,
	}, logger, mlScorer(cfg.Scoring, logger))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, risk: risk}
	if opts.outcomes {
		a.outcomes, err = outcome.Open(cfg.Outcomes, logger)
		switch {
		case errors.Is(err, outcome.ErrDisabled):
			logger.Info("Outcome store disabled")
		case err != nil:
			return nil, err
		}
	}
	return a, nil
}

// mlScorer always registers the ml kind. Without a model every request
// falls through to the rule scorer.
func mlScorer(cfg domain.ScoringConfig, logger *logrus.Logger) service.Scorer {
	var primary service.Scorer
	model, err := service.LoadModel(cfg.ModelDir)
	switch {
	case err == nil:
		logger.WithFields(logrus.Fields{
			"model_version": model.Version,
			"trees":         len(model.Trees),
		}).Info("Loaded ML model")
		primary = service.NewMLScorer(model)
	case errors.Is(err, service.ErrNoModel):
		logger.WithField("model_dir", cfg.ModelDir).Info("No ML model found, ml requests use the rule scorer")
	default:
		logger.WithError(err).Warn("Failed to load ML model, ml requests use the rule scorer")
	}
	return service.NewResilientScorer(domain.ScorerML, primary, service.NewRuleScorer(), cfg, logger)
}

func (a *app) Close() {
	if a.outcomes != nil {
		if err := a.outcomes.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close outcome store")
		}
	}
}
