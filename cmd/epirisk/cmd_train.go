package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
)

var trainFlags struct {
	outcomes     string
	fromStore    bool
	out          string
	rounds       int
	learningRate float64
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the ML scorer from recorded outcomes",
	Long: `Fits a gradient-boosted model on recorded outcomes, read either from an
outcome export file or from the configured outcome store, and writes it
under --out/<version>/ and --out/latest/. A running server picks the new
model up on restart.`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainFlags.outcomes, "outcomes", "", "outcome export JSON file")
	f.BoolVar(&trainFlags.fromStore, "from-store", false, "read outcomes from the configured outcome store")
	f.StringVar(&trainFlags.out, "out", "", "model directory (default: scoring.model_dir)")
	f.IntVar(&trainFlags.rounds, "rounds", 100, "boosting rounds")
	f.Float64Var(&trainFlags.learningRate, "learning-rate", 0.1, "shrinkage applied to each tree")
	trainCmd.MarkFlagsMutuallyExclusive("outcomes", "from-store")
	trainCmd.MarkFlagsOneRequired("outcomes", "from-store")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(bootOptions{stderrLogs: true, outcomes: trainFlags.fromStore})
	if err != nil {
		return err
	}
	defer a.Close()

	var samples []service.TrainingSample
	if trainFlags.fromStore {
		if a.outcomes == nil {
			return errors.New("--from-store needs outcomes.driver set to sqlite or postgres")
		}
		if samples, err = outcome.LoadTrainingSamples(cmd.Context(), a.outcomes); err != nil {
			return err
		}
	} else {
		if samples, err = readExportSamples(trainFlags.outcomes); err != nil {
			return err
		}
	}

	model, err := service.TrainModel(a.risk.Knowledge(), samples, service.TrainConfig{
		Rounds:       trainFlags.rounds,
		LearningRate: trainFlags.learningRate,
	}, time.Now())
	if err != nil {
		return err
	}

	dir := trainFlags.out
	if dir == "" {
		dir = a.cfg.Scoring.ModelDir
	}
	path, err := service.SaveModel(dir, model)
	if err != nil {
		return err
	}

	a.logger.WithFields(logrus.Fields{
		"model_version": model.Version,
		"path":          path,
		"samples":       model.Metrics.Samples,
		"skipped":       model.Metrics.Skipped,
		"log_loss":      model.Metrics.LogLoss,
	}).Info("Model trained")
	return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
		"model_version": model.Version,
		"path":          path,
		"metrics":       model.Metrics,
	})
}

func readExportSamples(path string) ([]service.TrainingSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open outcome export: %w", err)
	}
	defer f.Close()

	export, err := outcome.ReadExport(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return outcome.TrainingSamples(export.Outcomes), nil
}
