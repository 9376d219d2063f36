package outcome

import (
	"context"
	"fmt"

	"github.com/epi-risk-server/internal/service"
)

// TrainingSamples converts outcomes into labeled samples for the trainer
func TrainingSamples(outcomes []*Outcome) []service.TrainingSample {
	samples := make([]service.TrainingSample, 0, len(outcomes))
	for _, o := range outcomes {
		samples = append(samples, service.TrainingSample{
			Tags:         append(o.Tags[:0:0], o.Tags...),
			DrugName:     o.DrugName,
			DrugCode:     o.DrugKey,
			AdverseEvent: o.AdverseEvent,
		})
	}
	return samples
}

// LoadTrainingSamples reads every stored outcome as a training sample
func LoadTrainingSamples(ctx context.Context, store Store) ([]service.TrainingSample, error) {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return TrainingSamples(all), nil
}
