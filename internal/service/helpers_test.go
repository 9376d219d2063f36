package service

import (
	"io"
	"testing"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testTables(t *testing.T) *knowledge.Tables {
	t.Helper()
	tables, err := knowledge.LoadEmbedded()
	require.NoError(t, err)
	return tables
}

func testDrug(t *testing.T, kb *knowledge.Tables, name string) *domain.DrugPathway {
	t.Helper()
	drug, _, err := kb.ResolveMedication(name, "")
	require.NoError(t, err)
	return drug
}

// pathwayInput runs tags through the pathway filter for drug
func pathwayInput(t *testing.T, kb *knowledge.Tables, drugName string, tags ...domain.FunctionalTag) ScoringInput {
	t.Helper()
	drug := testDrug(t, kb, drugName)
	set := domain.NewTagSet(tags...)
	index := domain.GeneTagIndex{}
	for tag := range set {
		index.Add(tag.Gene(), tag)
	}
	filtered, affected := FilterByPathway(set, index, drug)
	return ScoringInput{Tags: filtered, AffectedGenes: affected, Drug: drug}
}
