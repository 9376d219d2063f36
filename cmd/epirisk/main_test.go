package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"github.com/epi-risk-server/internal/outcome"
	"github.com/epi-risk-server/internal/service"
)

// isolate runs the command against defaults rooted in a temp dir
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("EPIRISK_SCORING_MODEL_DIR", filepath.Join(dir, "models"))
	t.Setenv("EPIRISK_LOGGING_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestScoreCommand(t *testing.T) {
	dir := isolate(t)
	csvPath := writeFile(t, dir, "variants.csv", "RSID,Genotype\nrs3892097,A/A\nrs776746,TT\n")

	out, err := execute(t, "score", "--file", csvPath, "--medication", "codeine", "--scorer", "rules")
	require.NoError(t, err)

	var got domain.RiskAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 1.0, got.Score, 1e-9)
	assert.Equal(t, domain.RiskHigh, got.Label)
	assert.Equal(t, "codeine", got.Medication.Name)
}

func TestScoreCommand_Errors(t *testing.T) {
	dir := isolate(t)
	csvPath := writeFile(t, dir, "variants.csv", "rsid,genotype\nrs3892097,AA\n")

	_, err := execute(t, "score", "--file", csvPath, "--medication", "notadrug", "--scorer", "")
	assert.ErrorIs(t, err, domain.ErrMedicationNotFound)

	_, err = execute(t, "score", "--file", filepath.Join(dir, "missing.csv"), "--medication", "codeine")
	assert.Error(t, err)
}

func TestKnowledgeValidateCommand(t *testing.T) {
	isolate(t)
	embedded, err := knowledge.LoadEmbedded()
	require.NoError(t, err)

	out, err := execute(t, "knowledge", "validate", "--format", "json")
	require.NoError(t, err)
	var stats knowledge.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, embedded.Stats(), stats)

	out, err = execute(t, "knowledge", "validate", "--format", "yaml")
	require.NoError(t, err)
	var fromYAML knowledge.Stats
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, embedded.Stats(), fromYAML)

	_, err = execute(t, "knowledge", "validate", "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "knowledge", "validate", "--format", "json", "--dir", t.TempDir())
	assert.Error(t, err)
}

func TestTrainCommand(t *testing.T) {
	dir := isolate(t)

	export := outcome.Export{Version: outcome.ExportVersion, ExportedAt: time.Now()}
	for i := 0; i < 10; i++ {
		export.Outcomes = append(export.Outcomes,
			&outcome.Outcome{DrugKey: "rxnorm:2670", DrugName: "codeine",
				Tags: []domain.FunctionalTag{"CYP2D6_loss"}, AdverseEvent: true},
			&outcome.Outcome{DrugKey: "rxnorm:2670", DrugName: "codeine",
				Tags: []domain.FunctionalTag{}, AdverseEvent: false},
		)
	}
	raw, err := json.Marshal(export)
	require.NoError(t, err)
	exportPath := writeFile(t, dir, "export.json", string(raw))
	modelDir := filepath.Join(dir, "models")

	out, err := execute(t, "train", "--outcomes", exportPath, "--out", modelDir, "--rounds", "20")
	require.NoError(t, err)

	var report struct {
		ModelVersion string                  `json:"model_version"`
		Metrics      service.TrainingReport `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 20, report.Metrics.Samples)
	assert.Equal(t, 10, report.Metrics.Positives)

	model, err := service.LoadModel(modelDir)
	require.NoError(t, err)
	assert.Equal(t, report.ModelVersion, model.Version)

	csvPath := writeFile(t, dir, "variants.csv", "rsid,genotype\nrs3892097,AA\n")
	out, err = execute(t, "score", "--file", csvPath, "--medication", "codeine", "--scorer", "ml")
	require.NoError(t, err)
	var got domain.RiskAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, domain.ScorerML, got.ScorerUsed)
	assert.Equal(t, model.Version, got.ModelVersion)
	assert.Equal(t, domain.RiskHigh, got.Label)
}

func TestSetupCommands(t *testing.T) {
	dir := isolate(t)
	configPath := filepath.Join(dir, "etc", "config.yaml")

	out, err := execute(t, "setup", "init", "--path", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, configPath)
	assert.FileExists(t, configPath)

	_, err = execute(t, "setup", "init", "--path", configPath)
	assert.Error(t, err)

	clientPath := filepath.Join(dir, "client.json")
	binary := writeFile(t, dir, "epirisk", "#!/bin/sh\n")
	require.NoError(t, os.Chmod(binary, 0755))

	_, err = execute(t, "setup", "mcp-client", "--client-config", clientPath, "--binary", binary)
	require.NoError(t, err)

	out, err = execute(t, "setup", "status", "--client-config", clientPath)
	require.NoError(t, err)
	var status struct {
		Registered bool     `json:"registered"`
		Args       []string `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Registered)
	assert.Equal(t, "mcp", status.Args[0])
}
