package outcome

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/epi-risk-server/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "outcomes.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleOutcome(patient string) *Outcome {
	return &Outcome{
		TraceID:        "trace-" + patient,
		PatientRef:     patient,
		DrugKey:        "rxnorm:2670",
		DrugName:       "codeine",
		Tags:           []domain.FunctionalTag{"CYP2D6_loss", "CYP3A4_reduced"},
		PredictedScore: 1.0,
		PredictedLabel: domain.RiskHigh,
		AdverseEvent:   true,
		Notes:          "respiratory depression",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "outcomes.db")

	// Act
	store, err := NewSQLiteStore(dbPath, quietLogger())

	// Assert
	require.NoError(t, err)
	defer store.Close()
	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "outcomes.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath, quietLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, sampleOutcome("p1")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(dbPath, quietLogger())
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	o := sampleOutcome("p1")

	// Act
	err := store.Save(ctx, o)

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, o.ID, "ID should be assigned")
	assert.False(t, o.CreatedAt.IsZero(), "CreatedAt should be set")

	got, err := store.Get(ctx, "p1", "rxnorm:2670")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "trace-p1", got.TraceID)
	assert.Equal(t, "codeine", got.DrugName)
	assert.Equal(t, []domain.FunctionalTag{"CYP2D6_loss", "CYP3A4_reduced"}, got.Tags)
	assert.Equal(t, 1.0, got.PredictedScore)
	assert.Equal(t, domain.RiskHigh, got.PredictedLabel)
	assert.True(t, got.AdverseEvent)
	assert.Equal(t, "respiratory depression", got.Notes)
}

func TestSQLiteStore_SaveUpdatesExisting(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	first := sampleOutcome("p1")
	require.NoError(t, store.Save(ctx, first))

	second := sampleOutcome("p1")
	second.AdverseEvent = false
	second.Tags = nil
	second.Notes = "tolerated"
	require.NoError(t, store.Save(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Get(ctx, "p1", "rxnorm:2670")
	require.NoError(t, err)
	assert.False(t, got.AdverseEvent)
	assert.Equal(t, []domain.FunctionalTag{}, got.Tags)
	assert.Equal(t, "tolerated", got.Notes)
}

func TestSQLiteStore_SaveRejectsInvalid(t *testing.T) {
	store := createTestStore(t)

	tests := []struct {
		name   string
		mutate func(o *Outcome)
	}{
		{"Missing patient", func(o *Outcome) { o.PatientRef = " " }},
		{"Missing drug", func(o *Outcome) { o.DrugKey = "" }},
		{"Score out of range", func(o *Outcome) { o.PredictedScore = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := sampleOutcome("p1")
			tt.mutate(o)
			err := store.Save(context.Background(), o)
			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := createTestStore(t)

	got, err := store.Get(context.Background(), "nobody", "rxnorm:2670")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ListPaginationAndDelete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.Save(ctx, sampleOutcome(p)))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "p3", page[0].PatientRef)

	rest, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "p1", rest[0].PatientRef)

	require.NoError(t, store.Delete(ctx, rest[0].ID))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	source := createTestStore(t)
	require.NoError(t, source.Save(ctx, sampleOutcome("p1")))
	require.NoError(t, source.Save(ctx, sampleOutcome("p2")))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	export, err := ReadExport(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ExportVersion, export.Version)
	assert.Equal(t, 2, export.Count)
	assert.Len(t, export.Outcomes, 2)

	target := createTestStore(t)
	require.NoError(t, target.Save(ctx, sampleOutcome("p1")))

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)

	count, err := target.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ImportRejectsGarbage(t *testing.T) {
	store := createTestStore(t)
	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("not json")))
	assert.Error(t, err)
}

func TestMigrationRunner_Version(t *testing.T) {
	store := createTestStore(t)

	runner, err := NewMigrationRunner(store.db, DialectSQLite, quietLogger())
	require.NoError(t, err)

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	assert.NoError(t, runner.Up(), "re-running migrations is a no-op")
}

func TestNewMigrationRunner_UnknownDialect(t *testing.T) {
	store := createTestStore(t)
	_, err := NewMigrationRunner(store.db, "oracle", quietLogger())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	_, err := Open(domain.OutcomesConfig{Driver: "none"}, quietLogger())
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(domain.OutcomesConfig{Driver: "mongo"}, quietLogger())
	assert.Error(t, err)

	store, err := Open(domain.OutcomesConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "o.db")}, quietLogger())
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestTrainingSamples(t *testing.T) {
	o := sampleOutcome("p1")
	samples := TrainingSamples([]*Outcome{o})
	require.Len(t, samples, 1)
	assert.Equal(t, "codeine", samples[0].DrugName)
	assert.Equal(t, "rxnorm:2670", samples[0].DrugCode)
	assert.True(t, samples[0].AdverseEvent)
	assert.Equal(t, o.Tags, samples[0].Tags)

	samples[0].Tags[0] = "changed"
	assert.Equal(t, domain.FunctionalTag("CYP2D6_loss"), o.Tags[0])
}
