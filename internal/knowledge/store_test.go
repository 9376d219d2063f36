package knowledge

import (
	"errors"
	"io"
	"sync"
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

func TestNewStore_FailsOnBadSource(t *testing.T) {
	_, err := NewStore(func() (*Tables, error) { return nil, errors.New("boom") }, quietLogger())
	assert.Error(t, err)
}

func TestStore_Reload(t *testing.T) {
	fsys := testFS()
	store, err := NewStore(func() (*Tables, error) { return Load(fsys) }, quietLogger())
	require.NoError(t, err)

	first := store.Snapshot()
	assert.Equal(t, "test-1", first.Version())

	fsys["guidelines.json"].Data = []byte(`{"version": "test-2", "pathway_burden": {"weight": 0.3}}`)
	reloaded, err := store.Reload()
	require.NoError(t, err)
	assert.Equal(t, "test-2", reloaded.Version())
	assert.Same(t, reloaded, store.Snapshot())

	// a snapshot taken earlier is unaffected by the swap
	assert.Equal(t, "test-1", first.Version())
	assert.Equal(t, 0.2, first.PathwayBurden().Value)
}

func TestStore_FailedReloadKeepsTables(t *testing.T) {
	fsys := testFS()
	store, err := NewStore(func() (*Tables, error) { return Load(fsys) }, quietLogger())
	require.NoError(t, err)
	before := store.Snapshot()

	delete(fsys, "drug_gene_map.json")
	_, err = store.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), TableDrugGeneMap)
	assert.Same(t, before, store.Snapshot())
}

func TestStore_ConcurrentReaders(t *testing.T) {
	store, err := NewStore(SourceFromConfig(emptyKnowledgeConfig()), quietLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tables := store.Snapshot()
				_, _, err := tables.ResolveMedication("codeine", "")
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := store.Reload()
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestSourceFromConfig_VersionOverride(t *testing.T) {
	cfg := emptyKnowledgeConfig()
	cfg.Version = "pinned-7"
	tables, err := SourceFromConfig(cfg)()
	require.NoError(t, err)
	assert.Equal(t, "pinned-7", tables.Version())
}

func emptyKnowledgeConfig() domain.KnowledgeConfig {
	return domain.KnowledgeConfig{}
}
