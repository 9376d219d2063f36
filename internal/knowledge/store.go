package knowledge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/epi-risk-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// Source produces a complete table set. It is called once at start-up and
// again on every reload.
type Source func() (*Tables, error)

// SourceFromConfig loads from cfg.DataDir, or the embedded tables when it
// is empty, and applies cfg.Version when set.
func SourceFromConfig(cfg domain.KnowledgeConfig) Source {
	return func() (*Tables, error) {
		var (
			t   *Tables
			err error
		)
		if cfg.DataDir == "" {
			t, err = LoadEmbedded()
		} else {
			t, err = LoadDir(cfg.DataDir)
		}
		if err != nil {
			return nil, err
		}
		if cfg.Version != "" {
			t.version = cfg.Version
		}
		return t, nil
	}
}

// Store publishes the current tables. Readers take a Snapshot and use it
// for the whole request; Reload swaps in a fully built replacement.
type Store struct {
	current atomic.Pointer[Tables]
	source  Source
	reload  sync.Mutex
	logger  *logrus.Logger
}

// NewStore performs the initial load. A failure here must stop the process.
func NewStore(source Source, logger *logrus.Logger) (*Store, error) {
	t, err := source()
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	s := &Store{source: source, logger: logger}
	s.current.Store(t)

	logger.WithFields(logrus.Fields{
		"knowledge_version": t.Version(),
		"drugs":             len(t.drugs),
		"single_tags":       len(t.singles),
		"epistasis_pairs":   len(t.pairs),
	}).Info("Knowledge base loaded")
	return s, nil
}

// NewStaticStore wraps already loaded tables; Reload returns the same tables.
func NewStaticStore(t *Tables, logger *logrus.Logger) *Store {
	s := &Store{source: func() (*Tables, error) { return t, nil }, logger: logger}
	s.current.Store(t)
	return s
}

// Snapshot returns the tables current at the time of the call
func (s *Store) Snapshot() *Tables {
	return s.current.Load()
}

// Reload loads a new table set and publishes it. On failure the previous
// tables stay in service and the error is returned.
func (s *Store) Reload() (*Tables, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	previous := s.current.Load()
	t, err := s.source()
	if err != nil {
		s.logger.WithError(err).WithField("knowledge_version", previous.Version()).
			Error("Knowledge base reload failed, keeping current tables")
		return nil, fmt.Errorf("reloading knowledge base: %w", err)
	}
	s.current.Store(t)

	s.logger.WithFields(logrus.Fields{
		"previous_version":  previous.Version(),
		"knowledge_version": t.Version(),
	}).Info("Knowledge base reloaded")
	return t, nil
}
