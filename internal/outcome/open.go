package outcome

import (
	"fmt"

	"github.com/epi-risk-server/internal/domain"
	"github.com/sirupsen/logrus"
)

// Open creates the store selected by cfg.Driver. The "none" driver (or an
// empty one) yields ErrDisabled.
func Open(cfg domain.OutcomesConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, ErrDisabled
	case DialectSQLite:
		store, err := NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite outcome store: %w", err)
		}
		logger.WithField("path", cfg.SQLitePath).Info("Outcome store ready")
		return store, nil
	case DialectPostgres:
		store, err := NewPostgresStoreFromURL(cfg.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres outcome store: %w", err)
		}
		logger.Info("Outcome store ready (postgres)")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown outcome store driver %q", cfg.Driver)
	}
}
