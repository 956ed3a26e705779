package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
}

// Open constructs a Storage based on the given configuration. GORM backends
// are auto-migrated before being returned.
func Open(ctx context.Context, cfg Config, log logrus.FieldLogger) (Storage, error) {
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Info("storage: using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.WithField("driver", drv).Info("storage: using gorm backend")
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			CloseLogged(st, log)
			return nil, fmt.Errorf("storage migrate: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}

// CloseLogged closes st on an error path, where the close error has no
// caller left to return to.
func CloseLogged(st interface{ Close() error }, log logrus.FieldLogger) {
	if err := st.Close(); err != nil {
		log.WithError(err).Warn("storage: close failed")
	}
}
