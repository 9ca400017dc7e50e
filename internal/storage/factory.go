package storage

import (
	"context"
	"fmt"

	"github.com/bher20/fuelkl/internal/logger"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver string
	DSN    string
}

// Open constructs a Storage based on the given configuration. SQL backends
// are auto-migrated before they are returned.
func Open(ctx context.Context, cfg Config) (Storage, error) {
	log := logger.WithModule("storage")

	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Infof("using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres", "postgrespool":
		log.Infof("using gorm driver=%s", drv)
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("storage migrate: %w", err)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
