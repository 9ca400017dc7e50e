package cli

import (
	"context"
	"fmt"

	"github.com/bher20/fuelkl/internal/auth"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/migrate"
	"github.com/bher20/fuelkl/internal/prices"
	"github.com/bher20/fuelkl/internal/storage"
)

func (a *app) newClient() (*prices.Client, error) {
	f := a.cfg.Fetch
	return prices.NewClient(prices.ClientConfig{
		SourceURL: f.SourceURL,
		APIHost:   f.APIHost,
		APIKey:    f.APIKey,
	}, prices.NewHTTPClient(f.Timeout, f.SkipTLSVerify))
}

func isSQLDriver(driver string) bool {
	switch driver {
	case "sqlite", "postgres", "postgrespool":
		return true
	}
	return false
}

// openHistory opens the configured store, applying the embedded migrations
// first when auto_migrate is enabled. The returned func closes the store.
func (a *app) openHistory(ctx context.Context) (storage.Storage, func(), error) {
	db := a.cfg.Database
	if db.AutoMigrate && isSQLDriver(db.Driver) {
		if err := migrate.Up(ctx, db.Driver, db.DSN); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	st, err := storage.Open(ctx, storage.Config{Driver: db.Driver, DSN: db.DSN})
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.WithModule("storage").Warnf("close: %v", err)
		}
	}, nil
}

// newAuth builds the token guard over st, accepting server.refresh_token as
// a bootstrap admin token when set.
func (a *app) newAuth(st storage.Storage) (*auth.Service, error) {
	svc, err := auth.NewService(st)
	if err != nil {
		return nil, err
	}
	if err := svc.SetBootstrapToken(a.cfg.Server.RefreshToken); err != nil {
		return nil, err
	}
	return svc, nil
}
