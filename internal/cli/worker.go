package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/fuelkl/internal/alerting"
	"github.com/bher20/fuelkl/internal/cron"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/prices"
	"github.com/bher20/fuelkl/internal/storage"
)

func newWorkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Refresh prices now and then on the configured schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := a.newClient()
			if err != nil {
				return err
			}
			st, closeStore, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			err = a.runWorker(ctx, prices.NewUpdater(client, a.cfg.Fetch.Output, st), st)
			if stopped(ctx, err) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringP("output", "o", "", "snapshot file to write (default prices.json)")
	cmd.Flags().String("source-url", "", "upstream price history endpoint")
	cmd.Flags().String("schedule", "", "cron expression or interval in seconds (default every 6h)")
	return cmd
}

// runWorker runs the scheduler until ctx is done. With the postgrespool
// driver every run is guarded by an advisory lock.
func (a *app) runWorker(ctx context.Context, u *prices.Updater, st storage.Storage) error {
	deps := cron.Deps{
		Fetcher:   u,
		Store:     st,
		Alerter:   alerting.NewAlerter(alerting.FromConfig(a.cfg.Alert)),
		Schedule:  a.cfg.Worker.Schedule,
		SourceURL: a.cfg.Fetch.SourceURL,
	}

	if a.cfg.Database.Driver == "postgrespool" {
		locker, err := storage.OpenPostgresLocker(ctx, a.cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open advisory lock pool: %w", err)
		}
		defer locker.Close()
		deps.Locker = locker
		logger.WithModule("cron").Info("advisory locking enabled")
	}

	return cron.Run(ctx, deps)
}
