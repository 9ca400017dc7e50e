package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/fuelkl/internal/migrate"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the history store schema",
	}

	sub := func(use, short string, fn func(ctx context.Context, driver, dsn string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db := a.cfg.Database
				if !isSQLDriver(db.Driver) {
					return fmt.Errorf("migrations need a SQL driver, got %q", db.Driver)
				}
				return fn(cmd.Context(), db.Driver, db.DSN)
			},
		}
	}

	cmd.AddCommand(sub("up", "Apply all pending migrations", migrate.Up))
	cmd.AddCommand(sub("down", "Roll back the latest migration", migrate.Down))
	cmd.AddCommand(sub("status", "Show applied and pending migrations", migrate.Status))
	return cmd
}
