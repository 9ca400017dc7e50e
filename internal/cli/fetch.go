package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/prices"
)

func newFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the latest petrol and diesel prices once and write the snapshot file",
		Long: `Fetch the latest petrol and diesel prices once and write the snapshot file.

Exit status: 0 on success, 1 when RAPIDAPI_KEY is missing, 2 when the
prices could not be extracted, 3 on any other failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// The credential is checked before any network or database work.
			client, err := a.newClient()
			if err != nil {
				return err
			}
			// The history record is best-effort; the snapshot file is what counts.
			st, closeStore, err := a.openHistory(ctx)
			if err != nil {
				logger.WithModule("fetch").Warnf("price history disabled: %v", err)
				st = nil
			} else {
				defer closeStore()
			}

			u := prices.NewUpdater(client, a.cfg.Fetch.Output, st)
			snap, err := u.Run(ctx)
			if err != nil {
				return err
			}

			b, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %s\n", u.Output(), b)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "snapshot file to write (default prices.json)")
	cmd.Flags().String("source-url", "", "upstream price history endpoint")
	cmd.Flags().Duration("timeout", 0, "upstream request timeout (default 30s)")
	return cmd
}
