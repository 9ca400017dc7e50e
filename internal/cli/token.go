package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/fuelkl/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens for POST /internal/refresh",
	}

	// withAuth opens the configured store and hands an auth service over it
	// to fn. Tokens in the memory store would vanish on exit.
	withAuth := func(cmd *cobra.Command, fn func(svc *auth.Service) error) error {
		if !isSQLDriver(a.cfg.Database.Driver) {
			return fmt.Errorf("tokens need a SQL store, got driver %q", a.cfg.Database.Driver)
		}
		st, closeStore, err := a.openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()
		svc, err := auth.NewService(st)
		if err != nil {
			return err
		}
		return fn(svc)
	}

	var name, role, expires string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a token and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expiresAt, err := auth.ParseExpiry(expires, time.Now().UTC())
			if err != nil {
				return err
			}
			return withAuth(cmd, func(svc *auth.Service) error {
				tok, raw, err := svc.CreateToken(cmd.Context(), name, role, expiresAt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id:    %s\nrole:  %s\ntoken: %s\n", tok.ID, tok.Role, raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label shown in token list")
	create.Flags().StringVar(&role, "role", auth.RoleOperator, "admin, operator or viewer")
	create.Flags().StringVar(&expires, "expires", "never", "never, a duration (36h, 30d, 2w) or a date (2027-01-31)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List issued tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd, func(svc *auth.Service) error {
				toks, err := svc.ListTokens(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tROLE\tEXPIRES\tLAST USED")
				for _, t := range toks {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Role, stamp(t.ExpiresAt, "never"), stamp(t.LastUsedAt, "-"))
				}
				return tw.Flush()
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Delete a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuth(cmd, func(svc *auth.Service) error {
				if err := svc.RevokeToken(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func stamp(t *time.Time, none string) string {
	if t == nil {
		return none
	}
	return t.UTC().Format(time.RFC3339)
}
