// Package cli wires the fuelkl commands together.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bher20/fuelkl/internal/config"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/prices"
)

// version is injected at build time via -ldflags.
var version = "dev"

// flagKeys maps command line flags onto configuration keys. Flags only
// override the environment and config file when they are set explicitly.
var flagKeys = map[string]string{
	"log-level":  "log_level",
	"output":     "fetch.output",
	"source-url": "fetch.source_url",
	"timeout":    "fetch.timeout",
	"port":       "server.port",
	"web-root":   "server.web_root",
	"origin":     "server.origin_url",
	"db-driver":  "database.driver",
	"db-dsn":     "database.dsn",
	"schedule":   "worker.schedule",
}

type app struct {
	cfgFile string
	cfg     config.Config
}

// NewRootCmd builds the fuelkl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "fuelkl",
		Short:         "Kerala fuel prices: fetcher, offline-first web shell and scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./fuelkl.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("db-driver", "", "history store driver: memory, sqlite, postgres, postgrespool")
	root.PersistentFlags().String("db-dsn", "", "history store DSN")

	root.AddCommand(newFetchCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newWorkerCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newTokenCmd(a))

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	v := config.New()
	if err := bindFlags(v, cmd); err != nil {
		return err
	}
	cfg, err := config.Load(v, a.cfgFile)
	if err != nil {
		return &prices.ConfigError{Msg: err.Error()}
	}
	a.cfg = cfg
	return logger.Init(cfg.LogLevel)
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteContext runs the command tree with the given context.
func ExecuteContext(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// ExitCode maps a command error onto the process exit status.
func ExitCode(err error) int {
	return prices.ExitCode(err)
}

// stopped reports whether err only says that a long-running command was
// asked to stop. fetch never uses it: an interrupted fetch is a failure.
func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}
