package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/fuelkl/internal/api"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/prices"
	"github.com/bher20/fuelkl/internal/shellcache"
)

const registerRetry = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the offline-first app shell, the price API and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.WithModule("api")

			st, closeStore, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			shellCfg := shellcache.DefaultConfig()
			network, err := a.shellNetwork(shellCfg)
			if err != nil {
				return err
			}
			reg := shellcache.NewRegistration(shellcache.NewStorageStore(st), network)
			if _, err := reg.Register(ctx, shellCfg); err != nil {
				log.Warnf("shell install failed, serving from network until it succeeds: %v", err)
				go keepRegistering(ctx, reg, shellCfg)
			}

			// Without a credential the server still runs; refresh answers 503.
			var updater *prices.Updater
			if client, err := a.newClient(); err == nil {
				updater = prices.NewUpdater(client, a.cfg.Fetch.Output, st)
			} else {
				log.Warnf("price refresh disabled: %v", err)
			}

			if withWorker && updater != nil {
				go func() {
					if err := a.runWorker(ctx, updater, st); err != nil && !stopped(ctx, err) {
						logger.WithModule("cron").Errorf("worker stopped: %v", err)
					}
				}()
			}

			guard, err := a.newAuth(st)
			if err != nil {
				return err
			}

			mux := api.NewMux(api.Deps{Store: st, Shell: reg, Updater: updater, Auth: guard})
			return listen(ctx, ":"+a.cfg.Server.Port, mux)
		},
	}

	cmd.Flags().String("port", "", "listen port (default 8000)")
	cmd.Flags().String("web-root", "", "directory of shell assets (default embedded shell)")
	cmd.Flags().String("origin", "", "remote origin to proxy instead of the local shell")
	cmd.Flags().StringP("output", "o", "", "snapshot file served as the price document")
	cmd.Flags().String("schedule", "", "refresh schedule for --worker")
	cmd.Flags().BoolVar(&withWorker, "worker", false, "also run the scheduled refresh in this process")
	return cmd
}

// shellNetwork returns the origin behind the shell cache: a remote origin
// when configured, otherwise the local shell and snapshot file.
func (a *app) shellNetwork(cfg shellcache.Config) (shellcache.Network, error) {
	srv := a.cfg.Server
	if srv.OriginURL != "" {
		return shellcache.NewHTTPNetwork(srv.OriginURL, prices.NewHTTPClient(a.cfg.Fetch.Timeout, false))
	}
	return shellcache.HandlerNetwork{Handler: api.NewOrigin(srv.WebRoot, a.cfg.Fetch.Output, cfg.DataPath)}, nil
}

func keepRegistering(ctx context.Context, reg *shellcache.Registration, cfg shellcache.Config) {
	ticker := time.NewTicker(registerRetry)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reg.Register(ctx, cfg); err != nil {
				logger.WithModule("shell").Warnf("shell install retry failed: %v", err)
				continue
			}
			return
		}
	}
}

func listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithModule("api").Infof("fuelkl listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
