package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bher20/fuelkl/internal/api/swagger"
	"github.com/bher20/fuelkl/internal/auth"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/prices"
	"github.com/bher20/fuelkl/internal/shellcache"
	"github.com/bher20/fuelkl/internal/storage"
)

// Deps carries what the HTTP surface needs. Updater may be nil when no
// upstream credential is configured; the refresh endpoint then answers 503.
// Auth guards the refresh endpoint.
type Deps struct {
	Store   storage.Storage
	Shell   *shellcache.Registration
	Updater *prices.Updater
	Auth    *auth.Service
}

// NewMux constructs the HTTP mux: metrics, health, the JSON API, and the
// shell cache for everything else.
func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Store != nil {
			if err := deps.Store.Ping(r.Context()); err != nil {
				logger.WithModule("api").Warnf("readyz: storage ping failed: %v", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Prices API.
	mux.HandleFunc("/api/prices", handleLatest(deps.Store))
	mux.HandleFunc("/api/prices/history", handleHistory(deps.Store))
	mux.HandleFunc("/api/shell", handleShellStatus(deps.Shell))

	// Internal refresh endpoint for CronJobs / manual refresh.
	RegisterRefreshHandler(mux, deps.Updater, deps.Auth)

	// API documentation.
	mux.Handle("/docs/", http.StripPrefix("/docs", swagger.Handler()))

	// App shell through the offline cache.
	if deps.Shell != nil {
		mux.Handle("/", shellcache.Handler(deps.Shell))
	}

	return mux
}
