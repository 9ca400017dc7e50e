package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bher20/fuelkl/internal/auth"
	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/metrics"
	"github.com/bher20/fuelkl/internal/prices"
)

// RefreshResponse is the response structure for the refresh endpoint.
type RefreshResponse struct {
	Status   string           `json:"status"`
	Path     string           `json:"path,omitempty"`
	Error    string           `json:"error,omitempty"`
	Snapshot *prices.Snapshot `json:"snapshot,omitempty"`
}

// RegisterRefreshHandler exposes POST /internal/refresh, which runs one
// fetch synchronously. Callers need a bearer token whose role may refresh
// prices; with no auth service every call is refused.
func RegisterRefreshHandler(mux *http.ServeMux, u *prices.Updater, guard *auth.Service) {
	const path = "/internal/refresh"
	refresh := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			fail(w, path, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if u == nil {
			fail(w, path, "fetcher not configured (RAPIDAPI_KEY missing)", http.StatusServiceUnavailable)
			return
		}

		snap, err := u.Run(r.Context())
		if err != nil {
			logger.WithModule("api").Errorf("refresh failed: %v", err)
			code := http.StatusBadGateway
			if prices.ExitCode(err) == prices.ExitExtraction {
				code = http.StatusUnprocessableEntity
			}
			metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(RefreshResponse{Status: "error", Error: err.Error()})
			return
		}
		if tok, ok := auth.TokenFromContext(r.Context()); ok {
			logger.WithModule("api").Infof("refresh by token %s (%s)", tok.ID, tok.Name)
		}
		writeJSON(w, path, RefreshResponse{Status: "ok", Path: u.Output(), Snapshot: &snap})
	})

	if guard == nil {
		mux.HandleFunc(path, instrument(path, func(w http.ResponseWriter, r *http.Request) {
			fail(w, path, "refresh requires authentication, none configured", http.StatusUnauthorized)
		}))
		return
	}
	mux.HandleFunc(path, instrument(path, guard.Guard("prices", "refresh", refresh).ServeHTTP))
}
