package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/metrics"
	"github.com/bher20/fuelkl/internal/shellcache"
	"github.com/bher20/fuelkl/internal/storage"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 500
)

func writeJSON(w http.ResponseWriter, path string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithModule("api").Errorf("encode response failed: %v", err)
		metrics.RequestErrorsTotal.WithLabelValues(path, "500").Inc()
	}
}

// instrument counts the request and observes its duration under path.
func instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
		}()
		metrics.RequestsTotal.WithLabelValues(path).Inc()
		next(w, r)
	}
}

func fail(w http.ResponseWriter, path, msg string, code int) {
	metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
	http.Error(w, msg, code)
}

// handleLatest serves the newest recorded price snapshot.
func handleLatest(st storage.Storage) http.HandlerFunc {
	const path = "/api/prices"
	return instrument(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			fail(w, path, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if st == nil {
			fail(w, path, "no history store configured", http.StatusNotFound)
			return
		}
		rec, err := st.LatestSnapshot(r.Context())
		if err != nil {
			logger.WithModule("api").Errorf("latest snapshot: %v", err)
			fail(w, path, "internal error", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			fail(w, path, "no prices recorded yet", http.StatusNotFound)
			return
		}
		writeJSON(w, path, rec)
	})
}

// handleHistory serves recorded snapshots, newest first.
func handleHistory(st storage.Storage) http.HandlerFunc {
	const path = "/api/prices/history"
	return instrument(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			fail(w, path, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				fail(w, path, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(v, maxHistoryLimit)
		}

		recs := []storage.PriceRecord{}
		if st != nil {
			list, err := st.ListSnapshots(r.Context(), limit)
			if err != nil {
				logger.WithModule("api").Errorf("list snapshots: %v", err)
				fail(w, path, "internal error", http.StatusInternalServerError)
				return
			}
			recs = append(recs, list...)
		}

		writeJSON(w, path, struct {
			Snapshots []storage.PriceRecord `json:"snapshots"`
		}{Snapshots: recs})
	})
}

// ShellStatus describes the controlling shell cache generation.
type ShellStatus struct {
	CacheName string   `json:"cache_name,omitempty"`
	State     string   `json:"state"`
	Assets    []string `json:"assets,omitempty"`
	DataPath  string   `json:"data_path,omitempty"`
}

func handleShellStatus(reg *shellcache.Registration) http.HandlerFunc {
	const path = "/api/shell"
	return instrument(path, func(w http.ResponseWriter, r *http.Request) {
		status := ShellStatus{State: "none"}
		if reg != nil {
			if wk := reg.Active(); wk != nil {
				cfg := wk.Config()
				status = ShellStatus{
					CacheName: cfg.CacheName,
					State:     wk.State().String(),
					Assets:    cfg.Assets,
					DataPath:  cfg.DataPath,
				}
			}
		}
		writeJSON(w, path, status)
	})
}
