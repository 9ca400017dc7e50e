package api

import (
	"net/http"
	"os"

	"github.com/bher20/fuelkl/internal/ui"
)

// NewOrigin serves the app shell from webRoot (or the embedded shell) and
// the price document from snapshotPath. It is the "network" behind the
// shell cache when no remote origin is configured.
func NewOrigin(webRoot, snapshotPath, dataPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", ui.Handler(webRoot))
	mux.HandleFunc(dataPath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != dataPath {
			http.NotFound(w, r)
			return
		}
		b, err := os.ReadFile(snapshotPath)
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, "no prices fetched yet", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(b)
	})
	return mux
}
