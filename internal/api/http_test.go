package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/fuelkl/internal/auth"
	"github.com/bher20/fuelkl/internal/prices"
	"github.com/bher20/fuelkl/internal/shellcache"
	"github.com/bher20/fuelkl/internal/storage"
)

type testEnv struct {
	mux      *http.ServeMux
	store    *storage.MemoryStorage
	snapshot string
	// operator and viewer are raw bearer tokens issued for the test.
	operator string
	viewer   string
}

func newTestEnv(t *testing.T, updater func(snapshot string, st storage.Storage) *prices.Updater) *testEnv {
	t.Helper()
	snapshot := filepath.Join(t.TempDir(), "prices.json")
	require.NoError(t, prices.WriteSnapshot(snapshot, prices.Snapshot{Petrol: 106.5, Diesel: 95.4, UpdatedAt: "2026-10-18"}))

	st := storage.NewMemory()
	cfg := shellcache.DefaultConfig()
	origin := NewOrigin("", snapshot, cfg.DataPath)
	reg := shellcache.NewRegistration(shellcache.NewStorageStore(st), shellcache.HandlerNetwork{Handler: origin})
	_, err := reg.Register(context.Background(), cfg)
	require.NoError(t, err)

	svc, err := auth.NewService(st)
	require.NoError(t, err)
	_, operator, err := svc.CreateToken(context.Background(), "scheduler", auth.RoleOperator, nil)
	require.NoError(t, err)
	_, viewer, err := svc.CreateToken(context.Background(), "dashboard", auth.RoleViewer, nil)
	require.NoError(t, err)

	deps := Deps{Store: st, Shell: reg, Auth: svc}
	if updater != nil {
		deps.Updater = updater(snapshot, st)
	}
	return &testEnv{mux: NewMux(deps), store: st, snapshot: snapshot, operator: operator, viewer: viewer}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	return e.doAs(method, target, "")
}

func (e *testEnv) doAs(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	for path, body := range map[string]string{"/healthz": "ok", "/readyz": "ready", "/livez": "live"} {
		rec := env.do(http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, body, rec.Body.String(), path)
	}
}

func TestShellServesPricesAndAssets(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/prices.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap prices.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 106.5, snap.Petrol)

	// The live document changes and network-first picks it up.
	require.NoError(t, prices.WriteSnapshot(env.snapshot, prices.Snapshot{Petrol: 107, Diesel: 96, UpdatedAt: "2026-10-19"}))
	rec = env.do(http.MethodGet, "/prices.json")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 107.0, snap.Petrol)

	rec = env.do(http.MethodGet, "/index.html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fuel prices")

	rec = env.do(http.MethodGet, "/api/shell")
	var status ShellStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "fuelkl-shell-v1", status.CacheName)
	assert.Equal(t, "activated", status.State)
}

func TestLatestAndHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/api/prices")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ctx := context.Background()
	base := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, env.store.SaveSnapshot(ctx, storage.PriceRecord{
			ID:        string(rune('a' + i)),
			Petrol:    100 + float64(i),
			Diesel:    90 + float64(i),
			FetchedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	rec = env.do(http.MethodGet, "/api/prices")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest storage.PriceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, "c", latest.ID)

	rec = env.do(http.MethodGet, "/api/prices/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Snapshots []storage.PriceRecord `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Snapshots, 2)
	assert.Equal(t, "c", hist.Snapshots[0].ID)

	rec = env.do(http.MethodGet, "/api/prices/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/prices")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefreshWithoutUpdater(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.doAs(http.MethodPost, "/internal/refresh", env.operator)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.doAs(http.MethodGet, "/internal/refresh", env.operator)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func newUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func updaterFor(t *testing.T, upstream *httptest.Server) func(string, storage.Storage) *prices.Updater {
	return func(snapshot string, st storage.Storage) *prices.Updater {
		c, err := prices.NewClient(prices.ClientConfig{SourceURL: upstream.URL, APIHost: "h", APIKey: "k"}, upstream.Client())
		require.NoError(t, err)
		return prices.NewUpdater(c, snapshot, st)
	}
}

func TestRefreshRunsFetch(t *testing.T) {
	upstream := newUpstream(t, `{"petrol":"108.20","diesel":"97.10","updated":"2026-10-19"}`)
	env := newTestEnv(t, updaterFor(t, upstream))

	rec := env.doAs(http.MethodPost, "/internal/refresh", env.operator)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Snapshot)
	assert.Equal(t, 108.2, resp.Snapshot.Petrol)

	written, err := prices.ReadSnapshot(env.snapshot)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", written.UpdatedAt)

	rec = env.do(http.MethodGet, "/api/prices")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshExtractionFailure(t *testing.T) {
	upstream := newUpstream(t, `{"status":"ok"}`)
	env := newTestEnv(t, updaterFor(t, upstream))

	rec := env.doAs(http.MethodPost, "/internal/refresh", env.operator)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	// The previous snapshot is untouched.
	b, err := os.ReadFile(env.snapshot)
	require.NoError(t, err)
	assert.Contains(t, string(b), "106.5")
}

func TestRefreshRequiresToken(t *testing.T) {
	var hits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"petrol":"108.20","diesel":"97.10"}`))
	}))
	t.Cleanup(upstream.Close)
	env := newTestEnv(t, updaterFor(t, upstream))

	rec := env.do(http.MethodPost, "/internal/refresh")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.doAs(http.MethodPost, "/internal/refresh", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.doAs(http.MethodPost, "/internal/refresh", env.viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, hits)

	// The snapshot is untouched by refused calls.
	written, err := prices.ReadSnapshot(env.snapshot)
	require.NoError(t, err)
	assert.Equal(t, 106.5, written.Petrol)
}

func TestRefreshWithoutAuthService(t *testing.T) {
	mux := NewMux(Deps{Store: storage.NewMemory()})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/refresh", nil)
	req.Header.Set("Authorization", "Bearer anything")
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOriginWithoutSnapshot(t *testing.T) {
	origin := NewOrigin("", filepath.Join(t.TempDir(), "missing.json"), "/prices.json")
	rec := httptest.NewRecorder()
	origin.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prices.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocs(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/docs/openapi.yaml")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/prices/history")
}
