package shellcache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOffline = errors.New("network unreachable")

// fakeNetwork serves fixed bodies per path and can be switched offline.
type fakeNetwork struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	offline bool
	calls   map[string]int
}

func newFakeNetwork() *fakeNetwork {
	bodies := map[string]string{}
	for _, p := range DefaultConfig().Assets {
		bodies[p] = "asset " + p
	}
	bodies["/prices.json"] = `{"petrol":95,"diesel":85}`
	return &fakeNetwork{bodies: bodies, status: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeNetwork) Fetch(ctx context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.Key()]++
	if f.offline {
		return nil, errOffline
	}
	body, ok := f.bodies[req.URL.Path]
	if !ok {
		return &Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte("not found")}, nil
	}
	status := http.StatusOK
	if s, ok := f.status[req.URL.Path]; ok {
		status = s
	}
	return &Response{Status: status, Header: http.Header{"Content-Type": {"text/plain"}}, Body: []byte(body)}, nil
}

func (f *fakeNetwork) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

func (f *fakeNetwork) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeNetwork) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func activeWorker(t *testing.T, net *fakeNetwork, store Store) *Worker {
	t.Helper()
	w := NewWorker(DefaultConfig(), store, net)
	require.NoError(t, w.Install(context.Background()))
	require.Equal(t, Installed, w.State())
	require.NoError(t, w.Activate(context.Background()))
	require.Equal(t, Activated, w.State())
	require.True(t, w.Claimed())
	return w
}

func TestDecide(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, NetworkFirst, Decide(cfg, "/prices.json"))
	assert.Equal(t, CacheFirst, Decide(cfg, "/prices.json/extra"))
	assert.Equal(t, CacheFirst, Decide(cfg, "/index.html"))
	assert.Equal(t, CacheFirst, Decide(cfg, "/app.js"))
}

func TestInstallStoresEveryAsset(t *testing.T) {
	net := newFakeNetwork()
	store := NewMemoryStore()
	activeWorker(t, net, store)

	for _, p := range DefaultConfig().Assets {
		resp, err := store.Match(context.Background(), "fuelkl-shell-v1", p)
		require.NoError(t, err)
		require.NotNil(t, resp, p)
	}
}

func TestInstallIsAllOrNothing(t *testing.T) {
	net := newFakeNetwork()
	net.status["/icons/icon-512.png"] = http.StatusNotFound
	store := NewMemoryStore()

	w := NewWorker(DefaultConfig(), store, net)
	err := w.Install(context.Background())
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Equal(t, Redundant, w.State())

	resp, err := store.Match(context.Background(), "fuelkl-shell-v1", "/")
	require.NoError(t, err)
	assert.Nil(t, resp, "no asset may be stored after a failed install")

	require.ErrorIs(t, w.Activate(context.Background()), ErrInvalidState)
}

func TestInstallFailsWhenOffline(t *testing.T) {
	net := newFakeNetwork()
	net.setOffline(true)
	w := NewWorker(DefaultConfig(), NewMemoryStore(), net)
	require.ErrorIs(t, w.Install(context.Background()), ErrInstallFailed)
}

func TestLifecycleOutOfOrder(t *testing.T) {
	w := NewWorker(DefaultConfig(), NewMemoryStore(), newFakeNetwork())
	require.ErrorIs(t, w.Activate(context.Background()), ErrInvalidState)
	require.NoError(t, w.Install(context.Background()))
	require.ErrorIs(t, w.Install(context.Background()), ErrInvalidState)
}

func TestCacheFirstServesStoredAssetWithoutNetwork(t *testing.T) {
	net := newFakeNetwork()
	w := activeWorker(t, net, NewMemoryStore())
	installCalls := net.callCount("/index.html")

	net.set("/index.html", "changed on server")
	net.setOffline(true)

	resp, err := w.Handle(context.Background(), NewRequest("/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "asset /index.html", string(resp.Body))
	assert.Equal(t, installCalls, net.callCount("/index.html"))
}

func TestCacheFirstMissGoesToNetworkWithoutStoring(t *testing.T) {
	net := newFakeNetwork()
	net.set("/app.js", "console.log(1)")
	store := NewMemoryStore()
	w := activeWorker(t, net, store)

	resp, err := w.Handle(context.Background(), NewRequest("/app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(resp.Body))

	stored, err := store.Match(context.Background(), "fuelkl-shell-v1", "/app.js")
	require.NoError(t, err)
	assert.Nil(t, stored)

	net.setOffline(true)
	_, err = w.Handle(context.Background(), NewRequest("/app.js"))
	require.ErrorIs(t, err, errOffline)
}

func TestNetworkFirstReturnsLiveAndUpdatesStore(t *testing.T) {
	net := newFakeNetwork()
	store := NewMemoryStore()
	w := activeWorker(t, net, store)

	net.set("/prices.json", `{"petrol":99,"diesel":88}`)
	resp, err := w.Handle(context.Background(), NewRequest("/prices.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"petrol":99,"diesel":88}`, string(resp.Body))

	stored, err := store.Match(context.Background(), "fuelkl-shell-v1", "/prices.json")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, `{"petrol":99,"diesel":88}`, string(stored.Body))
}

func TestNetworkFirstFallsBackWhenOffline(t *testing.T) {
	net := newFakeNetwork()
	w := activeWorker(t, net, NewMemoryStore())

	net.set("/prices.json", `{"petrol":101,"diesel":91}`)
	_, err := w.Handle(context.Background(), NewRequest("/prices.json"))
	require.NoError(t, err)

	net.setOffline(true)
	resp, err := w.Handle(context.Background(), NewRequest("/prices.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"petrol":101,"diesel":91}`, string(resp.Body))
}

func TestNetworkFirstMissWhenNothingStored(t *testing.T) {
	net := newFakeNetwork()
	w := activeWorker(t, net, NewMemoryStore())
	net.setOffline(true)

	// A query string makes a different key that was never stored.
	_, err := w.Handle(context.Background(), NewRequest("/prices.json?v=2"))
	require.ErrorIs(t, err, ErrNotCached)
}

func TestNetworkFirstStoresNonSuccessResponses(t *testing.T) {
	net := newFakeNetwork()
	store := NewMemoryStore()
	w := activeWorker(t, net, store)

	net.status["/prices.json"] = http.StatusInternalServerError
	resp, err := w.Handle(context.Background(), NewRequest("/prices.json"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)

	stored, err := store.Match(context.Background(), "fuelkl-shell-v1", "/prices.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, stored.Status)
}

func TestInactiveWorkerDoesNotIntercept(t *testing.T) {
	net := newFakeNetwork()
	w := NewWorker(DefaultConfig(), NewMemoryStore(), net)
	require.NoError(t, w.Install(context.Background()))

	net.set("/index.html", "live")
	resp, err := w.Handle(context.Background(), NewRequest("/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "live", string(resp.Body))
}

func TestRegistrationKeepsPreviousWorkerOnFailedInstall(t *testing.T) {
	net := newFakeNetwork()
	reg := NewRegistration(NewMemoryStore(), net)
	ctx := context.Background()

	first, err := reg.Register(ctx, DefaultConfig())
	require.NoError(t, err)
	require.Same(t, first, reg.Active())

	next := DefaultConfig()
	next.CacheName = "fuelkl-shell-v2"
	net.setOffline(true)
	_, err = reg.Register(ctx, next)
	require.ErrorIs(t, err, ErrInstallFailed)
	require.Same(t, first, reg.Active())
	assert.Equal(t, Activated, first.State())

	// The old generation still answers offline.
	resp, err := reg.Handle(ctx, NewRequest("/manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, "asset /manifest.json", string(resp.Body))

	net.setOffline(false)
	second, err := reg.Register(ctx, next)
	require.NoError(t, err)
	require.Same(t, second, reg.Active())
	assert.Equal(t, Redundant, first.State())
}

func TestRegistrationWithoutWorkerUsesNetwork(t *testing.T) {
	net := newFakeNetwork()
	reg := NewRegistration(NewMemoryStore(), net)

	resp, err := reg.Handle(context.Background(), NewRequest("/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "asset /index.html", string(resp.Body))
}
