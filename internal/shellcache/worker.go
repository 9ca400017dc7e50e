package shellcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/metrics"
)

// State is a worker's lifecycle position.
type State int

const (
	Parsed State = iota
	Installing
	Installed
	Activating
	Activated
	Redundant
)

func (s State) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activating:
		return "activating"
	case Activated:
		return "activated"
	case Redundant:
		return "redundant"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNotCached is returned for a network-first request when the network
	// failed and nothing was stored for it.
	ErrNotCached = errors.New("shellcache: no stored response")
	// ErrInstallFailed wraps the first asset failure of an install.
	ErrInstallFailed = errors.New("shellcache: install failed")
	// ErrInvalidState is returned for a lifecycle signal out of order.
	ErrInvalidState = errors.New("shellcache: invalid lifecycle transition")
)

// Worker intercepts requests for one cache generation. It is driven by three
// signals: Install, Activate and Handle.
type Worker struct {
	cfg   Config
	store Store
	net   Network

	mu      sync.RWMutex
	state   State
	claimed bool
}

func NewWorker(cfg Config, store Store, net Network) *Worker {
	return &Worker{cfg: cfg, store: store, net: net, state: Parsed}
}

func (w *Worker) Config() Config { return w.cfg }

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Claimed reports whether the worker has taken control of clients.
func (w *Worker) Claimed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.claimed
}

func (w *Worker) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidState, from, to, w.state)
	}
	w.state = to
	return nil
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Install fetches every manifest asset and stores them in one unit. Any
// network error or non-2xx asset fails the install, nothing is stored and
// the worker becomes redundant. A successful install does not wait for
// existing clients: the worker may be activated immediately.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.transition(Parsed, Installing); err != nil {
		return err
	}

	entries := make([]Entry, 0, len(w.cfg.Assets))
	for _, path := range w.cfg.Assets {
		req := NewRequest(path)
		resp, err := w.net.Fetch(ctx, req)
		if err != nil {
			w.setState(Redundant)
			return fmt.Errorf("%w: fetch %s: %v", ErrInstallFailed, path, err)
		}
		if !resp.OK() {
			w.setState(Redundant)
			return fmt.Errorf("%w: %s returned status %d", ErrInstallFailed, path, resp.Status)
		}
		entries = append(entries, Entry{Key: req.Key(), Response: resp})
	}

	if err := w.store.PutAll(ctx, w.cfg.CacheName, entries); err != nil {
		w.setState(Redundant)
		return fmt.Errorf("%w: store: %v", ErrInstallFailed, err)
	}

	w.setState(Installed)
	logger.WithModule("shell").Infof("installed %s with %d assets", w.cfg.CacheName, len(entries))
	return nil
}

// Activate moves an installed worker to activated and claims all clients at
// once instead of waiting for them to reload.
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.transition(Installed, Activating); err != nil {
		return err
	}
	w.mu.Lock()
	w.state = Activated
	w.claimed = true
	w.mu.Unlock()
	logger.WithModule("shell").Infof("activated %s", w.cfg.CacheName)
	return nil
}

// Handle answers one intercepted request. A worker that is not activated
// does not intercept: the request goes straight to the network.
func (w *Worker) Handle(ctx context.Context, req *Request) (*Response, error) {
	if w.State() != Activated {
		return w.net.Fetch(ctx, req)
	}

	strategy := Decide(w.cfg, req.URL.Path)
	if strategy == NetworkFirst {
		return w.networkFirst(ctx, req)
	}
	return w.cacheFirst(ctx, req)
}

func cacheable(req *Request) bool {
	return req.Method == "" || req.Method == http.MethodGet
}

func (w *Worker) networkFirst(ctx context.Context, req *Request) (*Response, error) {
	label := NetworkFirst.String()

	resp, netErr := w.net.Fetch(ctx, req)
	if netErr == nil {
		if cacheable(req) {
			// Store failures never affect the live response.
			if err := w.store.Put(ctx, w.cfg.CacheName, req.Key(), resp.Clone()); err != nil {
				logger.WithModule("shell").Warnf("store %s: %v", req.Key(), err)
			}
		}
		metrics.ShellRequestsTotal.WithLabelValues(label, "network").Inc()
		return resp, nil
	}

	var cached *Response
	if cacheable(req) {
		var err error
		cached, err = w.store.Match(ctx, w.cfg.CacheName, req.Key())
		if err != nil {
			metrics.ShellRequestsTotal.WithLabelValues(label, "error").Inc()
			return nil, err
		}
	}
	if cached == nil {
		metrics.ShellRequestsTotal.WithLabelValues(label, "miss").Inc()
		return nil, fmt.Errorf("%w for %s: %v", ErrNotCached, req.Key(), netErr)
	}
	metrics.ShellRequestsTotal.WithLabelValues(label, "cache").Inc()
	return cached, nil
}

func (w *Worker) cacheFirst(ctx context.Context, req *Request) (*Response, error) {
	label := CacheFirst.String()

	if cacheable(req) {
		cached, err := w.store.Match(ctx, w.cfg.CacheName, req.Key())
		if err != nil {
			metrics.ShellRequestsTotal.WithLabelValues(label, "error").Inc()
			return nil, err
		}
		if cached != nil {
			metrics.ShellRequestsTotal.WithLabelValues(label, "cache").Inc()
			return cached, nil
		}
	}

	// Misses are not written back; only install and the data path populate the store.
	resp, err := w.net.Fetch(ctx, req)
	if err != nil {
		metrics.ShellRequestsTotal.WithLabelValues(label, "error").Inc()
		return nil, err
	}
	metrics.ShellRequestsTotal.WithLabelValues(label, "network").Inc()
	return resp, nil
}
