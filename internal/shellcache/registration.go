package shellcache

import (
	"context"
	"sync"

	"github.com/bher20/fuelkl/internal/logger"
)

// Registration tracks the active worker for a scope. A new worker replaces
// the active one only after it installed successfully.
type Registration struct {
	store Store
	net   Network

	mu     sync.RWMutex
	active *Worker
}

func NewRegistration(store Store, net Network) *Registration {
	return &Registration{store: store, net: net}
}

// Register installs a worker for cfg and, on success, activates it right
// away. On failure the previously active worker, if any, keeps serving.
func (r *Registration) Register(ctx context.Context, cfg Config) (*Worker, error) {
	w := NewWorker(cfg, r.store, r.net)
	if err := w.Install(ctx); err != nil {
		logger.WithModule("shell").Warnf("register %s: %v", cfg.CacheName, err)
		return nil, err
	}
	if err := w.Activate(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev := r.active
	r.active = w
	r.mu.Unlock()

	if prev != nil {
		prev.setState(Redundant)
	}
	return w, nil
}

// Active returns the controlling worker or nil.
func (r *Registration) Active() *Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Handle routes req through the active worker, or to the network when no
// worker controls the scope yet.
func (r *Registration) Handle(ctx context.Context, req *Request) (*Response, error) {
	if w := r.Active(); w != nil {
		return w.Handle(ctx, req)
	}
	return r.net.Fetch(ctx, req)
}
