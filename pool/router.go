package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ooyala/my-sequel-synchrony/internal"
)

// DefaultBackend is the canonical id every unregistered name resolves to.
const DefaultBackend = "default"

// RouterOptions configure a router and the pools it builds. The embedded
// Options are shared by every backend pool.
type RouterOptions struct {
	Options

	// DefaultBackend names the backend unknown names fall back to.
	// Empty means DefaultBackend.
	DefaultBackend string

	// Backends lists the shard names registered at construction, in
	// addition to the default.
	Backends []string
}

// Router shards borrow requests across named backends, delegating every
// operation to one independent Pool per backend. Unknown backend names
// silently route to the default pool, which always exists and can never be
// removed. Safe for concurrent use.
type Router struct {
	factory   Factory
	opts      Options
	defaultID string

	mu    sync.RWMutex
	ids   map[string]string
	pools map[string]*Pool
}

// NewRouter builds a router with one pool per configured backend plus the
// default pool.
func NewRouter(factory Factory, opts RouterOptions) (*Router, error) {
	defaultID := opts.DefaultBackend
	if defaultID == "" {
		defaultID = DefaultBackend
	}

	r := &Router{
		factory:   factory,
		opts:      opts.Options,
		defaultID: defaultID,
		ids:       make(map[string]string),
		pools:     make(map[string]*Pool),
	}

	if err := r.addLocked(defaultID); err != nil {
		return nil, err
	}
	for _, name := range opts.Backends {
		if err := r.addLocked(name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Resolve maps a requested backend name to the canonical id it will be
// served by. Unregistered names resolve to the default backend; this never
// fails.
func (r *Router) Resolve(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.ids[name]; ok {
		return id
	}
	return r.defaultID
}

// Hold borrows a connection from the named backend's pool for the duration
// of fn. See Pool.Hold for the release and broken-connection guarantees.
func (r *Router) Hold(ctx context.Context, name string, caller CallerID, fn func(Conn) error) error {
	return r.pool(name).Hold(ctx, caller, fn)
}

// Acquire borrows a connection from the named backend's pool. Prefer Hold.
func (r *Router) Acquire(ctx context.Context, name string, caller CallerID) (Conn, error) {
	return r.pool(name).Acquire(ctx, caller)
}

// Release returns the caller's connection to the named backend's pool.
func (r *Router) Release(name string, caller CallerID) error {
	return r.pool(name).Release(caller)
}

// AddBackends registers a pool for each name not already known. Idempotent
// per name; already-registered names are left untouched.
func (r *Router) AddBackends(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if err := r.addLocked(name); err != nil {
			return err
		}
	}
	return nil
}

// RemoveBackends unregisters the named backends and disconnects their
// pools. Removing the default backend is a configuration error and nothing
// is removed in that case. Future requests for a removed name fall back to
// the default backend.
func (r *Router) RemoveBackends(names ...string) error {
	r.mu.Lock()
	for _, name := range names {
		if name == r.defaultID {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrRemoveDefaultBackend, name)
		}
	}

	var removed []*Pool
	for _, name := range names {
		id, ok := r.ids[name]
		if !ok {
			continue
		}
		delete(r.ids, name)
		if p, ok := r.pools[id]; ok {
			delete(r.pools, id)
			removed = append(removed, p)
		}
	}
	r.mu.Unlock()

	for _, p := range removed {
		p.Disconnect()
		internal.Info("backend removed", internal.Fields{
			internal.FieldBackend: p.Backend(),
		})
	}
	return nil
}

// Disconnect tears down idle connections and marks in-flight ones across
// every pool, or across the named subset. Each pool is torn down
// independently so one backend cannot block the others.
func (r *Router) Disconnect(names ...string) {
	var targets []*Pool
	r.mu.RLock()
	if len(names) == 0 {
		for _, p := range r.pools {
			targets = append(targets, p)
		}
	} else {
		for _, name := range names {
			id := r.defaultID
			if mapped, ok := r.ids[name]; ok {
				id = mapped
			}
			if p, ok := r.pools[id]; ok {
				targets = append(targets, p)
			}
		}
	}
	r.mu.RUnlock()

	for _, p := range targets {
		p.Disconnect()
	}
}

// Size reports the resolved pool's current occupancy.
func (r *Router) Size(name string) int {
	return r.pool(name).Size()
}

// Backends lists the registered backend names, sorted.
func (r *Router) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ids))
	for name := range r.ids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Router) pool(name string) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[name]
	if !ok {
		id = r.defaultID
	}
	return r.pools[id]
}

// addLocked registers name with its own pool unless already present. The
// pool's factory is pinned to the backend name.
func (r *Router) addLocked(name string) error {
	if _, ok := r.ids[name]; ok {
		return nil
	}
	p, err := New(name, r.factory, r.opts)
	if err != nil {
		return err
	}
	r.ids[name] = name
	r.pools[name] = p
	return nil
}
