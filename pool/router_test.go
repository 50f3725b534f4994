package pool

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type routeFactory struct {
	mu      sync.Mutex
	dialed  []string
	perConn map[string]int
}

func (f *routeFactory) create(ctx context.Context, backend string) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialed = append(f.dialed, backend)
	if f.perConn == nil {
		f.perConn = make(map[string]int)
	}
	f.perConn[backend]++
	return &fakeConn{id: len(f.dialed)}, nil
}

func newTestRouter(t *testing.T, backends ...string) (*Router, *routeFactory) {
	t.Helper()
	f := &routeFactory{}
	r, err := NewRouter(f.create, RouterOptions{
		Options:  Options{MaxSize: 2},
		Backends: backends,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r, f
}

func TestResolve(t *testing.T) {
	r, _ := newTestRouter(t, "primary", "replica")

	tests := []struct {
		name     string
		expected string
	}{
		{"primary", "primary"},
		{"replica", "replica"},
		{"default", "default"},
		{"", "default"},
		{"never-registered", "default"},
	}
	for _, tc := range tests {
		if got := r.Resolve(tc.name); got != tc.expected {
			t.Fatalf("Resolve(%q)=%q want %q", tc.name, got, tc.expected)
		}
	}
}

func TestHoldRoutesToResolvedBackend(t *testing.T) {
	r, f := newTestRouter(t, "primary")
	caller := NewCallerID()

	err := r.Hold(context.Background(), "primary", caller, func(Conn) error { return nil })
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
	err = r.Hold(context.Background(), "unknown-shard", caller, func(Conn) error { return nil })
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !reflect.DeepEqual(f.dialed, []string{"primary", "default"}) {
		t.Fatalf("dialed backends %v, want [primary default]", f.dialed)
	}
}

func TestRoutingIsolatesPools(t *testing.T) {
	r, _ := newTestRouter(t, "primary")
	caller := NewCallerID()

	err := r.Hold(context.Background(), "primary", caller, func(Conn) error {
		if got := r.Size("primary"); got != 1 {
			t.Errorf("primary size = %d, want 1", got)
		}
		if got := r.Size("default"); got != 0 {
			t.Errorf("default size = %d, want 0", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}
}

func TestAddBackendsIdempotent(t *testing.T) {
	r, _ := newTestRouter(t)

	if err := r.AddBackends("shard-a", "shard-b"); err != nil {
		t.Fatalf("AddBackends: %v", err)
	}
	before := r.pool("shard-a")
	if err := r.AddBackends("shard-a"); err != nil {
		t.Fatalf("AddBackends: %v", err)
	}
	if r.pool("shard-a") != before {
		t.Fatal("re-adding an existing backend replaced its pool")
	}

	want := []string{"default", "shard-a", "shard-b"}
	if got := r.Backends(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Backends() = %v, want %v", got, want)
	}
}

func TestRemoveDefaultBackendFails(t *testing.T) {
	r, _ := newTestRouter(t, "primary")

	err := r.RemoveBackends("primary", "default")
	if !errors.Is(err, ErrRemoveDefaultBackend) {
		t.Fatalf("expected ErrRemoveDefaultBackend, got %v", err)
	}
	// Nothing was removed.
	if got := r.Resolve("primary"); got != "primary" {
		t.Fatal("primary was removed despite the configuration error")
	}
}

func TestRemoveBackendFallsBackToDefault(t *testing.T) {
	r, f := newTestRouter(t, "primary")
	caller := NewCallerID()

	// Park a connection in the primary pool, release it, then remove the
	// backend; the idle connection must be torn down.
	var primaryConn *fakeConn
	err := r.Hold(context.Background(), "primary", caller, func(c Conn) error {
		primaryConn = c.(*fakeConn)
		return nil
	})
	if err != nil {
		t.Fatalf("Hold: %v", err)
	}

	if err := r.RemoveBackends("primary"); err != nil {
		t.Fatalf("RemoveBackends: %v", err)
	}
	if !primaryConn.isClosed() {
		t.Fatal("removed backend's idle connection was not disconnected")
	}

	// Requests for the removed name silently route to the default pool.
	if got := r.Resolve("primary"); got != "default" {
		t.Fatalf("Resolve(primary) after removal = %q, want default", got)
	}
	err = r.Hold(context.Background(), "primary", caller, func(Conn) error { return nil })
	if err != nil {
		t.Fatalf("Hold after removal: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.perConn["default"] != 1 {
		t.Fatalf("default pool dialed %d times, want 1", f.perConn["default"])
	}

	// Removing an unknown name is a no-op.
	if err := r.RemoveBackends("never-registered"); err != nil {
		t.Fatalf("RemoveBackends unknown name: %v", err)
	}
}

func TestRouterDisconnect(t *testing.T) {
	r, _ := newTestRouter(t, "primary", "replica")

	conns := make(map[string]*fakeConn)
	for _, name := range []string{"primary", "replica", "default"} {
		caller := NewCallerID()
		err := r.Hold(context.Background(), name, caller, func(c Conn) error {
			conns[name] = c.(*fakeConn)
			return nil
		})
		if err != nil {
			t.Fatalf("Hold(%s): %v", name, err)
		}
	}

	// Filtered disconnect touches only the named backend.
	r.Disconnect("replica")
	if !conns["replica"].isClosed() {
		t.Fatal("replica idle connection survived filtered disconnect")
	}
	if conns["primary"].isClosed() || conns["default"].isClosed() {
		t.Fatal("filtered disconnect leaked into other backends")
	}

	r.Disconnect()
	if !conns["primary"].isClosed() || !conns["default"].isClosed() {
		t.Fatal("full disconnect left idle connections open")
	}
}

func TestRouterSharesPoolOptions(t *testing.T) {
	f := &routeFactory{}
	r, err := NewRouter(f.create, RouterOptions{
		Options:  Options{MaxSize: 7},
		Backends: []string{"primary"},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	if err := r.AddBackends("late"); err != nil {
		t.Fatalf("AddBackends: %v", err)
	}
	for _, name := range []string{"default", "primary", "late"} {
		if got := r.pool(name).Capacity(); got != 7 {
			t.Fatalf("pool %q capacity = %d, want 7", name, got)
		}
	}
}

func TestNewRouterRejectsBadOptions(t *testing.T) {
	f := &routeFactory{}
	_, err := NewRouter(f.create, RouterOptions{
		Options: Options{MaxSize: -3},
	})
	if !errors.Is(err, ErrInvalidPoolSize) {
		t.Fatalf("expected ErrInvalidPoolSize, got %v", err)
	}
}
