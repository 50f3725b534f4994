// Package pool implements a bounded pool of reusable backend connections
// shared by many goroutines, plus a router that shards borrow requests
// across several named backends. Callers borrow a connection for the
// duration of an operation and return it when done; when the pool is at
// capacity the caller parks on a FIFO waiter queue until a peer releases.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ooyala/my-sequel-synchrony/internal"
)

// DefaultMaxSize is the pool capacity used when Options.MaxSize is zero.
const DefaultMaxSize = 4

// Options configure a single pool. The zero value means a LIFO pool of
// DefaultMaxSize connections with no liveness probe.
type Options struct {
	MaxSize int
	Policy  RecyclingPolicy
	Alive   Liveness
}

type waiter struct {
	ready chan struct{}
}

// Pool owns a bounded set of connections for one backend. A connection is
// owned at any instant by at most one of: the idle set, exactly one caller,
// or the pending-disconnect set. Safe for concurrent use.
type Pool struct {
	backend string
	factory Factory
	maxSize int
	policy  RecyclingPolicy
	alive   Liveness

	mu         sync.Mutex
	idle       []Conn
	checkedOut map[CallerID]Conn
	pending    map[Conn]struct{}
	waiters    []*waiter
	creating   int // slots reserved for dials in flight outside the lock
}

// New builds a pool for one backend. Connections are created lazily on first
// demand, never eagerly.
func New(backend string, factory Factory, opts Options) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("factory is required")
	}
	if opts.MaxSize == 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, opts.MaxSize)
	}

	return &Pool{
		backend:    backend,
		factory:    factory,
		maxSize:    opts.MaxSize,
		policy:     opts.Policy,
		alive:      opts.Alive,
		checkedOut: make(map[CallerID]Conn),
		pending:    make(map[Conn]struct{}),
	}, nil
}

// Acquire returns a connection owned by caller. If caller already owns one,
// that same connection is returned immediately, so nested borrows within one
// logical operation never wait. Otherwise the caller takes an idle
// connection, dials a new one while under capacity, or parks FIFO until a
// peer releases. Cancelling ctx while parked removes the caller from the
// queue and forwards any wake-up it had already received.
func (p *Pool) Acquire(ctx context.Context, caller CallerID) (Conn, error) {
	p.mu.Lock()
	if c, ok := p.checkedOut[caller]; ok {
		p.mu.Unlock()
		return c, nil
	}

	for {
		c, err := p.availableLocked(ctx)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		if c != nil {
			p.checkedOut[caller] = c
			internal.Debug("connection checked out", internal.Fields{
				internal.FieldBackend: p.backend,
				internal.FieldCaller:  string(caller),
				internal.FieldConns:   len(p.checkedOut),
			})
			p.mu.Unlock()
			return c, nil
		}

		w := &waiter{ready: make(chan struct{})}
		p.waiters = append(p.waiters, w)
		p.mu.Unlock()

		select {
		case <-w.ready:
			p.mu.Lock()
		case <-ctx.Done():
			p.mu.Lock()
			p.dropWaiterLocked(w)
			p.mu.Unlock()
			return nil, ctx.Err()
		}
	}
}

// availableLocked hands back one connection if the pool can supply one right
// now, or nil when the caller must wait. Called with p.mu held; temporarily
// releases it around the factory dial.
func (p *Pool) availableLocked(ctx context.Context) (Conn, error) {
	if c, ok := p.popIdleLocked(); ok {
		return c, nil
	}

	if p.sizeLocked() >= p.maxSize {
		p.sweepDeadCallersLocked()
		if c, ok := p.popIdleLocked(); ok {
			return c, nil
		}
		if p.sizeLocked() >= p.maxSize {
			return nil, nil
		}
	}

	// Reserve the slot before dialing so concurrent acquires cannot
	// overshoot maxSize while the lock is down.
	p.creating++
	p.mu.Unlock()
	c, err := p.factory(ctx, p.backend)
	p.mu.Lock()
	p.creating--
	if err != nil {
		// The failed dial frees a slot; pass it to the next waiter.
		p.wakeOneLocked()
		return nil, &FactoryError{Backend: p.backend, Err: err}
	}
	return c, nil
}

// Release returns the caller's connection to the pool and wakes the waiter
// at the head of the queue, if any. Must be called exactly once per
// successful Acquire. Releasing without owning a connection is a usage
// error and leaves pool state untouched.
func (p *Pool) Release(caller CallerID) error {
	p.mu.Lock()
	c, ok := p.checkedOut[caller]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: caller %s on backend %q", ErrNotCheckedOut, caller, p.backend)
	}
	delete(p.checkedOut, caller)

	_, doomed := p.pending[c]
	if doomed || p.policy == DisconnectAlways {
		delete(p.pending, c)
		p.wakeOneLocked()
		p.mu.Unlock()
		p.closeConn(c)
		return nil
	}

	p.pushIdleLocked(c)
	p.wakeOneLocked()
	p.mu.Unlock()
	return nil
}

// Hold is the entry point ordinary callers use: it wraps acquire, the
// operation, and release, guaranteeing release on every exit path. If the
// operation reports ErrConnBroken the connection is discarded instead of
// recycled, one waiter is woken to fill the freed slot, and the error
// surfaces unchanged. A nested Hold by a caller that already owns a
// connection runs the operation directly; the outermost frame releases.
func (p *Pool) Hold(ctx context.Context, caller CallerID, fn func(Conn) error) error {
	p.mu.Lock()
	if c, ok := p.checkedOut[caller]; ok {
		p.mu.Unlock()
		return fn(c)
	}
	p.mu.Unlock()

	c, err := p.Acquire(ctx, caller)
	if err != nil {
		return err
	}

	opErr := fn(c)
	if errors.Is(opErr, ErrConnBroken) {
		p.discard(caller, c)
		return opErr
	}
	if relErr := p.Release(caller); relErr != nil && opErr == nil {
		return relErr
	}
	return opErr
}

// Disconnect atomically swaps out the idle set and tears those connections
// down, then marks every checked-out connection so its next Release closes
// it instead of recycling. Acquires that arrive afterwards dial fresh
// connections transparently.
func (p *Pool) Disconnect() {
	p.mu.Lock()
	drained := p.idle
	p.idle = nil
	for _, c := range p.checkedOut {
		p.pending[c] = struct{}{}
	}
	n := len(drained)
	inUse := len(p.checkedOut)
	p.mu.Unlock()

	for _, c := range drained {
		p.closeConn(c)
	}
	internal.Debug("pool disconnected", internal.Fields{
		internal.FieldBackend: p.backend,
		internal.FieldIdle:    n,
		internal.FieldConns:   inUse,
	})
}

// Size reports how many connections the pool currently accounts for: idle,
// checked out, and dials in flight. Never exceeds the configured capacity.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizeLocked()
}

// Available reports how many idle connections can be handed out without
// dialing or waiting.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Capacity returns the fixed maximum pool size.
func (p *Pool) Capacity() int {
	return p.maxSize
}

// Backend returns the backend name this pool dials.
func (p *Pool) Backend() string {
	return p.backend
}

func (p *Pool) sizeLocked() int {
	return len(p.idle) + len(p.checkedOut) + p.creating
}

func (p *Pool) popIdleLocked() (Conn, bool) {
	n := len(p.idle)
	if n == 0 {
		return nil, false
	}
	c := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return c, true
}

func (p *Pool) pushIdleLocked(c Conn) {
	if p.policy == RecycleFIFO {
		// Queue mode: released connections go to the front so the pop end
		// always yields the longest-idle connection.
		p.idle = append([]Conn{c}, p.idle...)
		return
	}
	p.idle = append(p.idle, c)
}

// wakeOneLocked resumes the waiter at the head of the queue. Exactly one
// waiter is released per call, preserving FIFO order under contention.
func (p *Pool) wakeOneLocked() {
	if len(p.waiters) == 0 {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	close(w.ready)
}

// dropWaiterLocked removes a cancelled waiter from the queue. If the waiter
// was already woken, the wake-up is forwarded to the next in line so a
// release is never lost to a racing cancellation.
func (p *Pool) dropWaiterLocked(w *waiter) {
	for i, queued := range p.waiters {
		if queued == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
	select {
	case <-w.ready:
		p.wakeOneLocked()
	default:
	}
}

// sweepDeadCallersLocked reclaims connections whose owners terminated
// without releasing. Runs only when the pool is at capacity and a liveness
// probe was configured; reclaimed connections rejoin the idle set.
func (p *Pool) sweepDeadCallersLocked() {
	if p.alive == nil {
		return
	}
	reclaimed := 0
	for id, c := range p.checkedOut {
		if p.alive(id) {
			continue
		}
		delete(p.checkedOut, id)
		if _, doomed := p.pending[c]; doomed || p.policy == DisconnectAlways {
			delete(p.pending, c)
			p.closeConn(c)
		} else {
			p.pushIdleLocked(c)
		}
		reclaimed++
	}
	if reclaimed > 0 {
		internal.Warn("reclaimed connections from dead callers", internal.Fields{
			internal.FieldBackend: p.backend,
			internal.FieldConns:   reclaimed,
		})
	}
}

// discard removes a broken connection from the books and closes it. The
// freed slot goes to the next waiter, who will dial a fresh connection.
func (p *Pool) discard(caller CallerID, c Conn) {
	p.mu.Lock()
	delete(p.checkedOut, caller)
	delete(p.pending, c)
	p.wakeOneLocked()
	p.mu.Unlock()
	p.closeConn(c)
}

// closeConn tears a connection down best-effort. Bookkeeping is always
// updated before this runs, so a failing Close cannot corrupt pool state.
func (p *Pool) closeConn(c Conn) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		internal.Warn("connection teardown failed", internal.Fields{
			internal.FieldBackend: p.backend,
			internal.FieldError:   err.Error(),
		})
	}
}
