// Package correlator matches replies on a multiplexed connection to the
// requests that are waiting for them.
package correlator

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	ErrTimeout = errors.New("request timed out")
	ErrClosed  = errors.New("connection closed")
)

type pending[T any] struct {
	ch chan T
}

// Correlator tracks in-flight requests by a random 32-bit id. Every pending
// entry leaves the map exactly once: whichever of Resolve, the waiter's
// timeout, or Close takes it out under the lock owns it.
type Correlator[T any] struct {
	mu      sync.Mutex
	pending map[uint32]*pending[T]
	closed  chan struct{}
	once    sync.Once
	nextID  func() uint32
}

func New[T any]() *Correlator[T] {
	return &Correlator[T]{
		pending: make(map[uint32]*pending[T]),
		closed:  make(chan struct{}),
		nextID:  rand.Uint32,
	}
}

// Register allocates an id not currently pending and returns it.
func (c *Correlator[T]) Register() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return 0, ErrClosed
	default:
	}

	id := c.nextID()
	for {
		if _, taken := c.pending[id]; !taken {
			break
		}
		id = c.nextID()
	}
	c.pending[id] = &pending[T]{ch: make(chan T, 1)}
	return id, nil
}

func (c *Correlator[T]) take(id uint32) (*pending[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return p, ok
}

// Resolve hands v to the waiter registered under id. It reports false when
// no such waiter exists, which callers treat as a stray reply.
func (c *Correlator[T]) Resolve(id uint32, v T) bool {
	p, ok := c.take(id)
	if !ok {
		return false
	}
	p.ch <- v
	return true
}

// Wait blocks until id is resolved, timeout elapses, ctx is done or the
// correlator is closed. The entry is gone from the map when Wait returns.
func (c *Correlator[T]) Wait(ctx context.Context, id uint32, timeout time.Duration) (T, error) {
	var zero T

	c.mu.Lock()
	p, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return zero, ErrClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var cause error
	select {
	case v := <-p.ch:
		return v, nil
	case <-timer.C:
		cause = ErrTimeout
	case <-ctx.Done():
		cause = ctx.Err()
	case <-c.closed:
		cause = ErrClosed
	}

	if _, mine := c.take(id); mine {
		return zero, cause
	}
	// Resolve won the race after we stopped waiting; the value is buffered.
	return <-p.ch, nil
}

// Forget drops id without waiting, for requests that could not be sent.
func (c *Correlator[T]) Forget(id uint32) {
	c.take(id)
}

// Close fails every pending and future request.
func (c *Correlator[T]) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
	})
}

func (c *Correlator[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator[T]) Pending(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}
