// Package channel decouples many concurrent callers from a single serial
// consumer. Callers submit requests and receive an opaque correlation id;
// the consumer dequeues requests in FIFO order and publishes each result
// under its correlation id, where the originating caller is waiting for it.
//
// Results are delivered through a per-correlation buffered channel rather
// than a polled map, so waiting callers never busy-wait and the consumer
// never blocks on publish.
package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrUnknownCorrelation is returned by Await for an id that was never
// issued by Submit or whose result has already been consumed.
var ErrUnknownCorrelation = errors.New("channel: unknown correlation id")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("channel: closed")

// Envelope pairs a request with its correlation id on the ingress queue.
type Envelope[Req any] struct {
	ID  uint64
	Req Req
}

// Channel is a correlation-keyed request/response conduit. Any number of
// goroutines may call Submit, Publish and Await concurrently; exactly one
// consumer is expected to call NextIngress.
type Channel[Req, Res any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    []Envelope[Req] // unbounded FIFO ingress
	pending  map[uint64]chan Res
	seq      atomic.Uint64
	closed   bool
}

// New creates an empty channel.
func New[Req, Res any]() *Channel[Req, Res] {
	c := &Channel[Req, Res]{pending: make(map[uint64]chan Res)}
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// Submit enqueues a request and returns its correlation id. It never
// blocks: the ingress queue is unbounded.
func (c *Channel[Req, Res]) Submit(req Req) (uint64, error) {
	id := c.seq.Add(1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	c.pending[id] = make(chan Res, 1)
	c.queue = append(c.queue, Envelope[Req]{ID: id, Req: req})
	c.mu.Unlock()

	c.notEmpty.Signal()
	return id, nil
}

// NextIngress blocks until a request is available and returns it, or
// returns ok=false once the channel is closed and drained.
func (c *Channel[Req, Res]) NextIngress() (Envelope[Req], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) == 0 && !c.closed {
		c.notEmpty.Wait()
	}
	if len(c.queue) == 0 {
		return Envelope[Req]{}, false
	}

	env := c.queue[0]
	c.queue = c.queue[1:]
	return env, true
}

// Publish stores the result for a correlation id and wakes the awaiting
// caller. Publishing an unknown id is a no-op; publishing the same id
// twice drops the second result.
func (c *Channel[Req, Res]) Publish(id uint64, res Res) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- res:
	default: // already published
	}
}

// Await blocks until the result for id is published, then removes and
// returns it. The wait is bounded only by ctx: the engine itself never
// abandons a correlation id, so callers that want a timeout must bring
// one in the context.
func (c *Channel[Req, Res]) Await(ctx context.Context, id uint64) (Res, error) {
	var zero Res

	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return zero, ErrUnknownCorrelation
	}

	select {
	case res := <-ch:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return res, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close stops accepting submissions and wakes the consumer. Requests
// already enqueued remain dequeueable; NextIngress returns ok=false once
// the queue is empty.
func (c *Channel[Req, Res]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.notEmpty.Broadcast()
}

// PendingResults reports the number of correlation ids with an unconsumed
// result slot. Used by tests to check for leaks.
func (c *Channel[Req, Res]) PendingResults() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
