package dispatch

import (
	"context"
	"sync"

	"github.com/rbright/aperture/internal/protocol"
)

// Result is what a handler hands back: either a response to send now, or a
// Deferred that will be resolved once an asynchronous collaborator finishes.
type Result struct {
	resp  protocol.Response
	later *Deferred
}

// Respond answers immediately.
func Respond(resp protocol.Response) Result {
	return Result{resp: resp}
}

// Defer answers later through d.
func Defer(d *Deferred) Result {
	return Result{later: d}
}

// Immediate returns the response of a Respond result.
func (r Result) Immediate() (protocol.Response, bool) {
	if r.later != nil || r.resp.IsZero() {
		return protocol.Response{}, false
	}
	return r.resp, true
}

// Deferred returns the future of a Defer result.
func (r Result) Deferred() (*Deferred, bool) {
	return r.later, r.later != nil
}

func (r Result) empty() bool {
	return r.later == nil && r.resp.IsZero()
}

// Deferred is a single-assignment response bound to one request.
type Deferred struct {
	mu        sync.Mutex
	done      chan struct{}
	resp      protocol.Response
	resolved  bool
	taken     bool
	abandoned bool
	onAbandon func()
}

func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Resolve stores resp and wakes the waiter. Only the first call wins; later calls,
// and calls after the waiter abandoned the request, release resp and return false.
func (d *Deferred) Resolve(resp protocol.Response) bool {
	d.mu.Lock()
	if d.resolved {
		d.mu.Unlock()
		_ = resp.Close()
		return false
	}
	d.resolved = true
	close(d.done)
	if d.abandoned {
		d.mu.Unlock()
		_ = resp.Close()
		return false
	}
	d.resp = resp
	d.mu.Unlock()
	return true
}

// Done is closed once the deferred has been resolved.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the response is resolved or ctx ends.
func (d *Deferred) Wait(ctx context.Context) (protocol.Response, error) {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.abandoned {
			return protocol.Response{}, context.Canceled
		}
		d.taken = true
		return d.resp, nil
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

// Abandoned reports whether the waiter gave up on the request.
func (d *Deferred) Abandoned() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.abandoned
}

// Abandon marks the request as no longer awaited, releases an unclaimed response
// and runs the OnAbandon hook once.
func (d *Deferred) Abandon() {
	d.mu.Lock()
	d.abandoned = true
	if d.resolved && !d.taken {
		d.taken = true
		_ = d.resp.Close()
	}
	hook := d.onAbandon
	d.onAbandon = nil
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// OnAbandon registers fn to run when the waiter gives up. It runs right away if
// the request was already abandoned.
func (d *Deferred) OnAbandon(fn func()) {
	d.mu.Lock()
	if !d.abandoned {
		d.onAbandon = fn
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	fn()
}
