// Package ready provides a write-once readiness gate. A monitoring loop
// signals the gate after its first successful refresh; readers that arrive
// earlier block until the signal, readers that arrive later never block.
package ready

import (
	"context"
	"sync"
	"sync/atomic"
)

// Gate is a one-shot readiness signal. The zero value is not usable;
// construct with NewGate.
type Gate struct {
	ready atomic.Bool
	once  sync.Once
	done  chan struct{}
}

// NewGate returns an unsignaled gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Signal marks the gate ready and wakes every blocked waiter.
// Calls after the first are no-ops.
func (g *Gate) Signal() {
	g.once.Do(func() {
		g.ready.Store(true)
		close(g.done)
	})
}

// Ready reports whether Signal has been called.
func (g *Gate) Ready() bool {
	return g.ready.Load()
}

// Wait blocks until the gate is signaled or the context is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	if g.ready.Load() {
		return nil
	}
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
