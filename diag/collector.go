// Package diag collects ambient diagnostic properties for a single request.
//
// A scope is opened with Begin and travels with the request context. Any code
// holding that context (handlers, middleware, goroutines they spawn) may add
// properties with Set. The owner of the scope reads them once with
// TryComplete and releases the scope with Dispose.
//
// Scopes are never shared between requests: each Begin creates a new
// Collector stored in a new context.
package diag

import (
	"context"
	"sync"

	"github.com/ridge/reqlog/eventlog"
)

type contextKey int

const collectorKey contextKey = iota

// Completion is the result of completing a collection scope
type Completion struct {
	Properties []eventlog.Property // in order of first addition
	Err        error               // recorded by SetError, if any
}

// Collector accumulates properties for one scope.
//
// Set and SetError after TryComplete or Dispose are silently ignored.
type Collector struct {
	mu        sync.Mutex
	props     []eventlog.Property
	index     map[string]int
	err       error
	completed bool
	disposed  bool
}

// Begin opens a new collection scope bound to the returned context
func Begin(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{index: map[string]int{}}
	return context.WithValue(ctx, collectorKey, c), c
}

// FromContext returns the collector of the innermost scope, or nil
func FromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey).(*Collector)
	return c
}

// Set adds a property to the scope bound to ctx. Does nothing outside a scope.
func Set(ctx context.Context, name string, value any) {
	if c := FromContext(ctx); c != nil {
		c.Set(name, value)
	}
}

// SetError records an error in the scope bound to ctx. Does nothing outside a
// scope.
func SetError(ctx context.Context, err error) {
	if c := FromContext(ctx); c != nil {
		c.SetError(err)
	}
}

// Set adds or replaces a property. A replaced property keeps its position.
func (c *Collector) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return
	}
	if i, ok := c.index[name]; ok {
		c.props[i].Value = value
		return
	}
	c.index[name] = len(c.props)
	c.props = append(c.props, eventlog.Property{Name: name, Value: value})
}

// SetError records an error observed while handling the request. The last
// recorded error wins.
func (c *Collector) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return
	}
	c.err = err
}

// Err returns the error recorded by SetError so far
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// TryComplete finalizes the scope and returns what was collected.
//
// Only the first call succeeds; later calls, and calls after Dispose, return
// false.
func (c *Collector) TryComplete() (Completion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.completed {
		return Completion{}, false
	}
	c.completed = true
	props := c.props
	if props == nil {
		props = []eventlog.Property{}
	}
	completion := Completion{Properties: props, Err: c.err}
	c.props, c.index, c.err = nil, nil, nil
	return completion, true
}

// Dispose releases the scope, discarding anything not yet completed.
// Calling Dispose more than once has no effect.
func (c *Collector) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed = true
	c.disposed = true
	c.props, c.index, c.err = nil, nil, nil
}

// Disposed reports whether Dispose was called
func (c *Collector) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
