// Package mainthread provides the "run on the owning thread" primitive used
// by environment evaluators.
//
// Some environment state may only be read from the goroutine that owns it.
// A Dispatcher runs a function there and blocks the caller until it returns.
// Inline runs functions on the calling goroutine; Loop serialises them onto
// the goroutine running Loop.Run.
//
// # Example
//
//	loop := mainthread.NewLoop(16)
//	go func() {
//	    seq, _ := ev.EvalString(ctx, "selection{}")
//	    ...
//	    loop.Close()
//	}()
//	loop.Run(ctx) // on the owning goroutine
package mainthread

import (
	"context"
	"errors"
	"sync"
)

// Well-known environment keys.
const (
	KeySelection = "selection"
	KeyCurrent   = "current"
	KeyProject   = "project"
	KeyScene     = "scene"
	KeyDataPath  = "datapath"
)

// ErrClosed is returned by Invoke after the loop stopped.
var ErrClosed = errors.New("mainthread: loop closed")

// Func is a call to run on the owning thread.
type Func func() (interface{}, error)

// Dispatcher runs functions on the owning thread.
type Dispatcher interface {
	// Invoke runs fn on the owning thread and returns its result. It blocks
	// until fn returns or ctx is done.
	Invoke(ctx context.Context, fn Func) (interface{}, error)
}

// Environment answers environment lookups.
type Environment interface {
	Lookup(key string) (interface{}, bool)
}

// MapEnvironment is an Environment backed by a map.
type MapEnvironment map[string]interface{}

// Lookup implements Environment.
func (m MapEnvironment) Lookup(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}

// Inline runs functions on the calling goroutine.
type Inline struct{}

// Invoke implements Dispatcher.
func (Inline) Invoke(ctx context.Context, fn Func) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn()
}

type result struct {
	value interface{}
	err   error
}

type call struct {
	fn    Func
	reply chan result
}

// Loop serialises calls onto the goroutine running Run.
type Loop struct {
	calls chan call
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with a call queue of the given size.
func NewLoop(queue int) *Loop {
	if queue < 0 {
		queue = 0
	}
	return &Loop{
		calls: make(chan call, queue),
		done:  make(chan struct{}),
	}
}

// Run processes calls until ctx is done or Close is called. It must run on
// the owning goroutine.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			return nil
		case c := <-l.calls:
			v, err := c.fn()
			c.reply <- result{value: v, err: err}
		}
	}
}

// Invoke implements Dispatcher.
func (l *Loop) Invoke(ctx context.Context, fn Func) (interface{}, error) {
	c := call{fn: fn, reply: make(chan result, 1)}
	select {
	case l.calls <- c:
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-c.reply:
		return r.value, r.err
	case <-l.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the loop. Pending and future calls fail with ErrClosed.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.done)
	})
}
