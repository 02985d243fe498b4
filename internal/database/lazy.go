package database

import (
	"context"
	"errors"
	"sync"
)

var errNoOpener = errors.New("database: handle has no opener")

// Lazy is a single-assignment handle to a shared resource such as a
// connection pool. The first successful Get assigns the value and every later
// caller reuses it. A failed open leaves the handle unassigned so the next
// caller retries. Concurrent callers are serialised while the open runs.
type Lazy[T any] struct {
	mu    sync.Mutex
	open  func(ctx context.Context) (T, error)
	value T
	ready bool
}

// NewLazy returns a handle that opens the resource with open on first use.
func NewLazy[T any](open func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{open: open}
}

// Resolved returns a handle that is already assigned to v.
func Resolved[T any](v T) *Lazy[T] {
	return &Lazy[T]{value: v, ready: true}
}

// Get returns the resource, opening it if this is the first successful call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return l.value, nil
	}
	var zero T
	if l.open == nil {
		return zero, errNoOpener
	}
	v, err := l.open(ctx)
	if err != nil {
		return zero, err
	}
	l.value = v
	l.ready = true
	return l.value, nil
}

// Ready reports whether the resource has been assigned.
func (l *Lazy[T]) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Close releases the resource with fn if it was ever opened.
func (l *Lazy[T]) Close(fn func(T) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return nil
	}
	l.ready = false
	return fn(l.value)
}
