// Package listeners holds an ordered set of callbacks with
// remove-by-handle semantics.
package listeners

import (
	"fmt"
	"sync"
)

// Unsubscribe removes the registration it was returned for. It reports
// whether a registration was removed; calls after the first return false.
type Unsubscribe func() bool

// Registry is an ordered list of listeners. Notification order is
// registration order and the same func may be registered more than once.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries []*entry[T]
}

type entry[T any] struct {
	fn func(T)
}

// PanicError is returned by Emit when a listener panics
type PanicError struct {
	Index int
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("listener %d panicked: %v", e.Index, e.Value)
}

// New creates an empty registry
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Register appends fn and returns its handle
func (r *Registry[T]) Register(fn func(T)) Unsubscribe {
	e := &entry[T]{fn: fn}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	return func() bool {
		return r.remove(e)
	}
}

// remove deletes the first entry identical to e
func (r *Registry[T]) remove(e *entry[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.entries {
		if cur == e {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registrations
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the listeners in notification order
func (r *Registry[T]) Snapshot() []func(T) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fns := make([]func(T), len(r.entries))
	for i, e := range r.entries {
		fns[i] = e.fn
	}
	return fns
}

// Emit calls every listener registered at the time of the call with v, in
// order. A panicking listener does not stop delivery to the rest; each
// panic is reported as a *PanicError.
func (r *Registry[T]) Emit(v T) []error {
	var errs []error
	for i, fn := range r.Snapshot() {
		if err := call(i, fn, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func call[T any](i int, fn func(T), v T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Index: i, Value: p}
		}
	}()
	fn(v)
	return nil
}
