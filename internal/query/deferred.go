package query

import (
	"context"
	"fmt"
)

// Deferred is a value computed on its own goroutine. It settles exactly once.
type Deferred[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on a new goroutine. A panic in fn settles the Deferred with an error.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{})}
	go func() {
		defer close(d.done)
		defer func() {
			if r := recover(); r != nil {
				d.err = fmt.Errorf("deferred panic: %v", r)
			}
		}()
		d.value, d.err = fn(ctx)
	}()
	return d
}

// Resolved returns an already settled Deferred holding v.
func Resolved[T any](v T) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{}), value: v}
	close(d.done)
	return d
}

// Done is closed once the value has settled.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Settled reports whether the value is available without blocking.
func (d *Deferred[T]) Settled() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Await blocks until the value settles or ctx is done.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
