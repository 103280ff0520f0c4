package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDependency marks a field that could not be read because a field it
// depends on failed.
var ErrDependency = errors.New("dependency unresolved")

// Field is one independently resolved value of a View. A field is pending
// while neither Resolved nor Err is set.
type Field[T any] struct {
	Value    T
	Err      error
	Resolved bool
}

// Pending reports whether the read has not finished.
func (f Field[T]) Pending() bool { return !f.Resolved && f.Err == nil }

// Failed reports whether the read finished with an error.
func (f Field[T]) Failed() bool { return f.Err != nil }

// MarshalJSON renders {"resolved":..,"value":..,"error":..}.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Resolved bool   `json:"resolved"`
		Value    *T     `json:"value,omitempty"`
		Error    string `json:"error,omitempty"`
	}{Resolved: f.Resolved}
	if f.Resolved {
		out.Value = &f.Value
	}
	if f.Err != nil {
		out.Error = f.Err.Error()
	}
	return json.Marshal(out)
}

// promise carries one read's result to the reads that depend on it.
type promise[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{done: make(chan struct{})}
}

func (p *promise[T]) resolve(v T, err error) {
	p.val, p.err = v, err
	close(p.done)
}

// await blocks until the dependency resolves. A failed dependency is
// reported as ErrDependency naming it.
func (p *promise[T]) await(ctx context.Context, name string) (T, error) {
	select {
	case <-p.done:
		if p.err != nil {
			var zero T
			return zero, fmt.Errorf("%w: %s", ErrDependency, name)
		}
		return p.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
