// Package flight models single-flight operations as an explicit state
// machine (idle → running → {done, failed}) instead of ad hoc boolean
// in-progress flags, so re-entrancy rules stay auditable.
package flight

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a single-flight operation
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Flight guards one logical operation. While a run is in flight, concurrent
// callers await its outcome instead of starting a duplicate. A finished
// flight restarts on the next Do.
type Flight[T any] struct {
	mu      sync.Mutex
	state   State
	done    chan struct{}
	waiters atomic.Int32
	result  T
	err     error
}

// Do runs fn single-flight. If a run is already in progress the caller
// blocks until it resolves and shares its outcome; ctx only bounds the
// wait, it does not cancel the in-flight run.
func (f *Flight[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	f.mu.Lock()
	if f.state == StateRunning {
		done := f.done
		// Counted under the lock: a recorded waiter has captured the
		// in-flight run's done channel and will share its outcome.
		f.waiters.Add(1)
		f.mu.Unlock()
		defer f.waiters.Add(-1)
		select {
		case <-done:
			f.mu.Lock()
			result, err := f.result, f.err
			f.mu.Unlock()
			return result, err
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}

	f.state = StateRunning
	f.done = make(chan struct{})
	done := f.done
	f.mu.Unlock()

	result, err := fn(ctx)

	f.mu.Lock()
	f.result, f.err = result, err
	if err != nil {
		f.state = StateFailed
	} else {
		f.state = StateDone
	}
	close(done)
	f.mu.Unlock()

	return result, err
}

// State returns the current lifecycle state
func (f *Flight[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Running reports whether a run is in flight
func (f *Flight[T]) Running() bool {
	return f.State() == StateRunning
}
