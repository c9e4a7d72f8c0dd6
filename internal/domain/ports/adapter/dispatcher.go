package adapter

import "context"

// Task is a detached unit of best-effort work.
type Task func(ctx context.Context) error

// Dispatcher runs tasks off the request path. Dispatch reports false when the
// task was dropped (queue full or shutting down).
type Dispatcher interface {
	Dispatch(name string, task Task) bool
}
