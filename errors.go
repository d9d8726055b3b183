package taskpool

import "errors"

// Sentinel errors returned by Pool operations. Use errors.Is to test for a
// specific kind; operations wrap these with context via fmt.Errorf("%w").
var (
	// ErrInvalidArgument covers nil callables, out-of-range counts, and
	// malformed limits.
	ErrInvalidArgument = errors.New("taskpool: invalid argument")

	// ErrResourceExhausted covers allocation failure for records, worker
	// slots, or synchronization primitives.
	ErrResourceExhausted = errors.New("taskpool: resource exhausted")

	// ErrShuttingDown is returned by Submit, SetLimits, Resize, and
	// EnableAutoAdjust once Destroy has been called.
	ErrShuttingDown = errors.New("taskpool: pool is shutting down")

	// ErrDuplicateName is returned by Submit when a live (queued or
	// running) task already holds the requested name.
	ErrDuplicateName = errors.New("taskpool: task name already in use")

	// ErrNotFound is returned by cancel operations when no task at all,
	// queued or running, matches the given id or name. A task that
	// exists but is currently running yields ErrNotCancellable instead.
	ErrNotFound = errors.New("taskpool: task not found")

	// ErrNotCancellable is returned by cancel operations when the key
	// matches a task that is currently running rather than queued.
	ErrNotCancellable = errors.New("taskpool: task is running and cannot be cancelled")

	// ErrTimeout is returned by Destroy when its workers do not join within
	// the teardown bound. Auto-adjust disable does not return it: after its
	// bounded re-broadcasts it keeps waiting until the loop has exited.
	ErrTimeout = errors.New("taskpool: operation timed out")
)
