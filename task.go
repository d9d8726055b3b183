package taskpool

import "time"

// Priority determines dispatch order: a task with a smaller Priority value
// is dequeued before one with a larger value. Among equal priorities, tasks
// are dispatched in submission order.
type Priority int

const (
	// PriorityHigh is dispatched before any other priority level.
	PriorityHigh Priority = 0
	// PriorityNormal is the default priority for SubmitDefault.
	PriorityNormal Priority = 5
	// PriorityLow is dispatched after Normal and before Background.
	PriorityLow Priority = 10
	// PriorityBackground is dispatched last.
	PriorityBackground Priority = 15
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// maxNameLen bounds a task name to 63 bytes, matching the reference
// implementation's fixed-size name buffer.
const maxNameLen = 63

// TaskFunc is the work a submitted task performs. Its argument is whatever
// was passed to Submit; TaskFunc owns releasing any resources captured in
// arg, except when the task is cancelled before it runs, in which case the
// CancelFunc (if any) takes that responsibility instead.
//
// A non-nil return value is logged and otherwise treated identically to a
// nil return for pool accounting: the pool never treats a task failure as
// its own failure.
type TaskFunc func(arg any) error

// CancelFunc is invoked, if supplied, when a queued task is cancelled
// before it runs. It receives the task's argument and id so the caller can
// reclaim resources it owns.
type CancelFunc func(arg any, id uint64)

// task is the pool's internal record for one unit of submitted work.
type task struct {
	id          uint64
	fn          TaskFunc
	arg         any
	name        string
	priority    Priority
	sequence    uint64 // monotonic insertion order, for FIFO-within-priority
	submittedAt time.Time
}
