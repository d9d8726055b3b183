// Package taskpool implements an in-process, priority-ordered worker pool.
//
// Tasks are dispatched highest-priority-first, FIFO among equal priorities.
// The pool can grow and shrink between configured bounds, either by an
// explicit Resize call or via an optional auto-adjust controller that
// watches queue depth and idle worker count. Queued (not yet started) tasks
// can be looked up and cancelled by id or name; running tasks cannot be
// preempted.
package taskpool
