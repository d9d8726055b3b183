package taskpool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/taskpool/internal/poollog"
)

// Pool is an in-process, priority-ordered worker pool. A *Pool is safe for
// concurrent use by multiple goroutines. The zero value is not usable; call
// New.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond // queue_cv; bound to mu

	resizeMu sync.Mutex // outer to mu; serializes Resize/SetLimits/auto-adjust resizes

	queue       *priorityQueue
	workers     []*workerSlot
	runningByID map[uint64]*task // tasks currently executing, keyed by id

	threadCount int
	minThreads  int
	maxThreads  int
	idleThreads int
	started     int

	nextID  uint64
	nextSeq uint64

	shutdown     bool
	shuttingDown bool // set before mu-protected shutdown flag, guards double-Destroy races

	wg sync.WaitGroup

	autoAdjustMu sync.Mutex // serializes Enable/DisableAutoAdjust against each other
	autoAdjust   *autoAdjustController

	id     string
	logger *zap.Logger
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithLogger attaches a logger used for task failures and lifecycle
// diagnostics. Without this option, a no-op logger is used.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a pool of numThreads workers (indices 0..numThreads-1),
// with min_threads=1 and max_threads=2*numThreads, per spec. numThreads
// must be positive.
func New(numThreads int, opts ...Option) (*Pool, error) {
	if numThreads <= 0 {
		return nil, fmt.Errorf("%w: numThreads must be positive, got %d", ErrInvalidArgument, numThreads)
	}

	p := &Pool{
		queue:       newPriorityQueue(),
		runningByID: make(map[uint64]*task),
		minThreads:  1,
		maxThreads:  2 * numThreads,
		id:          uuid.NewString(),
		logger:      poollog.Nop(),
	}
	p.cond = sync.NewCond(&p.mu)

	for _, opt := range opts {
		opt(p)
	}

	p.workers = make([]*workerSlot, 0, p.maxThreads)
	for i := 0; i < numThreads; i++ {
		slot := &workerSlot{index: i, status: workerBusy, currentName: nameIdle}
		p.workers = append(p.workers, slot)
		p.threadCount++
		p.started++
		p.wg.Add(1)
		go p.runWorker(slot)
	}

	p.logger.Info("pool created",
		zap.String("pool_id", p.id),
		zap.Int("threads", numThreads),
		zap.Int("min_threads", p.minThreads),
		zap.Int("max_threads", p.maxThreads),
	)

	return p, nil
}

// Submit enqueues a task and returns its assigned id. If name is empty, the
// pool synthesizes "unnamed_task_<id>". Fails if the pool is shutting down,
// fn is nil, the name exceeds 63 bytes, or the name duplicates a
// currently-live (queued or running) task's name.
func (p *Pool) Submit(fn TaskFunc, arg any, name string, priority Priority) (uint64, error) {
	if fn == nil {
		return 0, fmt.Errorf("%w: function must not be nil", ErrInvalidArgument)
	}
	if len(name) > maxNameLen {
		return 0, fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidArgument, maxNameLen)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return 0, ErrShuttingDown
	}

	if name != "" && p.nameLiveLocked(name) {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	p.nextID++
	id := p.nextID
	p.nextSeq++

	if name == "" {
		name = fmt.Sprintf("unnamed_task_%d", id)
	}

	t := &task{
		id:          id,
		fn:          fn,
		arg:         arg,
		name:        name,
		priority:    priority,
		sequence:    p.nextSeq,
		submittedAt: time.Now(),
	}
	p.queue.enqueue(t)
	p.cond.Signal()

	p.maybeSignalAutoAdjustLocked()

	return id, nil
}

// SubmitDefault submits fn with PriorityNormal and no explicit name.
func (p *Pool) SubmitDefault(fn TaskFunc, arg any) (uint64, error) {
	return p.Submit(fn, arg, "", PriorityNormal)
}

// nameLiveLocked reports whether name is held by a queued or running task.
// Assumes p.mu is held.
func (p *Pool) nameLiveLocked(name string) bool {
	if _, ok := p.queue.findByName(name); ok {
		return true
	}
	for _, t := range p.runningByID {
		if t.name == name {
			return true
		}
	}
	return false
}

// SetLimits updates min/max thread bounds. If the current thread_count is
// outside the new range, an immediate resize brings it back in range.
func (p *Pool) SetLimits(min, max int) error {
	if min <= 0 || max < min {
		return fmt.Errorf("%w: require 0 < min <= max, got min=%d max=%d", ErrInvalidArgument, min, max)
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrShuttingDown
	}
	p.minThreads = min
	p.maxThreads = max
	current := p.threadCount
	p.mu.Unlock()

	target := current
	if target < min {
		target = min
	}
	if target > max {
		target = max
	}
	if target != current {
		return p.Resize(target)
	}
	return nil
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ThreadCount:   p.threadCount,
		MinThreads:    p.minThreads,
		MaxThreads:    p.maxThreads,
		IdleThreads:   p.idleThreads,
		TaskQueueSize: p.queue.len(),
		Started:       p.started,
	}
}

// RunningTaskNames returns a snapshot of length thread_count: one entry per
// worker slot, either its running task's name, or one of the [idle] /
// [exiting_resize] / [exiting_shutdown] markers.
func (p *Pool) RunningTaskNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, p.threadCount)
	for i := 0; i < p.threadCount; i++ {
		w := p.workers[i]
		switch w.status {
		case workerBusy:
			names[i] = w.currentName
		case workerIdle:
			names[i] = nameIdle
		case workerExitingResize:
			names[i] = nameExitingResize
		case workerExitingShutdown:
			names[i] = nameExitingShutdown
		default:
			names[i] = nameUnknown
		}
	}
	return names
}

// FindTaskByID reports whether a task with id exists (queued or running)
// and, if so, whether it is currently running.
func (p *Pool) FindTaskByID(id uint64) (exists bool, running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.queue.findByID(id); ok {
		return true, false
	}
	if _, ok := p.runningByID[id]; ok {
		return true, true
	}
	return false, false
}

// FindTaskByName reports the id of a task named name (queued or running),
// and whether it is currently running.
func (p *Pool) FindTaskByName(name string) (id uint64, exists bool, running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.queue.findByName(name); ok {
		return t.id, true, false
	}
	for _, t := range p.runningByID {
		if t.name == name {
			return t.id, true, true
		}
	}
	return 0, false, false
}

// CancelTaskByID removes a queued task matching id without running it. If
// cb is non-nil it is invoked with the task's argument and id. Fails with
// ErrNotCancellable if id matches a running task, or ErrNotFound if no task
// with id exists at all.
func (p *Pool) CancelTaskByID(id uint64, cb CancelFunc) error {
	p.mu.Lock()
	t, ok := p.queue.removeByID(id)
	if ok {
		p.mu.Unlock()
		if cb != nil {
			cb(t.arg, t.id)
		}
		return nil
	}
	_, running := p.runningByID[id]
	p.mu.Unlock()
	if running {
		return fmt.Errorf("%w: id=%d", ErrNotCancellable, id)
	}
	return fmt.Errorf("%w: id=%d", ErrNotFound, id)
}

// CancelTaskByName removes a queued task matching name without running it.
func (p *Pool) CancelTaskByName(name string, cb CancelFunc) error {
	p.mu.Lock()
	t, ok := p.queue.removeByName(name)
	if ok {
		p.mu.Unlock()
		if cb != nil {
			cb(t.arg, t.id)
		}
		return nil
	}
	running := false
	for _, rt := range p.runningByID {
		if rt.name == name {
			running = true
			break
		}
	}
	p.mu.Unlock()
	if running {
		return fmt.Errorf("%w: name=%q", ErrNotCancellable, name)
	}
	return fmt.Errorf("%w: name=%q", ErrNotFound, name)
}

// Drain blocks until the queue is empty and every worker is idle, or ctx is
// done. Grounded on the original implementation's thread_pool_wait_all
// helper used by its example programs to synchronize before asserting
// results; not part of the public statistics surface.
func (p *Pool) Drain(ctx context.Context) error {
	const pollInterval = 10 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		done := p.queue.len() == 0 && p.idleThreads == p.threadCount
		p.mu.Unlock()
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Destroy shuts the pool down: disables auto-adjust, signals shutdown,
// joins every worker, and discards the queue. Safe to call more than once;
// the second call is a no-op. Returns ErrTimeout if the workers do not join
// within 5 seconds; the queue is still discarded in that case. Queued tasks' arguments are not released —
// callers that own heap state in task arguments should cancel outstanding
// tasks before calling Destroy.
func (p *Pool) Destroy() error {
	p.mu.Lock()
	alreadyShutdown := p.shutdown || p.shuttingDown
	p.shuttingDown = true
	p.mu.Unlock()
	if alreadyShutdown {
		return nil
	}

	if p.autoAdjust != nil {
		p.autoAdjust.disable()
	}

	// Serialize against any in-flight Resize: once shutdown is true under
	// resizeMu, Resize observes it and returns ErrShuttingDown before
	// touching wg, so wg.Add can never race with the wg.Wait below.
	p.resizeMu.Lock()
	p.mu.Lock()
	p.normalizeIdleLocked()
	p.shutdown = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.resizeMu.Unlock()

	joined := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(joined)
	}()

	// Re-broadcast a few times to cover races where a worker re-entered
	// its wait between the check above and the broadcast; stops early
	// once every worker has already joined.
rebroadcast:
	for i := 0; i < 3; i++ {
		select {
		case <-joined:
			break rebroadcast
		case <-time.After(5 * time.Millisecond):
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		}
	}

	timedOut := false
	select {
	case <-joined:
	case <-time.After(5 * time.Second):
		timedOut = true
		p.logger.Warn("workers did not join within timeout during destroy", zap.String("pool_id", p.id))
	}

	p.mu.Lock()
	p.queue.destroy()
	p.mu.Unlock()

	p.logger.Info("pool destroyed", zap.String("pool_id", p.id))
	if timedOut {
		return fmt.Errorf("%w: workers did not join during destroy", ErrTimeout)
	}
	return nil
}

// debugSnapshot renders a human-readable table of queued and running
// tasks, mirroring the original implementation's thread_debug_test.c
// table dump. Unexported: it exists for our own tests' failure output,
// not as public API.
func (p *Pool) debugSnapshot() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "thread_count=%d idle=%d queue=%d\n", p.threadCount, p.idleThreads, p.queue.len())

	fmt.Fprintf(&b, "queued:\n")
	for _, t := range p.queue.items {
		fmt.Fprintf(&b, "  id=%d name=%q priority=%s seq=%d\n", t.id, t.name, t.priority, t.sequence)
	}

	fmt.Fprintf(&b, "running:\n")
	for id, t := range p.runningByID {
		fmt.Fprintf(&b, "  id=%d name=%q priority=%s\n", id, t.name, t.priority)
	}

	return b.String()
}

// normalizeIdleLocked recomputes idleThreads from worker statuses,
// defensively correcting drift rather than propagating it, per spec.md §7.
// Assumes p.mu is held.
func (p *Pool) normalizeIdleLocked() {
	idle := 0
	for _, w := range p.workers[:p.threadCount] {
		if w.status == workerIdle {
			idle++
		}
	}
	if idle != p.idleThreads {
		p.logger.Warn("idle_threads drifted, correcting",
			zap.Int("observed", p.idleThreads), zap.Int("recomputed", idle))
		p.idleThreads = idle
	}
}
