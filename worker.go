package taskpool

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type workerStatus int

const (
	workerIdle workerStatus = iota
	workerBusy
	workerExitingResize
	workerExitingShutdown
)

// workerSlot is one execution context's observable state. index is stable
// from the moment the slot is created until the worker observes that it is
// beyond thread_count, or that a later grow has installed a fresh slot at
// that index, and exits.
type workerSlot struct {
	index       int
	status      workerStatus
	currentName string
}

// queueWaitTimeout bounds how long a worker blocks on the queue condition
// before re-evaluating its exit/dequeue conditions, tolerating a signal
// lost to a race between Submit and Wait. sync.Cond has no native timed
// wait, so condWaitTimeout (below) fakes one with a one-shot timer that
// broadcasts after the bound elapses.
const queueWaitTimeout = 1 * time.Second

// condWaitTimeout waits on c, which must be associated with mu (already
// held by the caller), for at most d before returning regardless of
// whether a real signal arrived.
func condWaitTimeout(c *sync.Cond, mu sync.Locker, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		c.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	c.Wait()
}

// runWorker is the per-slot execution loop. It holds p.mu except while
// running a task function, matching the loop contract in spec.md §4.2.
func (p *Pool) runWorker(slot *workerSlot) {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		if p.shouldExit(slot) {
			p.exitWorker(slot)
			p.mu.Unlock()
			return
		}

		t, ok := p.queue.dequeue()
		if !ok {
			// A slot spawns BUSY (spec.md §4.2) to avoid a spurious idle
			// window before its first task; the first time it finds the
			// queue empty, it makes that idle transition explicit here,
			// same as any other BUSY->IDLE move.
			if slot.status != workerIdle {
				slot.status = workerIdle
				slot.currentName = nameIdle
				p.idleThreads++
			}
			condWaitTimeout(p.cond, &p.mu, queueWaitTimeout)
			continue
		}

		// Only a slot actually counted idle contributes to idleThreads;
		// guards against double-decrementing a slot whose first task was
		// dequeued before it ever blocked on an empty queue (see
		// _examples/original_source/src/core/thread/src/thread.c:290).
		if slot.status == workerIdle {
			p.idleThreads--
		}
		slot.status = workerBusy
		slot.currentName = t.name
		p.runningByID[t.id] = t
		p.mu.Unlock()

		p.runTask(slot, t)

		p.mu.Lock()
		delete(p.runningByID, t.id)
		slot.status = workerIdle
		slot.currentName = nameIdle
		p.idleThreads++
		p.maybeSignalAutoAdjustLocked()
	}
}

// shouldExit reports whether slot must transition to an exiting state,
// assuming p.mu is held.
func (p *Pool) shouldExit(slot *workerSlot) bool {
	if p.shutdown && p.queue.len() == 0 {
		return true
	}
	return slot.index >= p.threadCount || p.workers[slot.index] != slot
}

// exitWorker transitions slot to its terminal exiting state, assuming
// p.mu is held. idleThreads is decremented if the slot was counted idle,
// so the invariant idle+busy==thread_count holds through the transition.
func (p *Pool) exitWorker(slot *workerSlot) {
	wasIdle := slot.status == workerIdle
	if p.shutdown && p.queue.len() == 0 {
		slot.status = workerExitingShutdown
		slot.currentName = nameExitingShutdown
	} else {
		slot.status = workerExitingResize
		slot.currentName = nameExitingResize
	}
	if wasIdle {
		p.idleThreads--
	}
}

// runTask invokes t.fn outside the pool lock. A panic or error from the
// task is logged and otherwise accounted for as ordinary completion — the
// pool itself never fails because a task did.
func (p *Pool) runTask(slot *workerSlot, t *task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.Uint64("task_id", t.id),
				zap.String("task_name", t.name),
				zap.Int("worker", slot.index),
				zap.Any("recovered", r),
			)
		}
	}()

	if err := t.fn(t.arg); err != nil {
		p.logger.Warn("task returned error",
			zap.Uint64("task_id", t.id),
			zap.String("task_name", t.name),
			zap.Int("worker", slot.index),
			zap.Error(err),
		)
	}
}
