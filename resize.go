package taskpool

import (
	"fmt"

	"go.uber.org/zap"
)

// Resize changes the pool's thread_count to target, which must lie within
// [min_threads, max_threads]. Growing spawns new workers immediately;
// shrinking marks the excess high-index slots for exit and lets them drain
// their current task (if any) before leaving — already-idle slots among
// them exit on their next wake. resizeMu serializes Resize calls (including
// ones driven by the auto-adjust controller) so concurrent grow/shrink
// requests cannot interleave their slice mutations.
func (p *Pool) Resize(target int) error {
	p.resizeMu.Lock()
	defer p.resizeMu.Unlock()

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrShuttingDown
	}
	if target < p.minThreads || target > p.maxThreads {
		p.mu.Unlock()
		return fmt.Errorf("%w: target %d outside [%d, %d]", ErrInvalidArgument, target, p.minThreads, p.maxThreads)
	}
	current := p.threadCount
	p.mu.Unlock()

	switch {
	case target > current:
		p.growTo(target)
	case target < current:
		p.shrinkTo(target)
	}
	return nil
}

// growTo spawns workers for slot indices [current, target). Every index gets
// a fresh slot object and a fresh goroutine; an entry left in p.workers by a
// previous shrink is overwritten, and a retiring worker still attached to
// the replaced slot exits once it sees that it no longer owns the index.
func (p *Pool) growTo(target int) {
	p.mu.Lock()
	current := p.threadCount
	for len(p.workers) < target {
		p.workers = append(p.workers, nil)
	}
	newSlots := make([]*workerSlot, 0, target-current)
	for i := current; i < target; i++ {
		slot := &workerSlot{index: i, status: workerIdle, currentName: nameIdle}
		p.workers[i] = slot
		newSlots = append(newSlots, slot)
	}
	p.threadCount = target
	p.idleThreads += len(newSlots)
	p.started += len(newSlots)
	p.mu.Unlock()

	for _, slot := range newSlots {
		p.wg.Add(1)
		go p.runWorker(slot)
	}

	p.logger.Info("pool grown", zap.Int("from", current), zap.Int("to", target))
}

// shrinkTo lowers thread_count to target. Workers at indices >= target
// observe shouldExit on their next loop iteration (immediately if idle and
// waiting on the condition, or after their current task if busy) and leave
// without being forcibly interrupted.
func (p *Pool) shrinkTo(target int) {
	p.mu.Lock()
	from := p.threadCount
	p.threadCount = target
	p.cond.Broadcast()
	p.mu.Unlock()

	p.logger.Info("pool shrink requested", zap.Int("from", from), zap.Int("to", target))
}
