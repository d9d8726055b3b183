package taskpool

// priorityQueue holds queued tasks sorted by ascending priority value and,
// within equal priorities, by insertion sequence (FIFO). Every method here
// assumes the caller already holds Pool.mu — the queue has no lock of its
// own, matching the reference behavior of a structure mutated only under
// the pool lock.
//
// Insertion keeps the slice sorted in place, the same scheme the corpus
// uses for small in-memory priority queues (linear scan to find the
// insertion point); for the handful of concurrently queued tasks a typical
// pool holds, this is simpler and cache-friendlier than a heap.
type priorityQueue struct {
	items []*task
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

// enqueue inserts t so that dequeue order respects (priority, sequence).
func (q *priorityQueue) enqueue(t *task) {
	idx := 0
	for idx < len(q.items) {
		cur := q.items[idx]
		if t.priority < cur.priority {
			break
		}
		if t.priority == cur.priority && t.sequence < cur.sequence {
			break
		}
		idx++
	}
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = t
}

// dequeue removes and returns the highest-priority, earliest-inserted task.
// ok is false iff the queue is empty.
func (q *priorityQueue) dequeue() (t *task, ok bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	t = q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *priorityQueue) len() int {
	return len(q.items)
}

// findByName returns a copy of the queued task matching name, if any.
// Running tasks are not examined — callers check the worker table
// separately.
func (q *priorityQueue) findByName(name string) (task, bool) {
	for _, t := range q.items {
		if t.name == name {
			return *t, true
		}
	}
	return task{}, false
}

// findByID returns a copy of the queued task matching id, if any.
func (q *priorityQueue) findByID(id uint64) (task, bool) {
	for _, t := range q.items {
		if t.id == id {
			return *t, true
		}
	}
	return task{}, false
}

// removeByID extracts the queued task matching id without running it.
// ok is false if no queued task matches.
func (q *priorityQueue) removeByID(id uint64) (t *task, ok bool) {
	for i, item := range q.items {
		if item.id == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item, true
		}
	}
	return nil, false
}

// removeByName extracts the queued task matching name without running it.
func (q *priorityQueue) removeByName(name string) (t *task, ok bool) {
	for i, item := range q.items {
		if item.name == name {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item, true
		}
	}
	return nil, false
}

// destroy discards all remaining queued tasks. Arguments of discarded tasks
// are not released here — per the pool's documented leak-on-discard
// semantics, that is Destroy's caller's concern (see Pool.Destroy).
func (q *priorityQueue) destroy() []*task {
	items := q.items
	q.items = nil
	return items
}
