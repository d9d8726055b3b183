package taskpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, threads int) *Pool {
	t.Helper()
	p, err := New(threads)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })
	return p
}

func TestNewRejectsNonPositiveThreadCount(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmitRunsTask(t *testing.T) {
	p := newTestPool(t, 2)

	done := make(chan struct{})
	id, err := p.SubmitDefault(func(arg any) error {
		close(done)
		return nil
	}, nil)
	require.NoError(t, err)
	assert.NotZero(t, id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestSubmitRejectsNilFunction(t *testing.T) {
	p := newTestPool(t, 1)
	_, err := p.Submit(nil, nil, "", PriorityNormal)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmitRejectsNameTooLong(t *testing.T) {
	p := newTestPool(t, 1)
	longName := make([]byte, maxNameLen+1)
	for i := range longName {
		longName[i] = 'a'
	}
	_, err := p.Submit(func(any) error { return nil }, nil, string(longName), PriorityNormal)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSubmitRejectsDuplicateName(t *testing.T) {
	p := newTestPool(t, 1)

	block := make(chan struct{})
	_, err := p.Submit(func(any) error {
		<-block
		return nil
	}, nil, "only-one", PriorityNormal)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, exists, running := p.FindTaskByName("only-one")
		return exists && running
	}, time.Second, 10*time.Millisecond)

	_, err = p.Submit(func(any) error { return nil }, nil, "only-one", PriorityNormal)
	assert.ErrorIs(t, err, ErrDuplicateName)

	close(block)
}

func TestSubmitAfterDestroyFails(t *testing.T) {
	p := newTestPool(t, 1)
	require.NoError(t, p.Destroy())

	_, err := p.SubmitDefault(func(any) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestTasksDispatchInPriorityOrder(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Destroy() //nolint:errcheck

	block := make(chan struct{})
	_, err = p.Submit(func(any) error {
		<-block
		return nil
	}, nil, "blocker", PriorityNormal)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(name string) TaskFunc {
		return func(any) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	_, err = p.Submit(record("low"), nil, "low", PriorityLow)
	require.NoError(t, err)
	_, err = p.Submit(record("high"), nil, "high", PriorityHigh)
	require.NoError(t, err)
	_, err = p.Submit(record("normal"), nil, "normal", PriorityNormal)
	require.NoError(t, err)

	close(block)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "normal", "low"}, order)
}

func TestStatsReflectThreadCount(t *testing.T) {
	p := newTestPool(t, 3)
	stats := p.Stats()
	assert.Equal(t, 3, stats.ThreadCount)
	assert.Equal(t, 1, stats.MinThreads)
	assert.Equal(t, 6, stats.MaxThreads)
	assert.Equal(t, 3, stats.Started)
}

func TestRunningTaskNamesReportsIdleAndBusy(t *testing.T) {
	p := newTestPool(t, 2)

	names := p.RunningTaskNames()
	assert.Len(t, names, 2)
	for _, n := range names {
		assert.Equal(t, nameIdle, n)
	}

	block := make(chan struct{})
	_, err := p.Submit(func(any) error { <-block; return nil }, nil, "busy-one", PriorityNormal)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		names := p.RunningTaskNames()
		for _, n := range names {
			if n == "busy-one" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	close(block)
}

func TestFindTaskByIDAndName(t *testing.T) {
	p := newTestPool(t, 1)

	block := make(chan struct{})
	id, err := p.Submit(func(any) error { <-block; return nil }, nil, "findable", PriorityNormal)
	require.NoError(t, err)

	id2, err := p.Submit(func(any) error { return nil }, nil, "queued-only", PriorityLow)
	require.NoError(t, err)

	exists, running := p.FindTaskByID(id2)
	assert.True(t, exists)
	assert.False(t, running)

	gotID, exists, _ := p.FindTaskByName("queued-only")
	assert.True(t, exists)
	assert.Equal(t, id2, gotID)

	exists, _ = p.FindTaskByID(99999)
	assert.False(t, exists)

	close(block)
	_ = id
}

func TestDestroyIsIdempotent(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)

	require.NoError(t, p.Destroy())
	require.NoError(t, p.Destroy())
}

func TestDrainWaitsForQueueAndWorkers(t *testing.T) {
	p := newTestPool(t, 2)

	var ran int32
	for i := 0; i < 5; i++ {
		_, err := p.SubmitDefault(func(any) error {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&ran, 1)
			return nil
		}, nil)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestDrainRespectsContextDeadline(t *testing.T) {
	p := newTestPool(t, 1)

	block := make(chan struct{})
	defer close(block)
	_, err := p.SubmitDefault(func(any) error { <-block; return nil }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Drain(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTaskPanicDoesNotKillPool(t *testing.T) {
	p := newTestPool(t, 1)

	_, err := p.SubmitDefault(func(any) error {
		panic("boom")
	}, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	_, err = p.SubmitDefault(func(any) error {
		close(done)
		return nil
	}, nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pool stopped processing tasks after a panic:\n%s", p.debugSnapshot())
	}
}

func TestDebugSnapshotListsQueuedAndRunningTasks(t *testing.T) {
	p := newTestPool(t, 1)

	block := make(chan struct{})
	defer close(block)
	_, err := p.Submit(func(any) error { <-block; return nil }, nil, "running-one", PriorityNormal)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, exists, running := p.FindTaskByName("running-one")
		return exists && running
	}, time.Second, 10*time.Millisecond)

	_, err = p.Submit(func(any) error { return nil }, nil, "queued-one", PriorityLow)
	require.NoError(t, err)

	snap := p.debugSnapshot()
	assert.Contains(t, snap, "running-one")
	assert.Contains(t, snap, "queued-one")
	assert.Contains(t, snap, "thread_count=1")
}
