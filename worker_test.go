package taskpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerSettlesIntoIdleAfterSpawn(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Destroy() //nolint:errcheck

	require.Eventually(t, func() bool {
		return p.Stats().IdleThreads == 1
	}, time.Second, 10*time.Millisecond, "worker never settled into idle")
}

func TestCurrentNameTracksRunningTask(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Destroy() //nolint:errcheck

	block := make(chan struct{})
	_, err = p.Submit(func(any) error { <-block; return nil }, nil, "named-task", PriorityNormal)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		names := p.RunningTaskNames()
		return len(names) == 1 && names[0] == "named-task"
	}, time.Second, 10*time.Millisecond)

	close(block)

	require.Eventually(t, func() bool {
		names := p.RunningTaskNames()
		return len(names) == 1 && names[0] == nameIdle
	}, time.Second, 10*time.Millisecond)
}

func TestCondWaitTimeoutReturnsWithoutSignal(t *testing.T) {
	var mu sync.Mutex
	cond := sync.NewCond(&mu)

	start := time.Now()
	mu.Lock()
	condWaitTimeout(cond, &mu, 30*time.Millisecond)
	mu.Unlock()

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
