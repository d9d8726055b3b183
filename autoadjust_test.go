package taskpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAutoAdjustGrowsOnHighQueueDepth(t *testing.T) {
	p := newTestPool(t, 1)
	require.NoError(t, p.SetLimits(1, 6))
	require.NoError(t, p.EnableAutoAdjust(AutoAdjustConfig{
		HighWatermark:  2,
		LowWatermark:   0,
		AdjustInterval: 50 * time.Millisecond,
	}))

	block := make(chan struct{})
	defer close(block)
	for i := 0; i < 6; i++ {
		_, err := p.SubmitDefault(func(any) error { <-block; return nil }, nil)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return p.Stats().ThreadCount > 1
	}, 2*time.Second, 20*time.Millisecond, "expected auto-adjust to grow the pool under backlog")
}

func TestAutoAdjustShrinksOnIdleExcess(t *testing.T) {
	p := newTestPool(t, 6)
	require.NoError(t, p.SetLimits(1, 6))
	require.NoError(t, p.EnableAutoAdjust(AutoAdjustConfig{
		HighWatermark:  1000,
		LowWatermark:   1,
		AdjustInterval: 50 * time.Millisecond,
	}))

	require.Eventually(t, func() bool {
		return p.Stats().ThreadCount < 6
	}, 2*time.Second, 20*time.Millisecond, "expected auto-adjust to shrink an idle pool")
}

func TestDisableAutoAdjustStopsFurtherResizes(t *testing.T) {
	p := newTestPool(t, 6)
	require.NoError(t, p.SetLimits(1, 6))
	require.NoError(t, p.EnableAutoAdjust(AutoAdjustConfig{
		HighWatermark:  1000,
		LowWatermark:   1,
		AdjustInterval: 30 * time.Millisecond,
	}))
	require.NoError(t, p.DisableAutoAdjust())

	before := p.Stats().ThreadCount
	time.Sleep(200 * time.Millisecond)
	after := p.Stats().ThreadCount
	require.Equal(t, before, after)
}

func TestEnableAutoAdjustRejectsNonPositiveInterval(t *testing.T) {
	p := newTestPool(t, 1)
	err := p.EnableAutoAdjust(AutoAdjustConfig{AdjustInterval: 0})
	require.ErrorIs(t, err, ErrInvalidArgument)
}
