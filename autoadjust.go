package taskpool

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AutoAdjustConfig parameterizes the Auto-Adjust Controller.
type AutoAdjustConfig struct {
	// HighWatermark is the queue-length threshold above which the
	// controller proposes growing the pool.
	HighWatermark int
	// LowWatermark is the idle-thread threshold above which the
	// controller proposes shrinking the pool.
	LowWatermark int
	// AdjustInterval bounds how long the controller waits between
	// decisions when no signal arrives.
	AdjustInterval time.Duration
}

type autoAdjustState int

const (
	autoAdjustDisabled autoAdjustState = iota
	autoAdjustRunning
	autoAdjustStopping
)

// autoAdjustController is a background loop that proposes resizes based on
// watermarks, grounded on the teacher's internal/loadctrl.LoadController:
// a ticker/signal-driven loop with its own lock, distinct from the
// component it resizes, that releases its own lock before ever touching
// the pool lock.
type autoAdjustController struct {
	pool *Pool

	mu    sync.Mutex
	cond  *sync.Cond
	state autoAdjustState
	cfg   AutoAdjustConfig

	wg sync.WaitGroup
}

func newAutoAdjustController(p *Pool, cfg AutoAdjustConfig) *autoAdjustController {
	c := &autoAdjustController{pool: p, cfg: cfg}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// EnableAutoAdjust starts the auto-adjust loop with cfg, or, if already
// running, updates its parameters in place without restarting the loop.
func (p *Pool) EnableAutoAdjust(cfg AutoAdjustConfig) error {
	if cfg.AdjustInterval <= 0 {
		return fmt.Errorf("%w: AdjustInterval must be positive", ErrInvalidArgument)
	}
	if cfg.HighWatermark < 0 || cfg.LowWatermark < 0 {
		return fmt.Errorf("%w: watermarks must be non-negative", ErrInvalidArgument)
	}

	// autoAdjustMu serializes this against DisableAutoAdjust so the two
	// can never interleave their read-decide-install steps on p.autoAdjust.
	p.autoAdjustMu.Lock()
	defer p.autoAdjustMu.Unlock()

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return ErrShuttingDown
	}
	existing := p.autoAdjust
	p.mu.Unlock()

	if existing != nil {
		existing.mu.Lock()
		running := existing.state == autoAdjustRunning
		existing.cfg = cfg
		existing.mu.Unlock()
		if running {
			existing.signal()
			return nil
		}
		// existing is disabled or stopping: wait for it to fully join
		// before installing a replacement, so a straggling disable can
		// never clobber the controller we're about to install.
		existing.disable()
	}

	ctrl := newAutoAdjustController(p, cfg)
	p.mu.Lock()
	p.autoAdjust = ctrl
	p.mu.Unlock()
	ctrl.start()
	return nil
}

// DisableAutoAdjust stops the auto-adjust loop, if running. Idempotent.
func (p *Pool) DisableAutoAdjust() error {
	p.autoAdjustMu.Lock()
	defer p.autoAdjustMu.Unlock()

	p.mu.Lock()
	ctrl := p.autoAdjust
	p.mu.Unlock()
	if ctrl == nil {
		return nil
	}
	ctrl.disable()
	p.mu.Lock()
	p.autoAdjust = nil
	p.mu.Unlock()
	return nil
}

func (c *autoAdjustController) start() {
	c.mu.Lock()
	c.state = autoAdjustRunning
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()
}

// signal wakes the loop early; advisory only, the loop re-checks
// conditions under the pool lock before acting. Per spec.md §5, the
// caller holds the pool lock only briefly while taking this lock and
// dropping it immediately after the broadcast.
func (c *autoAdjustController) signal() {
	c.mu.Lock()
	c.cond.Broadcast()
	c.mu.Unlock()
}

// disable requests the loop stop and joins it, with bounded retries,
// matching spec.md §4.5's disable protocol.
func (c *autoAdjustController) disable() {
	c.mu.Lock()
	c.state = autoAdjustStopping
	c.cond.Broadcast()
	c.mu.Unlock()

	joined := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(joined)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-joined:
			return
		case <-time.After(time.Second):
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		}
	}
	<-joined
}

func (c *autoAdjustController) run() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if c.state == autoAdjustStopping {
			c.state = autoAdjustDisabled
			c.mu.Unlock()
			return
		}
		interval := c.cfg.AdjustInterval
		condWaitTimeout(c.cond, &c.mu, interval)
		stopping := c.state == autoAdjustStopping
		high, low := c.cfg.HighWatermark, c.cfg.LowWatermark
		c.mu.Unlock()

		if stopping {
			continue
		}

		c.pool.mu.Lock()
		if c.pool.shutdown {
			c.pool.mu.Unlock()
			continue
		}
		threadCount := c.pool.threadCount
		queueSize := c.pool.queue.len()
		idle := c.pool.idleThreads
		minT, maxT := c.pool.minThreads, c.pool.maxThreads
		c.pool.mu.Unlock()

		target := threadCount
		switch {
		case queueSize > high && threadCount < maxT:
			target = threadCount + 1
		case idle > low && threadCount > minT:
			target = threadCount - 1
		}
		if target < minT {
			target = minT
		}
		if target > maxT {
			target = maxT
		}

		if target != threadCount {
			if err := c.pool.Resize(target); err != nil {
				c.pool.logger.Warn("auto-adjust resize failed",
					zap.Int("target", target), zap.Error(err))
			}
		}
	}
}

// maybeSignalAutoAdjustLocked checks whether the watermark conditions that
// would justify a resize currently hold, and if so wakes the controller.
// Assumes p.mu is held; acquires and releases the controller's lock only
// to broadcast, never while still needing p.mu for anything else.
func (p *Pool) maybeSignalAutoAdjustLocked() {
	ctrl := p.autoAdjust
	if ctrl == nil {
		return
	}
	ctrl.mu.Lock()
	running := ctrl.state == autoAdjustRunning
	high, low := ctrl.cfg.HighWatermark, ctrl.cfg.LowWatermark
	ctrl.mu.Unlock()
	if !running {
		return
	}

	queueSize := p.queue.len()
	grow := queueSize > high && p.threadCount < p.maxThreads
	shrink := p.idleThreads > low && p.threadCount > p.minThreads
	if grow || shrink {
		ctrl.signal()
	}
}
