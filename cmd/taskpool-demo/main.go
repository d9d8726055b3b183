// Command taskpool-demo exercises taskpool end to end: priority dispatch,
// auto-adjust resizing, and cancellation by id, driven either by flags or a
// YAML config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/taskpool"
	"github.com/example/taskpool/internal/poollog"
	"github.com/example/taskpool/internal/poolmetrics"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML config file (overrides other flags)")
		threads     = flag.Int("threads", 4, "initial worker count")
		minThreads  = flag.Int("min", 1, "minimum worker count")
		maxThreads  = flag.Int("max", 16, "maximum worker count")
		autoAdjust  = flag.Bool("auto-adjust", true, "enable the auto-adjust controller")
		submitRate  = flag.Float64("rate", 20, "synthetic task submission rate, tasks/sec")
		duration    = flag.Duration("duration", 30*time.Second, "how long to run the demo")
		metricsPort = flag.Int("metrics-port", 9090, "Prometheus exporter port, 0 disables it")
	)
	flag.Parse()

	logger := poollog.FromEnv()
	defer logger.Sync() //nolint:errcheck

	var pool *taskpool.Pool
	var err error

	if *configPath != "" {
		cfg, loadErr := taskpool.LoadConfig(*configPath)
		if loadErr != nil {
			logger.Fatal("loading config", zap.Error(loadErr))
		}
		if cfg.LogLevel != "" {
			logger = poollog.New(cfg.LogLevel)
		}
		pool, err = taskpool.NewFromConfig(cfg, taskpool.WithLogger(logger))
		if *metricsPort == 9090 && cfg.MetricsPort != 0 {
			*metricsPort = cfg.MetricsPort
		}
	} else {
		pool, err = taskpool.New(*threads, taskpool.WithLogger(logger))
		if err == nil {
			err = pool.SetLimits(*minThreads, *maxThreads)
		}
		if err == nil && *autoAdjust {
			err = pool.EnableAutoAdjust(taskpool.AutoAdjustConfig{
				HighWatermark:  8,
				LowWatermark:   2,
				AdjustInterval: 2 * time.Second,
			})
		}
	}
	if err != nil {
		logger.Fatal("constructing pool", zap.Error(err))
	}
	defer func() {
		if derr := pool.Destroy(); derr != nil {
			logger.Warn("destroying pool", zap.Error(derr))
		}
	}()

	var exporter *poolmetrics.Exporter
	if *metricsPort != 0 {
		exporter = poolmetrics.New(poolmetrics.Config{Port: *metricsPort})
		if serr := exporter.Start(); serr != nil {
			logger.Warn("starting metrics exporter", zap.Error(serr))
			exporter = nil
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = exporter.Stop(ctx)
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDemo(ctx, pool, exporter, *submitRate, *duration, logger)
}

// runDemo submits synthetic tasks at a rate-limited pace, periodically
// logs stats, cancels a fraction of queued tasks, and refreshes the
// metrics exporter.
func runDemo(ctx context.Context, pool *taskpool.Pool, exporter *poolmetrics.Exporter, tasksPerSecond float64, duration time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(tasksPerSecond), 1)
	statsTicker := time.NewTicker(time.Second)
	defer statsTicker.Stop()

	var submitted, cancelled int

	for {
		select {
		case <-ctx.Done():
			logger.Info("demo complete",
				zap.Int("submitted", submitted),
				zap.Int("cancelled", cancelled),
				zap.Any("final_stats", pool.Stats()),
			)
			return

		case <-statsTicker.C:
			stats := pool.Stats()
			if exporter != nil {
				exporter.UpdateFromStats(stats.ThreadCount, stats.MinThreads, stats.MaxThreads,
					stats.IdleThreads, stats.TaskQueueSize, stats.Started)
			}
			logger.Info("pool stats",
				zap.Int("thread_count", stats.ThreadCount),
				zap.Int("idle_threads", stats.IdleThreads),
				zap.Int("queue_size", stats.TaskQueueSize),
			)

		default:
			if err := limiter.Wait(ctx); err != nil {
				continue
			}
			name := fmt.Sprintf("%s_%s", gofakeit.Verb(), uuid.NewString()[:8])
			priority := randomPriority()
			work := gofakeit.Number(10, 200)

			id, err := pool.Submit(func(arg any) (err error) {
				if exporter != nil {
					defer func() {
						if r := recover(); r != nil {
							exporter.RecordTaskPanicked()
							panic(r) // re-panic: the pool's own recover still logs and accounts for it
						}
						if err != nil {
							exporter.RecordTaskFailed()
						}
					}()
				}
				time.Sleep(time.Duration(arg.(int)) * time.Millisecond)
				switch {
				case gofakeit.Number(0, 49) == 0:
					panic(fmt.Sprintf("synthetic panic for %v", arg))
				case gofakeit.Bool() && gofakeit.Number(0, 9) == 0:
					return fmt.Errorf("synthetic failure for %v", arg)
				}
				return nil
			}, work, name, priority)
			if err != nil {
				logger.Debug("submit failed", zap.Error(err))
				continue
			}
			submitted++

			if rand.Intn(10) == 0 {
				if cerr := pool.CancelTaskByID(id, nil); cerr == nil {
					cancelled++
				}
			}
		}
	}
}

func randomPriority() taskpool.Priority {
	switch gofakeit.Number(0, 3) {
	case 0:
		return taskpool.PriorityHigh
	case 1:
		return taskpool.PriorityNormal
	case 2:
		return taskpool.PriorityLow
	default:
		return taskpool.PriorityBackground
	}
}
