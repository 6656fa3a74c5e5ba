package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/gitsong/internal/store"
)

// PollerConfig holds configuration for the background poller.
type PollerConfig struct {
	// Interval defines how often to look for stale tasks.
	// If zero, defaults to one minute.
	Interval time.Duration

	// StaleAfter defines how long a task may go without an update before it
	// is polled. Zero polls every active task.
	StaleAfter time.Duration

	// BatchSize caps the tasks polled per tick. If zero, defaults to 50.
	BatchSize int

	// Workers bounds concurrent polls. If zero, defaults to 4.
	Workers int
}

// DefaultPollerConfig returns a PollerConfig with reasonable defaults.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:   time.Minute,
		StaleAfter: 5 * time.Minute,
		BatchSize:  50,
		Workers:    4,
	}
}

// Poller periodically polls active tasks that have not heard from the
// upstream service recently, covering missed webhooks.
type Poller struct {
	tasks      store.GenerationTaskStore
	reconciler *Reconciler
	config     PollerConfig
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller.
func NewPoller(tasks store.GenerationTaskStore, reconciler *Reconciler, config PollerConfig, logger *slog.Logger) *Poller {
	def := DefaultPollerConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	return &Poller{
		tasks:      tasks,
		reconciler: reconciler,
		config:     config,
		logger:     logger.With("component", "task_poller"),
	}
}

// Start launches the polling loop. Calling Start on a running poller is a
// no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.loop(ctx)

	p.logger.Info("poller started",
		"interval", p.config.Interval,
		"stale_after", p.config.StaleAfter)
}

// Stop cancels the loop and waits for in-flight polls to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("poller stopped")
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("failed to poll stale tasks", "error", err)
			}
		}
	}
}

// RunOnce polls one batch of stale tasks and returns how many were polled.
// A failed poll is logged and does not stop the batch.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	stale, err := p.tasks.ListActiveTasks(ctx, p.config.StaleAfter, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list active tasks: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}
	p.logger.InfoContext(ctx, "polling stale tasks", "count", len(stale))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for _, task := range stale {
		g.Go(func() error {
			out, err := p.reconciler.Poll(gctx, task.ExternalTaskID)
			if err != nil {
				p.logger.WarnContext(gctx, "failed to poll task",
					"task_id", task.ExternalTaskID,
					"error", err)
				return nil
			}
			if out.Applied {
				p.logger.InfoContext(gctx, "poll advanced task",
					"task_id", task.ExternalTaskID,
					"status", out.Task.Status)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(stale), nil
}
