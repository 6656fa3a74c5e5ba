package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
)

// WaitOptions bounds WaitForCompletion.
type WaitOptions struct {
	// Interval is the delay between polls.
	Interval time.Duration
	// MaxAttempts is the number of polls before giving up.
	MaxAttempts int
}

// DefaultWaitOptions polls every ten seconds for up to ten minutes.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Interval: 10 * time.Second, MaxAttempts: 60}
}

// Completion is the result of a task that finished successfully.
type Completion struct {
	Task      *domain.GenerationTask
	Artifacts []*domain.AudioFile
	// ArtifactErr reports artifacts that could not be stored.
	ArtifactErr error
}

// WaitForCompletion polls a task until it is terminal or the attempt budget
// runs out. A callback that completes the task meanwhile ends the wait on
// the next attempt. Upstream failure yields ErrUpstreamFailed; exhaustion
// yields ErrPollingExhausted.
func (r *Reconciler) WaitForCompletion(ctx context.Context, externalTaskID string, opts WaitOptions) (*Completion, error) {
	def := DefaultWaitOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	log := r.logger.With("task_id", externalTaskID)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "stopped waiting for task", "outcome", "cancelled", "attempts", attempt-1)
			return nil, ctx.Err()
		case <-timer.C:
		}

		out, err := r.Poll(ctx, externalTaskID)
		switch {
		case errors.Is(err, ErrUnknownTask):
			return nil, err
		case err != nil:
			log.WarnContext(ctx, "poll attempt failed", "attempt", attempt, "error", err)
		case out.Task.Status == domain.TaskStatusCompleted:
			log.InfoContext(ctx, "task finished", "outcome", "completed", "attempts", attempt)
			return &Completion{Task: out.Task, Artifacts: out.Artifacts, ArtifactErr: out.ArtifactErr}, nil
		case out.Task.Status == domain.TaskStatusFailed:
			log.InfoContext(ctx, "task finished", "outcome", "failed", "attempts", attempt)
			return nil, fmt.Errorf("%w: %s", ErrUpstreamFailed, out.Task.LastError)
		}

		timer.Reset(opts.Interval)
	}

	log.WarnContext(ctx, "task did not finish in time", "outcome", "exhausted", "attempts", opts.MaxAttempts)
	return nil, fmt.Errorf("%w: task %s after %d attempts", ErrPollingExhausted, externalTaskID, opts.MaxAttempts)
}
