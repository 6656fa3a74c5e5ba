package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/platform/logger"
)

func TestPoller_RunOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"T1", "T2", "T3"} {
		_, err := f.r.Submit(ctx, id, domain.TaskKindAudio, uuid.New())
		require.NoError(t, err)
	}
	// T3 finished through a callback; the poller must skip it.
	_, err := f.r.Apply(ctx, domain.TaskUpdate{TaskID: "T3", Status: domain.TaskStatusFailed, Error: "x"})
	require.NoError(t, err)

	f.music.EXPECT().GetTask(gomock.Any(), "T1").Return(&domain.TaskUpdate{
		TaskID: "T1", Status: domain.TaskStatusCompleted, ResultRefs: twoTracks(),
	}, nil)
	f.music.EXPECT().GetTask(gomock.Any(), "T2").Return(nil, errors.New("timeout"))

	p := NewPoller(f.tasks, f.r, PollerConfig{StaleAfter: 0, Workers: 2}, logger.Discard())
	n, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t1, err := f.tasks.GetTask(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, t1.Status)
	t2, err := f.tasks.GetTask(ctx, "T2")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, t2.Status)
}

func TestPoller_SkipsFreshTasks(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.r.Submit(ctx, "T1", domain.TaskKindAudio, uuid.New())
	require.NoError(t, err)

	p := NewPoller(f.tasks, f.r, PollerConfig{StaleAfter: time.Hour}, logger.Discard())
	n, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPoller_StartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.r.Submit(ctx, "T1", domain.TaskKindAudio, uuid.New())
	require.NoError(t, err)

	var polls atomic.Int32
	f.music.EXPECT().GetTask(gomock.Any(), "T1").DoAndReturn(func(context.Context, string) (*domain.TaskUpdate, error) {
		if polls.Add(1) < 3 {
			return &domain.TaskUpdate{TaskID: "T1", Status: domain.TaskStatusProcessing}, nil
		}
		return &domain.TaskUpdate{TaskID: "T1", Status: domain.TaskStatusCompleted}, nil
	}).MinTimes(3)

	p := NewPoller(f.tasks, f.r, PollerConfig{Interval: 5 * time.Millisecond}, logger.Discard())
	p.Start()
	p.Start()

	assert.Eventually(t, func() bool {
		task, err := f.tasks.GetTask(ctx, "T1")
		return err == nil && task.Status == domain.TaskStatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
}
