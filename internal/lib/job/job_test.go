package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/posts-api/internal/config"
)

type fakePurger struct {
	before time.Time
	calls  int
	n      int64
	err    error
}

func (f *fakePurger) PurgeDeleted(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = before
	return f.n, f.err
}

func newTestJobService(t *testing.T, purger Purger) *JobService {
	t.Helper()

	logger := zerolog.Nop()
	j := NewJobService(&logger, config.Defaults())
	j.InitHandlers(purger)
	t.Cleanup(j.Stop)
	return j
}

func TestNewPurgeDeletedTask(t *testing.T) {
	t.Parallel()

	task, err := NewPurgeDeletedTask(48 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, TaskPurgeDeleted, task.Type())

	var p PurgeDeletedPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	require.Equal(t, 48*time.Hour, p.OlderThan)

	_, err = NewPurgeDeletedTask(-time.Second)
	require.Error(t, err)
}

func TestHandlePurgeDeletedTask(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("purges rows deleted before the cutoff", func(t *testing.T) {
		t.Parallel()

		purger := &fakePurger{n: 3}
		j := newTestJobService(t, purger)
		j.now = func() time.Time { return now }

		task, err := NewPurgeDeletedTask(24 * time.Hour)
		require.NoError(t, err)

		require.NoError(t, j.handlePurgeDeletedTask(context.Background(), task))
		require.Equal(t, 1, purger.calls)
		require.Equal(t, now.Add(-24*time.Hour), purger.before)
	})

	t.Run("store errors are retried", func(t *testing.T) {
		t.Parallel()

		storeErr := errors.New("connection refused")
		j := newTestJobService(t, &fakePurger{err: storeErr})

		task, err := NewPurgeDeletedTask(time.Hour)
		require.NoError(t, err)

		err = j.handlePurgeDeletedTask(context.Background(), task)
		require.ErrorIs(t, err, storeErr)
		require.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		t.Parallel()

		purger := &fakePurger{}
		j := newTestJobService(t, purger)

		err := j.handlePurgeDeletedTask(context.Background(), asynq.NewTask(TaskPurgeDeleted, []byte("{")))
		require.ErrorIs(t, err, asynq.SkipRetry)
		require.Zero(t, purger.calls)
	})
}

func TestStartRequiresHandlers(t *testing.T) {
	t.Parallel()

	logger := zerolog.Nop()
	j := NewJobService(&logger, config.Defaults())
	t.Cleanup(j.Stop)

	require.Error(t, j.Start())
}
