package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/models"
	"folio/internal/store"
)

func TestAddTaskRequiresHandler(t *testing.T) {
	s := NewScheduler()

	err := s.AddTask(TaskTypePurgeSessions, "0 */30 * * * *")
	assert.Error(t, err)
}

func TestAddTaskRejectsBadSchedule(t *testing.T) {
	s := NewScheduler()
	s.RegisterHandler(TaskTypePurgeSessions, HandlerFunc(func(context.Context) error { return nil }))

	assert.Error(t, s.AddTask(TaskTypePurgeSessions, "every half hour"))
	assert.Empty(t, s.ListTasks())
}

func TestScheduledTaskRuns(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler()
	s.RegisterHandler(TaskTypePurgeSessions, HandlerFunc(func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.AddTask(TaskTypePurgeSessions, "* * * * * *"))
	assert.Error(t, s.AddTask(TaskTypePurgeSessions, "* * * * * *"))

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	task, err := s.GetTask(TaskTypePurgeSessions)
	require.NoError(t, err)
	assert.False(t, task.NextRunTime.IsZero())
}

func TestRunNowRecordsFailure(t *testing.T) {
	s := NewScheduler()
	s.RegisterHandler(TaskTypePurgeSessions, HandlerFunc(func(context.Context) error {
		return errors.New("store offline")
	}))
	require.NoError(t, s.AddTask(TaskTypePurgeSessions, "0 0 * * * *"))

	err := s.RunNow(context.Background(), TaskTypePurgeSessions)
	assert.Error(t, err)

	task, err := s.GetTask(TaskTypePurgeSessions)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "store offline", task.Error)
	assert.Equal(t, int64(1), task.Runs)
}

type purgerFunc func(ctx context.Context) (int64, error)

func (f purgerFunc) PurgeExpiredSessions(ctx context.Context) (int64, error) { return f(ctx) }

func TestPurgeSessionsTask(t *testing.T) {
	ctx := context.Background()
	identities := store.NewMemoryIdentityStore()
	now := time.Now()

	require.NoError(t, identities.CreateSession(ctx, &models.Session{
		UserID: "u1", RefreshToken: "stale", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, identities.CreateSession(ctx, &models.Session{
		UserID: "u1", RefreshToken: "live", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	task := PurgeSessionsTask(purgerFunc(identities.DeleteExpiredSessions))
	require.NoError(t, task.Handle(ctx))

	removed, err := identities.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = identities.GetSessionByToken(ctx, "live")
	assert.NoError(t, err)

	failing := PurgeSessionsTask(purgerFunc(func(context.Context) (int64, error) {
		return 0, errors.New("boom")
	}))
	assert.Error(t, failing.Handle(ctx))
}

func TestStopIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler()
	s.RegisterHandler(TaskTypePurgeSessions, HandlerFunc(func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.AddTask(TaskTypePurgeSessions, "* * * * * *"))

	// stopping a scheduler that never started returns at once
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())

	s = NewScheduler()
	s.RegisterHandler(TaskTypePurgeSessions, HandlerFunc(func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.AddTask(TaskTypePurgeSessions, "* * * * * *"))
	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	s.Stop(context.Background())
	s.Stop(context.Background())

	stoppedAt := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, stoppedAt, runs.Load())
}
