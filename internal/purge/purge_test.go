package purge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakePurger) PurgeDeletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

var now = time.Date(2025, 5, 1, 4, 0, 0, 0, time.UTC)

func TestRunOnceUsesRestoreWindowCutoff(t *testing.T) {
	store := &fakePurger{n: 3}
	s, err := NewScheduler(store, Config{
		Schedule:      "0 4 * * *",
		RestoreWindow: 30 * 24 * time.Hour,
		Now:           func() time.Time { return now },
	}, nil)
	require.NoError(t, err)

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.Len(t, store.cutoffs, 1)
	assert.Equal(t, now.Add(-30*24*time.Hour), store.cutoffs[0])
}

func TestScheduledRunLogsOutcome(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := &fakePurger{err: errors.New("db down")}
	s, err := NewScheduler(store, Config{
		Schedule:      "@daily",
		RestoreWindow: time.Hour,
		Now:           func() time.Time { return now },
	}, logger)
	require.NoError(t, err)

	s.runScheduled()
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	store.err = nil
	store.n = 2
	s.runScheduled()
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.EqualValues(t, 2, hook.LastEntry().Data["purged"])
}

func TestNewSchedulerValidation(t *testing.T) {
	_, err := NewScheduler(nil, Config{Schedule: "@daily", RestoreWindow: time.Hour}, nil)
	assert.Error(t, err)

	_, err = NewScheduler(&fakePurger{}, Config{Schedule: "@daily"}, nil)
	assert.Error(t, err)

	_, err = NewScheduler(&fakePurger{}, Config{Schedule: "every tuesday", RestoreWindow: time.Hour}, nil)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(&fakePurger{}, Config{Schedule: "@daily", RestoreWindow: time.Hour}, nil)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
