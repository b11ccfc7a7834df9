package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompletionStore struct {
	promoted int64
	err      error
	calls    int
	lastNow  time.Time
}

func (s *stubCompletionStore) MarkCompleted(_ context.Context, now time.Time) (int64, error) {
	s.calls++
	s.lastNow = now
	if s.err != nil {
		return 0, s.err
	}
	return s.promoted, nil
}

func TestSweepNowReturnsPromotedCount(t *testing.T) {
	store := &stubCompletionStore{promoted: 3}
	svc := NewCompletionService(store, NewMetricsService(), time.Minute, nil)

	promoted, err := svc.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), promoted)
	assert.Equal(t, 1, store.calls)
	assert.False(t, store.lastNow.IsZero())
}

func TestSweepNowPropagatesStoreError(t *testing.T) {
	store := &stubCompletionStore{err: errors.New("db down")}
	svc := NewCompletionService(store, NewMetricsService(), time.Minute, nil)

	_, err := svc.SweepNow(context.Background())
	assert.Error(t, err)
}

func TestStartRunsInitialSweep(t *testing.T) {
	store := &stubCompletionStore{}
	svc := NewCompletionService(store, NewMetricsService(), time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	require.Eventually(t, func() bool { return store.calls >= 1 }, time.Second, 10*time.Millisecond)
}
