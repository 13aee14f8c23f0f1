package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockOverdueMarker struct {
	marked int64
	calls  int64
}

func (m *mockOverdueMarker) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	atomic.AddInt64(&m.calls, 1)
	return atomic.LoadInt64(&m.marked), nil
}

func TestOverdueSweeperSweepNow(t *testing.T) {
	repo := &mockOverdueMarker{marked: 3}
	sweeper := NewOverdueSweeper(repo, nil, nil, zap.NewNop(), OverdueSweeperConfig{})

	marked, err := sweeper.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)
	assert.Equal(t, int64(1), atomic.LoadInt64(&repo.calls))
}

func TestOverdueSweeperRunsInitialSweep(t *testing.T) {
	repo := &mockOverdueMarker{}
	sweeper := NewOverdueSweeper(repo, nil, nil, zap.NewNop(), OverdueSweeperConfig{Interval: time.Hour})

	sweeper.Start(context.Background())
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&repo.calls) >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestOverdueSweeperStopIsIdempotent(t *testing.T) {
	repo := &mockOverdueMarker{}
	sweeper := NewOverdueSweeper(repo, nil, nil, zap.NewNop(), OverdueSweeperConfig{Interval: time.Hour})

	sweeper.Start(context.Background())
	sweeper.Stop()
	sweeper.Stop()
}
