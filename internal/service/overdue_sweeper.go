package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuslib/library-api/pkg/jobs"
)

type overdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// OverdueSweeperConfig tunes the reconciliation schedule.
type OverdueSweeperConfig struct {
	Interval time.Duration
}

// OverdueSweeper periodically reconciles stored loan statuses with due
// dates. Reads never depend on it for correctness, status is derived from
// the due date at read time; the sweep keeps the persisted column usable
// for reports and filters.
type OverdueSweeper struct {
	repo      overdueMarker
	dashboard *DashboardService
	metrics   *MetricsService
	queue     *jobs.Queue
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewOverdueSweeper constructs the sweeper. The dashboard service may be nil
// when caching is disabled.
func NewOverdueSweeper(repo overdueMarker, dashboard *DashboardService, metrics *MetricsService, logger *zap.Logger, cfg OverdueSweeperConfig) *OverdueSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	s := &OverdueSweeper{
		repo:      repo,
		dashboard: dashboard,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue("overdue-sweep", s.handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the worker queue and the ticker that feeds it. An initial
// sweep is enqueued immediately so a restart does not wait a full interval.
func (s *OverdueSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.queue.Start(ctx)
	s.enqueue()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.enqueue()
			}
		}
	}()
	s.started = true
	s.logger.Info("overdue sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the ticker and drains the worker queue.
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.started = false
	s.mu.Unlock()
	<-done
	s.queue.Stop()
	s.logger.Info("overdue sweeper stopped")
}

// SweepNow runs one reconciliation pass synchronously and returns how many
// loans were marked overdue.
func (s *OverdueSweeper) SweepNow(ctx context.Context) (int64, error) {
	marked, err := s.repo.MarkOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("overdue sweep: %w", err)
	}
	s.metrics.RecordOverdueSweep(marked)
	if marked > 0 {
		s.logger.Info("overdue loans reconciled", zap.Int64("marked", marked))
		if s.dashboard != nil {
			s.dashboard.Invalidate(ctx)
		}
	}
	return marked, nil
}

func (s *OverdueSweeper) enqueue() {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "overdue-sweep"})
	if err != nil {
		s.logger.Warn("failed to enqueue overdue sweep", zap.Error(err))
	}
}

func (s *OverdueSweeper) handle(ctx context.Context, _ jobs.Job) error {
	_, err := s.SweepNow(ctx)
	return err
}
