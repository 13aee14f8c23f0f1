package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campuslib/library-api/internal/dto"
	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

const dashboardCacheKey = "dash:library"

type bookCounter interface {
	CountByStatus(ctx context.Context) (map[models.BookStatus]int, int, error)
}

type loanCounter interface {
	CountByStatus(ctx context.Context) (map[models.LoanStatus]int, error)
	ListNonTerminal(ctx context.Context, limit int) ([]models.LoanDetail, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.LoanDetail, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL         time.Duration
	RecentLoansLimit int
}

// DashboardService composes the librarian dashboard payload.
type DashboardService struct {
	books  bookCounter
	loans  loanCounter
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(books bookCounter, loans loanCounter, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLoansLimit <= 0 {
		cfg.RecentLoansLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{books: books, loans: loans, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Summary returns the dashboard payload and indicates cache utilisation.
// Overdue counts are derived from due dates at read time, so the figure is
// accurate even when the sweep has not yet reconciled stored statuses.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardResponse, bool, error) {
	if s.cache.Enabled() {
		var cached dto.DashboardResponse
		hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops the cached dashboard. Called after borrows, returns and
// catalog mutations.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (*dto.DashboardResponse, error) {
	bookCounts, totalBooks, err := s.books.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count books")
	}
	loanCounts, err := s.loans.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count loans")
	}
	recent, err := s.loans.ListNonTerminal(ctx, s.cfg.RecentLoansLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent loans")
	}
	now := s.now().UTC()
	overdueLoans, err := s.loans.ListOverdue(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue loans")
	}
	overdue := make([]dto.OverdueLoan, 0, len(overdueLoans))
	for _, loan := range overdueLoans {
		overdue = append(overdue, dto.OverdueLoan{LoanDetail: loan, DaysOverdue: loan.DaysOverdue(now)})
	}

	total := 0
	for _, count := range loanCounts {
		total += count
	}

	return &dto.DashboardResponse{
		Books: dto.DashboardBooks{
			Total:       totalBooks,
			Available:   bookCounts[models.BookStatusAvailable],
			Borrowed:    bookCounts[models.BookStatusBorrowed],
			Maintenance: bookCounts[models.BookStatusMaintenance],
			Lost:        bookCounts[models.BookStatusLost],
		},
		Loans: dto.DashboardLoans{
			Active:   loanCounts[models.LoanStatusActive] + loanCounts[models.LoanStatusOverdue] - len(overdueLoans),
			Overdue:  len(overdueLoans),
			Returned: loanCounts[models.LoanStatusReturned],
			Total:    total,
		},
		RecentLoans: recent,
		Overdue:     overdue,
	}, nil
}
