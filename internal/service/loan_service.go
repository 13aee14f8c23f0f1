package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type loanRepository interface {
	CreateWithBorrow(ctx context.Context, loan *models.Loan) error
	Return(ctx context.Context, loanID string, returnedAt time.Time) error
	FindByID(ctx context.Context, id string) (*models.LoanDetail, error)
	List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error)
	ListByBorrower(ctx context.Context, borrowerID string) ([]models.LoanDetail, []models.LoanDetail, error)
}

type borrowerLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateLoanRequest holds payload for creating loans.
type CreateLoanRequest struct {
	BookID     string     `json:"book_id" validate:"required"`
	BorrowerID string     `json:"borrower_id" validate:"required"`
	DueDate    *time.Time `json:"due_date"`
	Notes      string     `json:"notes"`
}

// SelfLoanRequest is the borrower-initiated variant: the borrower is the
// caller and no librarian is attached.
type SelfLoanRequest struct {
	BookID  string     `json:"book_id" validate:"required"`
	DueDate *time.Time `json:"due_date"`
	Notes   string     `json:"notes"`
}

// MyLoansResponse splits a borrower's loans into pending and history.
type MyLoansResponse struct {
	Active []models.LoanDetail `json:"active"`
	Past   []models.LoanDetail `json:"past"`
}

// LoanService handles the borrow/return workflow.
type LoanService struct {
	repo      loanRepository
	users     borrowerLookup
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	period    time.Duration
	now       func() time.Time
}

// NewLoanService constructs the loan service.
func NewLoanService(repo loanRepository, users borrowerLookup, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, period time.Duration) *LoanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if period <= 0 {
		period = models.DefaultLoanPeriod
	}
	return &LoanService{repo: repo, users: users, validator: validate, logger: logger, metrics: metrics, period: period, now: time.Now}
}

// Create opens a loan on behalf of a borrower and consumes one copy of the
// book. The availability check, the decrement and the loan insert are one
// atomic operation in the repository, so two concurrent requests cannot both
// take the last copy.
func (s *LoanService) Create(ctx context.Context, librarianID string, req CreateLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan payload")
	}
	return s.open(ctx, req.BookID, req.BorrowerID, optionalString(librarianID), req.DueDate, req.Notes)
}

// CreateSelf opens a loan for the calling borrower.
func (s *LoanService) CreateSelf(ctx context.Context, borrowerID string, req SelfLoanRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid loan payload")
	}
	return s.open(ctx, req.BookID, borrowerID, nil, req.DueDate, req.Notes)
}

func (s *LoanService) open(ctx context.Context, bookID, borrowerID string, librarianID *string, dueDate *time.Time, notes string) (*models.LoanDetail, error) {
	borrower, err := s.users.FindByID(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "borrower not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load borrower")
	}
	if !borrower.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "borrower account is inactive")
	}
	if !borrower.Role.CanBorrow() {
		return nil, appErrors.Clone(appErrors.ErrCannotBorrow, "borrower role is not allowed to hold loans")
	}

	now := s.now().UTC()
	due := now.Add(s.period)
	if dueDate != nil {
		due = dueDate.UTC()
	}
	if due.Before(now) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date must not precede the borrow date")
	}

	loan := &models.Loan{
		BookID:      bookID,
		BorrowerID:  borrowerID,
		LibrarianID: librarianID,
		BorrowDate:  now,
		DueDate:     due,
		Status:      models.LoanStatusActive,
		Notes:       optionalString(notes),
	}

	if err := s.repo.CreateWithBorrow(ctx, loan); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}

	s.metrics.RecordLoanOpened()
	s.logger.Info("loan created",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", bookID),
		zap.String("borrower_id", borrowerID),
	)

	detail, err := s.repo.FindByID(ctx, loan.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load created loan")
	}
	return detail, nil
}

// Return closes a non-terminal loan and restores one copy to the book.
func (s *LoanService) Return(ctx context.Context, loanID string) (*models.LoanDetail, error) {
	if _, err := s.repo.FindByID(ctx, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}

	if err := s.repo.Return(ctx, loanID, s.now().UTC()); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return loan")
	}

	s.metrics.RecordLoanReturned()
	s.logger.Info("loan returned", zap.String("loan_id", loanID))

	detail, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load returned loan")
	}
	return detail, nil
}

// Get returns a loan; non-librarians may only see their own.
func (s *LoanService) Get(ctx context.Context, loanID string, claims *models.JWTClaims) (*models.LoanDetail, error) {
	detail, err := s.repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if !claims.Role.IsLibrarian() && detail.BorrowerID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "loan belongs to another borrower")
	}
	return detail, nil
}

// List returns loans scoped to the caller: librarians see everything, other
// roles only their own.
func (s *LoanService) List(ctx context.Context, claims *models.JWTClaims, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error) {
	if !claims.Role.IsLibrarian() {
		filter.BorrowerID = claims.UserID
	}
	filter.Page, filter.PageSize = models.NormalizePaging(filter.Page, filter.PageSize)
	loans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return loans, pagination, nil
}

// MyLoans returns the caller's pending loans and loan history.
func (s *LoanService) MyLoans(ctx context.Context, borrowerID string) (*MyLoansResponse, error) {
	active, past, err := s.repo.ListByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	return &MyLoansResponse{Active: active, Past: past}, nil
}
