package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type mockLoanRepo struct {
	loans      map[string]models.LoanDetail
	created    *models.Loan
	createErr  error
	returned   []string
	returnErr  error
	listFilter models.LoanFilter
}

func (m *mockLoanRepo) CreateWithBorrow(ctx context.Context, loan *models.Loan) error {
	if m.createErr != nil {
		return m.createErr
	}
	if loan.ID == "" {
		loan.ID = "new-loan"
	}
	if m.loans == nil {
		m.loans = make(map[string]models.LoanDetail)
	}
	m.loans[loan.ID] = models.LoanDetail{Loan: *loan}
	m.created = loan
	return nil
}

func (m *mockLoanRepo) Return(ctx context.Context, loanID string, returnedAt time.Time) error {
	if m.returnErr != nil {
		return m.returnErr
	}
	if d, ok := m.loans[loanID]; ok {
		d.Status = models.LoanStatusReturned
		d.ReturnDate = &returnedAt
		m.loans[loanID] = d
	}
	m.returned = append(m.returned, loanID)
	return nil
}

func (m *mockLoanRepo) FindByID(ctx context.Context, id string) (*models.LoanDetail, error) {
	if d, ok := m.loans[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLoanRepo) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error) {
	m.listFilter = filter
	var list []models.LoanDetail
	for _, d := range m.loans {
		if filter.BorrowerID != "" && d.BorrowerID != filter.BorrowerID {
			continue
		}
		list = append(list, d)
	}
	return list, len(list), nil
}

func (m *mockLoanRepo) ListByBorrower(ctx context.Context, borrowerID string) ([]models.LoanDetail, []models.LoanDetail, error) {
	var active, past []models.LoanDetail
	for _, d := range m.loans {
		if d.BorrowerID != borrowerID {
			continue
		}
		if d.Terminal() {
			past = append(past, d)
		} else {
			active = append(active, d)
		}
	}
	return active, past, nil
}

type mockBorrowerLookup struct {
	users map[string]*models.User
}

func (m *mockBorrowerLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func borrowers() *mockBorrowerLookup {
	return &mockBorrowerLookup{users: map[string]*models.User{
		"student-1":   {ID: "student-1", Role: models.RoleStudent, Active: true},
		"staff-1":     {ID: "staff-1", Role: models.RoleStaff, Active: true},
		"librarian-1": {ID: "librarian-1", Role: models.RoleLibrarian, Active: true},
		"inactive-1":  {ID: "inactive-1", Role: models.RoleStudent, Active: false},
	}}
}

func newLoanService(repo *mockLoanRepo) *LoanService {
	svc := NewLoanService(repo, borrowers(), validator.New(), zap.NewNop(), nil, 0)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestLoanServiceCreateDefaultsDueDate(t *testing.T) {
	repo := &mockLoanRepo{}
	svc := newLoanService(repo)

	detail, err := svc.Create(context.Background(), "librarian-1", CreateLoanRequest{BookID: "b1", BorrowerID: "student-1"})
	require.NoError(t, err)
	require.NotNil(t, repo.created)

	assert.Equal(t, models.LoanStatusActive, detail.Status)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), repo.created.DueDate)
	require.NotNil(t, repo.created.LibrarianID)
	assert.Equal(t, "librarian-1", *repo.created.LibrarianID)
}

func TestLoanServiceCreateSelfHasNoLibrarian(t *testing.T) {
	repo := &mockLoanRepo{}
	svc := newLoanService(repo)

	_, err := svc.CreateSelf(context.Background(), "student-1", SelfLoanRequest{BookID: "b1"})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Nil(t, repo.created.LibrarianID)
	assert.Equal(t, "student-1", repo.created.BorrowerID)
}

func TestLoanServiceCreateRejectsLibrarianBorrower(t *testing.T) {
	repo := &mockLoanRepo{}
	svc := newLoanService(repo)

	_, err := svc.Create(context.Background(), "librarian-1", CreateLoanRequest{BookID: "b1", BorrowerID: "librarian-1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrCannotBorrow.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestLoanServiceCreateRejectsInactiveBorrower(t *testing.T) {
	repo := &mockLoanRepo{}
	svc := newLoanService(repo)

	_, err := svc.Create(context.Background(), "librarian-1", CreateLoanRequest{BookID: "b1", BorrowerID: "inactive-1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestLoanServiceCreateRejectsPastDueDate(t *testing.T) {
	repo := &mockLoanRepo{}
	svc := newLoanService(repo)

	past := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), "librarian-1", CreateLoanRequest{BookID: "b1", BorrowerID: "student-1", DueDate: &past})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLoanServiceCreatePropagatesUnavailable(t *testing.T) {
	repo := &mockLoanRepo{createErr: appErrors.ErrBookUnavailable}
	svc := newLoanService(repo)

	_, err := svc.Create(context.Background(), "librarian-1", CreateLoanRequest{BookID: "b1", BorrowerID: "student-1"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrBookUnavailable.Code, appErr.Code)
}

func TestLoanServiceReturn(t *testing.T) {
	repo := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", BookID: "b1", BorrowerID: "student-1", Status: models.LoanStatusActive}},
	}}
	svc := newLoanService(repo)

	detail, err := svc.Return(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, detail.Status)
	assert.Contains(t, repo.returned, "l1")
}

func TestLoanServiceReturnMissingLoan(t *testing.T) {
	repo := &mockLoanRepo{}
	svc := newLoanService(repo)

	_, err := svc.Return(context.Background(), "absent")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestLoanServiceReturnAlreadyReturned(t *testing.T) {
	repo := &mockLoanRepo{
		loans: map[string]models.LoanDetail{
			"l1": {Loan: models.Loan{ID: "l1", Status: models.LoanStatusReturned}},
		},
		returnErr: appErrors.ErrAlreadyReturned,
	}
	svc := newLoanService(repo)

	_, err := svc.Return(context.Background(), "l1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrAlreadyReturned.Code, appErr.Code)
}

func TestLoanServiceListScopesNonLibrarians(t *testing.T) {
	repo := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", BorrowerID: "student-1", Status: models.LoanStatusActive}},
		"l2": {Loan: models.Loan{ID: "l2", BorrowerID: "staff-1", Status: models.LoanStatusActive}},
	}}
	svc := newLoanService(repo)

	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	loans, pagination, err := svc.List(context.Background(), claims, models.LoanFilter{})
	require.NoError(t, err)
	assert.Len(t, loans, 1)
	assert.Equal(t, "student-1", repo.listFilter.BorrowerID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestLoanServiceListLibrarianSeesAll(t *testing.T) {
	repo := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", BorrowerID: "student-1", Status: models.LoanStatusActive}},
		"l2": {Loan: models.Loan{ID: "l2", BorrowerID: "staff-1", Status: models.LoanStatusActive}},
	}}
	svc := newLoanService(repo)

	claims := &models.JWTClaims{UserID: "librarian-1", Role: models.RoleLibrarian}
	loans, _, err := svc.List(context.Background(), claims, models.LoanFilter{})
	require.NoError(t, err)
	assert.Len(t, loans, 2)
	assert.Empty(t, repo.listFilter.BorrowerID)
}

func TestLoanServiceListClampsOversizedPage(t *testing.T) {
	repo := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", BorrowerID: "student-1", Status: models.LoanStatusActive}},
	}}
	svc := newLoanService(repo)

	claims := &models.JWTClaims{UserID: "librarian-1", Role: models.RoleLibrarian}
	_, pagination, err := svc.List(context.Background(), claims, models.LoanFilter{PageSize: 500})
	require.NoError(t, err)
	// Metadata reflects the size the repository actually serves.
	assert.Equal(t, models.DefaultPageSize, pagination.PageSize)
	assert.Equal(t, models.DefaultPageSize, repo.listFilter.PageSize)
	assert.Equal(t, 1, pagination.Page)
}

func TestLoanServiceGetForbidsOtherBorrower(t *testing.T) {
	repo := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", BorrowerID: "staff-1", Status: models.LoanStatusActive}},
	}}
	svc := newLoanService(repo)

	claims := &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}
	_, err := svc.Get(context.Background(), "l1", claims)
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestLoanServiceMyLoansSplitsActiveAndPast(t *testing.T) {
	returned := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	repo := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", BorrowerID: "student-1", Status: models.LoanStatusActive}},
		"l2": {Loan: models.Loan{ID: "l2", BorrowerID: "student-1", Status: models.LoanStatusReturned, ReturnDate: &returned}},
		"l3": {Loan: models.Loan{ID: "l3", BorrowerID: "staff-1", Status: models.LoanStatusActive}},
	}}
	svc := newLoanService(repo)

	resp, err := svc.MyLoans(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, resp.Active, 1)
	assert.Len(t, resp.Past, 1)
}
