package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuslib/library-api/internal/models"
	"github.com/campuslib/library-api/internal/service"
	appErrors "github.com/campuslib/library-api/pkg/errors"
	"github.com/campuslib/library-api/pkg/response"
)

type loanService interface {
	Create(ctx context.Context, librarianID string, req service.CreateLoanRequest) (*models.LoanDetail, error)
	CreateSelf(ctx context.Context, borrowerID string, req service.SelfLoanRequest) (*models.LoanDetail, error)
	Return(ctx context.Context, loanID string) (*models.LoanDetail, error)
	Get(ctx context.Context, loanID string, claims *models.JWTClaims) (*models.LoanDetail, error)
	List(ctx context.Context, claims *models.JWTClaims, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error)
	MyLoans(ctx context.Context, borrowerID string) (*service.MyLoansResponse, error)
}

type loanExporter interface {
	Loans(ctx context.Context, filter models.LoanFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// LoanHandler exposes the borrow/return endpoints.
type LoanHandler struct {
	loans     loanService
	exports   loanExporter
	dashboard dashboardInvalidator
}

// NewLoanHandler constructs LoanHandler. The export and dashboard services
// may be nil when those features are disabled.
func NewLoanHandler(loans loanService, exports loanExporter, dashboard dashboardInvalidator) *LoanHandler {
	return &LoanHandler{loans: loans, exports: exports, dashboard: dashboard}
}

// Create godoc
// @Summary Open loan
// @Description Lend a book to a borrower and consume one copy
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.CreateLoanRequest true "Loan payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.Created(c, loan)
}

// CreateSelf godoc
// @Summary Borrow a book
// @Description Open a loan for the calling borrower
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.SelfLoanRequest true "Loan payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans/self [post]
func (h *LoanHandler) CreateSelf(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SelfLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.loans.CreateSelf(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.Created(c, loan)
}

// Return godoc
// @Summary Return loan
// @Description Close a loan and restore one copy to the book
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans/{id}/return [post]
func (h *LoanHandler) Return(c *gin.Context) {
	loan, err := h.loans.Return(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.JSON(c, http.StatusOK, loan, nil)
}

// List godoc
// @Summary List loans
// @Description Librarians see every loan, other roles only their own
// @Tags Loans
// @Produce json
// @Param borrowerId query string false "Filter by borrower"
// @Param bookId query string false "Filter by book"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := loanFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	loans, pagination, err := h.loans.List(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// Get godoc
// @Summary Get loan detail
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	loan, err := h.loans.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// My godoc
// @Summary My loans
// @Description Return the caller's pending loans and history
// @Tags Loans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /loans/my [get]
func (h *LoanHandler) My(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	loans, err := h.loans.MyLoans(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, nil)
}

// Export godoc
// @Summary Export loan register
// @Description Download the filtered loan register as CSV or PDF
// @Tags Loans
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf (default csv)"
// @Param borrowerId query string false "Filter by borrower"
// @Param status query string false "Filter by status"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /loans/export [get]
func (h *LoanHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}

	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := loanFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.exports.Loans(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

func loanFilterFromQuery(c *gin.Context) (models.LoanFilter, error) {
	var filter models.LoanFilter
	filter.BorrowerID = c.Query("borrowerId")
	filter.BookID = c.Query("bookId")
	if raw := c.Query("status"); raw != "" {
		status := models.LoanStatus(strings.ToUpper(raw))
		switch status {
		case models.LoanStatusActive, models.LoanStatusOverdue, models.LoanStatusReturned:
			filter.Status = &status
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown loan status")
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter, nil
}

func (h *LoanHandler) invalidateDashboard(c *gin.Context) {
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
}
