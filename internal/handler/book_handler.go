package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuslib/library-api/internal/models"
	"github.com/campuslib/library-api/internal/service"
	appErrors "github.com/campuslib/library-api/pkg/errors"
	"github.com/campuslib/library-api/pkg/response"
)

type bookService interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, addedBy string, req service.CreateBookRequest) (*models.Book, error)
	Update(ctx context.Context, id string, req service.UpdateBookRequest) (*models.Book, error)
	Delete(ctx context.Context, id string) error
}

type dashboardInvalidator interface {
	Invalidate(ctx context.Context)
}

// BookHandler exposes catalog endpoints.
type BookHandler struct {
	books     bookService
	dashboard dashboardInvalidator
}

// NewBookHandler constructs BookHandler. The dashboard service may be nil.
func NewBookHandler(books bookService, dashboard dashboardInvalidator) *BookHandler {
	return &BookHandler{books: books, dashboard: dashboard}
}

// List godoc
// @Summary List books
// @Description Browse the catalog with optional search and filters
// @Tags Books
// @Produce json
// @Param q query string false "Search title, author or ISBN"
// @Param category query string false "Filter by category"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field"
// @Param order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	var filter models.BookFilter
	filter.Search = strings.TrimSpace(c.Query("q"))
	filter.Category = c.Query("category")
	if raw := c.Query("status"); raw != "" {
		status := models.BookStatus(strings.ToUpper(raw))
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown book status"))
			return
		}
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	books, pagination, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, pagination)
}

// Get godoc
// @Summary Get book detail
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Create godoc
// @Summary Add book
// @Description Add a catalog entry, every copy starts available
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body service.CreateBookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.Created(c, book)
}

// Update godoc
// @Summary Update book
// @Tags Books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body service.UpdateBookRequest true "Book payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *gin.Context) {
	var req service.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.books.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.JSON(c, http.StatusOK, book, nil)
}

// Delete godoc
// @Summary Delete book
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.books.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.invalidateDashboard(c)
	response.NoContent(c)
}

func (h *BookHandler) invalidateDashboard(c *gin.Context) {
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}
}
