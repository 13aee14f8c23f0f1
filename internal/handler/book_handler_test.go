package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslib/library-api/internal/middleware"
	"github.com/campuslib/library-api/internal/models"
	"github.com/campuslib/library-api/internal/service"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type fakeBookSrv struct {
	books      []models.Book
	book       *models.Book
	err        error
	lastFilter models.BookFilter
	created    *service.CreateBookRequest
	addedBy    string
	deleted    []string
}

func (f *fakeBookSrv) List(_ context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.books, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.books)}, nil
}

func (f *fakeBookSrv) Get(_ context.Context, id string) (*models.Book, error) {
	return f.book, f.err
}

func (f *fakeBookSrv) Create(_ context.Context, addedBy string, req service.CreateBookRequest) (*models.Book, error) {
	f.addedBy = addedBy
	f.created = &req
	return f.book, f.err
}

func (f *fakeBookSrv) Update(_ context.Context, id string, req service.UpdateBookRequest) (*models.Book, error) {
	return f.book, f.err
}

func (f *fakeBookSrv) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func TestBookHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeBookSrv{}
	handler := NewBookHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/books?q=golang&status=available&page=2&limit=5", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "golang", srv.lastFilter.Search)
	require.NotNil(t, srv.lastFilter.Status)
	assert.Equal(t, models.BookStatusAvailable, *srv.lastFilter.Status)
	assert.Equal(t, 2, srv.lastFilter.Page)
}

func TestBookHandlerListRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookHandler(&fakeBookSrv{}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/books?status=shredded", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookHandlerCreatePassesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeBookSrv{book: &models.Book{ID: "b1", Title: "Go in Action"}}
	handler := NewBookHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := strings.NewReader(`{"title":"Go in Action","author":"Kennedy","isbn":"978-1617291784","quantity":2}`)
	c.Request = httptest.NewRequest(http.MethodPost, "/books", body)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "lib-1", Role: models.RoleLibrarian})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "lib-1", srv.addedBy)
	require.NotNil(t, srv.created)
	assert.Equal(t, 2, srv.created.Quantity)
}

func TestBookHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewBookHandler(&fakeBookSrv{err: appErrors.ErrNotFound}, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/books/absent", nil)
	c.Params = gin.Params{{Key: "id", Value: "absent"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeBookSrv{}
	handler := NewBookHandler(srv, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/books/b1", nil)
	c.Params = gin.Params{{Key: "id", Value: "b1"}}

	handler.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, srv.deleted, "b1")
}
