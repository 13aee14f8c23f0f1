package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type mockBookRepo struct {
	books      map[string]models.Book
	isbns      map[string]string
	created    *models.Book
	updated    *models.Book
	deleted    []string
	listFilter models.BookFilter
}

func (m *mockBookRepo) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	m.listFilter = filter
	var list []models.Book
	for _, b := range m.books {
		list = append(list, b)
	}
	return list, len(list), nil
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*models.Book, error) {
	if b, ok := m.books[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) ExistsByISBN(ctx context.Context, isbn, excludeID string) (bool, error) {
	owner, ok := m.isbns[isbn]
	if !ok {
		return false, nil
	}
	return owner != excludeID, nil
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = "new-book"
	}
	if m.books == nil {
		m.books = make(map[string]models.Book)
	}
	if m.isbns == nil {
		m.isbns = make(map[string]string)
	}
	m.books[book.ID] = *book
	m.isbns[book.ISBN] = book.ID
	m.created = book
	return nil
}

func (m *mockBookRepo) Update(ctx context.Context, book *models.Book) error {
	m.books[book.ID] = *book
	m.updated = book
	return nil
}

func (m *mockBookRepo) Delete(ctx context.Context, id string) error {
	delete(m.books, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newBookService(repo *mockBookRepo) *BookService {
	return NewBookService(repo, validator.New(), zap.NewNop())
}

func TestBookServiceListClampsOversizedPage(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{
		"b1": {ID: "b1", Title: "Clean Architecture"},
	}}
	svc := newBookService(repo)

	_, pagination, err := svc.List(context.Background(), models.BookFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPageSize, pagination.PageSize)
	assert.Equal(t, models.DefaultPageSize, repo.listFilter.PageSize)
	assert.Equal(t, 1, pagination.Page)
}

func TestBookServiceCreateStartsAvailable(t *testing.T) {
	repo := &mockBookRepo{}
	svc := newBookService(repo)

	book, err := svc.Create(context.Background(), "lib-1", CreateBookRequest{
		Title:    "The Go Programming Language",
		Author:   "Donovan and Kernighan",
		ISBN:     "978-0134190440",
		Quantity: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, book.Quantity)
	assert.Equal(t, 3, book.AvailableQuantity)
	assert.Equal(t, models.BookStatusAvailable, book.Status)
	require.NotNil(t, book.AddedBy)
	assert.Equal(t, "lib-1", *book.AddedBy)
}

func TestBookServiceCreateDuplicateISBN(t *testing.T) {
	repo := &mockBookRepo{isbns: map[string]string{"978-0134190440": "b1"}}
	svc := newBookService(repo)

	_, err := svc.Create(context.Background(), "lib-1", CreateBookRequest{
		Title:    "The Go Programming Language",
		Author:   "Donovan and Kernighan",
		ISBN:     "978-0134190440",
		Quantity: 1,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestBookServiceCreateRequiresQuantity(t *testing.T) {
	svc := newBookService(&mockBookRepo{})

	_, err := svc.Create(context.Background(), "lib-1", CreateBookRequest{
		Title:  "Untitled",
		Author: "Anon",
		ISBN:   "123",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBookServiceUpdate(t *testing.T) {
	repo := &mockBookRepo{
		books: map[string]models.Book{"b1": {ID: "b1", Title: "Old", Author: "A", ISBN: "123", Quantity: 2, AvailableQuantity: 2, Status: models.BookStatusAvailable}},
		isbns: map[string]string{"123": "b1"},
	}
	svc := newBookService(repo)

	book, err := svc.Update(context.Background(), "b1", UpdateBookRequest{
		Title:             "New Title",
		Author:            "A",
		ISBN:              "123",
		Quantity:          5,
		AvailableQuantity: 4,
		Status:            models.BookStatusAvailable,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Title", book.Title)
	assert.Equal(t, 5, book.Quantity)
	assert.Equal(t, 4, book.AvailableQuantity)
}

func TestBookServiceUpdateRejectsExcessAvailable(t *testing.T) {
	repo := &mockBookRepo{
		books: map[string]models.Book{"b1": {ID: "b1", Title: "Old", Author: "A", ISBN: "123", Quantity: 2}},
	}
	svc := newBookService(repo)

	_, err := svc.Update(context.Background(), "b1", UpdateBookRequest{
		Title:             "Old",
		Author:            "A",
		ISBN:              "123",
		Quantity:          2,
		AvailableQuantity: 3,
		Status:            models.BookStatusAvailable,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBookServiceUpdateRejectsUnknownStatus(t *testing.T) {
	repo := &mockBookRepo{
		books: map[string]models.Book{"b1": {ID: "b1", Title: "Old", Author: "A", ISBN: "123", Quantity: 2}},
	}
	svc := newBookService(repo)

	_, err := svc.Update(context.Background(), "b1", UpdateBookRequest{
		Title:    "Old",
		Author:   "A",
		ISBN:     "123",
		Quantity: 2,
		Status:   "MISSING",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBookServiceGetNotFound(t *testing.T) {
	svc := newBookService(&mockBookRepo{})

	_, err := svc.Get(context.Background(), "absent")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBookServiceDelete(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{"b1": {ID: "b1"}}}
	svc := newBookService(repo)

	require.NoError(t, svc.Delete(context.Background(), "b1"))
	assert.Contains(t, repo.deleted, "b1")

	err := svc.Delete(context.Background(), "b1")
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
