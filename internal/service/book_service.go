package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslib/library-api/internal/models"
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

type bookRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	FindByID(ctx context.Context, id string) (*models.Book, error)
	ExistsByISBN(ctx context.Context, isbn string, excludeID string) (bool, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
}

// CreateBookRequest holds payload for adding catalog entries.
type CreateBookRequest struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	ISBN            string `json:"isbn" validate:"required"`
	Publisher       string `json:"publisher"`
	PublicationYear int    `json:"publication_year"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	CoverURL        string `json:"cover_url"`
	Quantity        int    `json:"quantity" validate:"required,min=1"`
}

// UpdateBookRequest holds payload for the direct librarian edit: it may
// adjust quantities and status independently of the loan transitions.
type UpdateBookRequest struct {
	Title             string            `json:"title" validate:"required"`
	Author            string            `json:"author" validate:"required"`
	ISBN              string            `json:"isbn" validate:"required"`
	Publisher         string            `json:"publisher"`
	PublicationYear   int               `json:"publication_year"`
	Category          string            `json:"category"`
	Description       string            `json:"description"`
	CoverURL          string            `json:"cover_url"`
	Quantity          int               `json:"quantity" validate:"required,min=1"`
	AvailableQuantity int               `json:"available_quantity" validate:"min=0"`
	Status            models.BookStatus `json:"status" validate:"required"`
}

// BookService handles catalog use-cases.
type BookService struct {
	repo      bookRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookService constructs the book service.
func NewBookService(repo bookRepository, validate *validator.Validate, logger *zap.Logger) *BookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{repo: repo, validator: validate, logger: logger}
}

// List returns books and pagination metadata.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	filter.Page, filter.PageSize = models.NormalizePaging(filter.Page, filter.PageSize)
	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return books, pagination, nil
}

// Get returns one catalog entry.
func (s *BookService) Get(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	return book, nil
}

// Create adds a catalog entry. Every copy starts available.
func (s *BookService) Create(ctx context.Context, addedBy string, req CreateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	exists, err := s.repo.ExistsByISBN(ctx, req.ISBN, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate isbn")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "isbn already in catalog")
	}

	book := &models.Book{
		Title:             req.Title,
		Author:            req.Author,
		ISBN:              req.ISBN,
		Publisher:         optionalString(req.Publisher),
		PublicationYear:   optionalInt(req.PublicationYear),
		Category:          optionalString(req.Category),
		Description:       optionalString(req.Description),
		CoverURL:          optionalString(req.CoverURL),
		Quantity:          req.Quantity,
		AvailableQuantity: req.Quantity,
		Status:            models.BookStatusAvailable,
		AddedBy:           optionalString(addedBy),
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}
	return book, nil
}

// Update modifies an existing catalog entry.
func (s *BookService) Update(ctx context.Context, id string, req UpdateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown book status")
	}
	if req.AvailableQuantity > req.Quantity {
		return nil, appErrors.Clone(appErrors.ErrValidation, "available quantity exceeds total quantity")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	exists, err := s.repo.ExistsByISBN(ctx, req.ISBN, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate isbn")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "isbn already in catalog")
	}

	book.Title = req.Title
	book.Author = req.Author
	book.ISBN = req.ISBN
	book.Publisher = optionalString(req.Publisher)
	book.PublicationYear = optionalInt(req.PublicationYear)
	book.Category = optionalString(req.Category)
	book.Description = optionalString(req.Description)
	book.CoverURL = optionalString(req.CoverURL)
	book.Quantity = req.Quantity
	book.AvailableQuantity = req.AvailableQuantity
	book.Status = req.Status

	if err := s.repo.Update(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update book")
	}
	return book, nil
}

// Delete removes a catalog entry and, through the schema cascade, its loans.
func (s *BookService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete book")
	}
	return nil
}

func optionalInt(value int) *int {
	if value == 0 {
		return nil
	}
	return &value
}
