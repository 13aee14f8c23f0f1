package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslib/library-api/internal/models"
)

const bookColumns = `id, title, author, isbn, publisher, publication_year, category, description, cover_url, quantity, available_quantity, status, added_by, created_at, updated_at`

// BookRepository manages persistence for catalog entries.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns books matching the provided filters.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	base := "FROM books WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(title) LIKE $%d OR LOWER(author) LIKE $%d OR LOWER(isbn) LIKE $%d OR LOWER(COALESCE(category, '')) LIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Category != "" {
		base += fmt.Sprintf(" AND LOWER(COALESCE(category, '')) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Category)+"%")
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"title":      true,
		"author":     true,
		"created_at": true,
	}
	if sortBy == "" || !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > models.MaxPageSize {
		size = models.DefaultPageSize
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", bookColumns, base, sortBy, order, size, offset)

	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// FindByID fetches a book by ID.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*models.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1 LIMIT 1", bookColumns)
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return &book, nil
}

// ExistsByISBN checks if a book with the given ISBN exists optionally excluding an ID.
func (r *BookRepository) ExistsByISBN(ctx context.Context, isbn string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM books WHERE isbn = $1"
	args := []interface{}{isbn}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check isbn: %w", err)
	}
	return true, nil
}

// Create inserts a new book record.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	const query = `INSERT INTO books (id, title, author, isbn, publisher, publication_year, category, description, cover_url, quantity, available_quantity, status, added_by, created_at, updated_at)
        VALUES (:id, :title, :author, :isbn, :publisher, :publication_year, :category, :description, :cover_url, :quantity, :available_quantity, :status, :added_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Update modifies an existing book, including the direct librarian edit of
// quantity, availability and status.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	book.UpdatedAt = time.Now().UTC()
	const query = `UPDATE books SET title = :title, author = :author, isbn = :isbn, publisher = :publisher, publication_year = :publication_year, category = :category, description = :description, cover_url = :cover_url, quantity = :quantity, available_quantity = :available_quantity, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// Delete removes a book; loans referencing it cascade at the schema level.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM books WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// CountByStatus returns the number of books per catalog status.
func (r *BookRepository) CountByStatus(ctx context.Context) (map[models.BookStatus]int, int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM books GROUP BY status`
	rows := []struct {
		Status models.BookStatus `db:"status"`
		Count  int               `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, 0, fmt.Errorf("count books by status: %w", err)
	}
	counts := make(map[models.BookStatus]int, len(rows))
	total := 0
	for _, row := range rows {
		counts[row.Status] = row.Count
		total += row.Count
	}
	return counts, total, nil
}
