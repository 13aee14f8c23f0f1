package models

import "time"

// BookStatus represents the catalog status of a title.
type BookStatus string

const (
	BookStatusAvailable   BookStatus = "AVAILABLE"
	BookStatusBorrowed    BookStatus = "BORROWED"
	BookStatusMaintenance BookStatus = "MAINTENANCE"
	BookStatusLost        BookStatus = "LOST"
)

// Valid reports whether the status is one of the known values.
func (s BookStatus) Valid() bool {
	switch s {
	case BookStatusAvailable, BookStatusBorrowed, BookStatusMaintenance, BookStatusLost:
		return true
	}
	return false
}

// Book represents a catalog entry with copy-count tracking.
// AvailableQuantity is authoritative: it is mutated only through the loan
// transitions or a direct librarian edit, never re-derived from loan counts.
type Book struct {
	ID                string     `db:"id" json:"id"`
	Title             string     `db:"title" json:"title"`
	Author            string     `db:"author" json:"author"`
	ISBN              string     `db:"isbn" json:"isbn"`
	Publisher         *string    `db:"publisher" json:"publisher,omitempty"`
	PublicationYear   *int       `db:"publication_year" json:"publication_year,omitempty"`
	Category          *string    `db:"category" json:"category,omitempty"`
	Description       *string    `db:"description" json:"description,omitempty"`
	CoverURL          *string    `db:"cover_url" json:"cover_url,omitempty"`
	Quantity          int        `db:"quantity" json:"quantity"`
	AvailableQuantity int        `db:"available_quantity" json:"available_quantity"`
	Status            BookStatus `db:"status" json:"status"`
	AddedBy           *string    `db:"added_by" json:"added_by,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAvailable reports whether a copy can be borrowed right now.
// MAINTENANCE and LOST override the count: both conditions must hold.
func (b *Book) IsAvailable() bool {
	return b.AvailableQuantity > 0 && b.Status == BookStatusAvailable
}

// Borrow consumes one available copy. It returns false and leaves the book
// untouched when no copy can be borrowed. Taking the last copy flips the
// status to BORROWED.
func (b *Book) Borrow() bool {
	if !b.IsAvailable() {
		return false
	}
	b.AvailableQuantity--
	if b.AvailableQuantity == 0 {
		b.Status = BookStatusBorrowed
	}
	return true
}

// Return restores one copy and flips the status back to AVAILABLE.
// There is no upper bound against Quantity here; the persistence layer caps
// the increment and rejects duplicate returns at the loan row.
func (b *Book) Return() {
	b.AvailableQuantity++
	if b.AvailableQuantity > 0 {
		b.Status = BookStatusAvailable
	}
}

// BookFilter encapsulates allowed search parameters for listing books.
type BookFilter struct {
	Search    string
	Category  string
	Status    *BookStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
