package models

import "time"

// LoanStatus represents the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
	LoanStatusReturned LoanStatus = "RETURNED"
)

// DefaultLoanPeriod is applied when a loan is created without a due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Loan records one copy of a book held by one borrower for a bounded period.
type Loan struct {
	ID          string     `db:"id" json:"id"`
	BookID      string     `db:"book_id" json:"book_id"`
	BorrowerID  string     `db:"borrower_id" json:"borrower_id"`
	LibrarianID *string    `db:"librarian_id" json:"librarian_id,omitempty"`
	BorrowDate  time.Time  `db:"borrow_date" json:"borrow_date"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	ReturnDate  *time.Time `db:"return_date" json:"return_date,omitempty"`
	Status      LoanStatus `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the loan has reached its final state.
func (l *Loan) Terminal() bool {
	return l.Status == LoanStatusReturned
}

// IsOverdue derives the overdue condition from the wall clock for
// non-terminal loans, regardless of the stored status column.
func (l *Loan) IsOverdue(now time.Time) bool {
	return !l.Terminal() && now.After(l.DueDate)
}

// DaysOverdue returns the whole days elapsed past the due date, 0 when the
// loan is not overdue.
func (l *Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(l.DueDate).Hours() / 24)
}

// CurrentStatus returns the status a reader should display at the given
// instant. The stored column may lag until the sweep reconciles it.
func (l *Loan) CurrentStatus(now time.Time) LoanStatus {
	if l.Status == LoanStatusActive && now.After(l.DueDate) {
		return LoanStatusOverdue
	}
	return l.Status
}

// LoanDetail joins a loan with book and borrower display fields.
type LoanDetail struct {
	Loan
	BookTitle     string `db:"book_title" json:"book_title"`
	BookISBN      string `db:"book_isbn" json:"book_isbn"`
	BorrowerName  string `db:"borrower_name" json:"borrower_name"`
	BorrowerEmail string `db:"borrower_email" json:"borrower_email"`
}

// LoanFilter encapsulates allowed parameters for listing loans.
type LoanFilter struct {
	BorrowerID string
	BookID     string
	Status     *LoanStatus
	Page       int
	PageSize   int
}
