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
	appErrors "github.com/campuslib/library-api/pkg/errors"
)

const loanColumns = `l.id, l.book_id, l.borrower_id, l.librarian_id, l.borrow_date, l.due_date, l.return_date, l.status, l.notes, l.created_at, l.updated_at`

const loanDetailColumns = loanColumns + `,
        b.title AS book_title, b.isbn AS book_isbn,
        u.full_name AS borrower_name, u.email AS borrower_email`

// LoanRepository manages persistence for loans and drives the availability
// mutations on books. Borrow and return each run in a single transaction so
// the loan row and the book counters cannot diverge.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository constructs a LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// CreateWithBorrow inserts the loan and consumes one available copy of the
// book atomically. The decrement is a conditional update: when no copy is
// available (or the book is in MAINTENANCE/LOST) zero rows match and
// ErrBookUnavailable is returned without any persisted change. A pending
// non-terminal loan for the same (book, borrower) pair yields
// ErrDuplicateLoan.
func (r *LoanRepository) CreateWithBorrow(ctx context.Context, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin borrow: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var pending int
	const dupQuery = `SELECT COUNT(*) FROM loans WHERE book_id = $1 AND borrower_id = $2 AND status <> $3`
	if err := tx.GetContext(ctx, &pending, dupQuery, loan.BookID, loan.BorrowerID, models.LoanStatusReturned); err != nil {
		return fmt.Errorf("check pending loan: %w", err)
	}
	if pending > 0 {
		return appErrors.ErrDuplicateLoan
	}

	const borrowQuery = `UPDATE books
        SET available_quantity = available_quantity - 1,
            status = CASE WHEN available_quantity - 1 = 0 THEN 'BORROWED' ELSE status END,
            updated_at = $2
        WHERE id = $1 AND available_quantity > 0 AND status = 'AVAILABLE'`
	res, err := tx.ExecContext(ctx, borrowQuery, loan.BookID, now)
	if err != nil {
		return fmt.Errorf("decrement availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement availability: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrBookUnavailable
	}

	const insertQuery = `INSERT INTO loans (id, book_id, borrower_id, librarian_id, borrow_date, due_date, return_date, status, notes, created_at, updated_at)
        VALUES (:id, :book_id, :borrower_id, :librarian_id, :borrow_date, :due_date, :return_date, :status, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit borrow: %w", err)
	}
	return nil
}

// Return transitions the loan to RETURNED and restores one copy to the book
// atomically. The loan update is conditional on the loan not already being
// terminal, so a duplicate return is rejected with ErrAlreadyReturned and
// leaves the book untouched. The increment is capped at the book quantity.
func (r *LoanRepository) Return(ctx context.Context, loanID string, returnedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin return: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var bookID string
	const returnQuery = `UPDATE loans
        SET status = $2, return_date = $3, updated_at = $3
        WHERE id = $1 AND status <> $2
        RETURNING book_id`
	if err := tx.GetContext(ctx, &bookID, returnQuery, loanID, models.LoanStatusReturned, returnedAt); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.ErrAlreadyReturned
		}
		return fmt.Errorf("mark loan returned: %w", err)
	}

	const restoreQuery = `UPDATE books
        SET available_quantity = LEAST(available_quantity + 1, quantity),
            status = CASE WHEN status = 'BORROWED' THEN 'AVAILABLE' ELSE status END,
            updated_at = $2
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, restoreQuery, bookID, returnedAt); err != nil {
		return fmt.Errorf("restore availability: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit return: %w", err)
	}
	return nil
}

// FindByID fetches a loan with book and borrower context.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*models.LoanDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.borrower_id
        WHERE l.id = $1`, loanDetailColumns)
	var detail models.LoanDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	return &detail, nil
}

func loanFilterClause(filter models.LoanFilter) (string, []interface{}) {
	base := `FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.borrower_id
        WHERE 1=1`
	var args []interface{}

	if filter.BorrowerID != "" {
		base += fmt.Sprintf(" AND l.borrower_id = $%d", len(args)+1)
		args = append(args, filter.BorrowerID)
	}
	if filter.BookID != "" {
		base += fmt.Sprintf(" AND l.book_id = $%d", len(args)+1)
		args = append(args, filter.BookID)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND l.status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}
	return base, args
}

// List returns loans matching the provided filters, most recent first.
func (r *LoanRepository) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error) {
	base, args := loanFilterClause(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > models.MaxPageSize {
		size = models.DefaultPageSize
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY l.borrow_date DESC LIMIT %d OFFSET %d", loanDetailColumns, base, size, offset)

	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return loans, total, nil
}

// ListAll returns every loan matching the filter, most recent first. Reports
// render the whole register, so no paging is applied.
func (r *LoanRepository) ListAll(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, error) {
	base, args := loanFilterClause(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY l.borrow_date DESC", loanDetailColumns, base)

	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

// ListByBorrower returns the borrower's loans split into pending and history.
func (r *LoanRepository) ListByBorrower(ctx context.Context, borrowerID string) (active []models.LoanDetail, past []models.LoanDetail, err error) {
	query := fmt.Sprintf(`SELECT %s
        FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.borrower_id
        WHERE l.borrower_id = $1
        ORDER BY l.borrow_date DESC`, loanDetailColumns)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, borrowerID); err != nil {
		return nil, nil, fmt.Errorf("list borrower loans: %w", err)
	}
	for _, loan := range loans {
		if loan.Status == models.LoanStatusReturned {
			past = append(past, loan)
		} else {
			active = append(active, loan)
		}
	}
	return active, past, nil
}

// CountByStatus returns the number of loans per status.
func (r *LoanRepository) CountByStatus(ctx context.Context) (map[models.LoanStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS count FROM loans GROUP BY status`
	rows := []struct {
		Status models.LoanStatus `db:"status"`
		Count  int               `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count loans by status: %w", err)
	}
	counts := make(map[models.LoanStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// MarkOverdue flips every past-due ACTIVE loan to OVERDUE and reports how
// many rows were reconciled.
func (r *LoanRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE loans SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $2`
	res, err := r.db.ExecContext(ctx, query, models.LoanStatusOverdue, now, models.LoanStatusActive)
	if err != nil {
		return 0, fmt.Errorf("mark overdue loans: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue loans: %w", err)
	}
	return affected, nil
}

// statusList renders loan statuses for IN clauses.
func statusList(statuses ...models.LoanStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}

// ListNonTerminal returns non-terminal loans, most recent first, capped at limit.
func (r *LoanRepository) ListNonTerminal(ctx context.Context, limit int) ([]models.LoanDetail, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT %s
        FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.borrower_id
        WHERE l.status IN (%s)
        ORDER BY l.borrow_date DESC LIMIT %d`, loanDetailColumns, statusList(models.LoanStatusActive, models.LoanStatusOverdue), limit)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, fmt.Errorf("list non-terminal loans: %w", err)
	}
	return loans, nil
}

// ListOverdue returns every non-terminal loan past its due date at the given
// instant. The due date is authoritative here, not the stored status column,
// so loans the sweep has not yet reconciled are still included.
func (r *LoanRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.LoanDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.borrower_id
        WHERE l.status <> $1 AND l.due_date < $2
        ORDER BY l.due_date ASC`, loanDetailColumns)
	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, models.LoanStatusReturned, now); err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return loans, nil
}
