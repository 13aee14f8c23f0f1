package models

import "time"

// UserRole represents the account roles known to the library.
type UserRole string

const (
	RoleStudent   UserRole = "STUDENT"
	RoleTeacher   UserRole = "TEACHER"
	RoleStaff     UserRole = "STAFF"
	RoleLibrarian UserRole = "LIBRARIAN"
)

// CanBorrow reports whether accounts with this role may hold loans.
func (r UserRole) CanBorrow() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff:
		return true
	}
	return false
}

// IsLibrarian reports whether the role manages the catalog and loans.
func (r UserRole) IsLibrarian() bool {
	return r == RoleLibrarian
}

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff, RoleLibrarian:
		return true
	}
	return false
}

// User represents an application account stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Paging bounds shared by repositories and list services.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalizePaging clamps paging values to the range repositories accept, so
// pagination metadata always matches the rows actually returned.
func NormalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}
