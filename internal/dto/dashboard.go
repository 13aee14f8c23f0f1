package dto

import "github.com/campuslib/library-api/internal/models"

// DashboardResponse aggregates catalog and loan counters for the
// librarian dashboard.
type DashboardResponse struct {
	Books       DashboardBooks      `json:"books"`
	Loans       DashboardLoans      `json:"loans"`
	RecentLoans []models.LoanDetail `json:"recent_loans"`
	Overdue     []OverdueLoan       `json:"overdue"`
}

// DashboardBooks summarises the catalog by availability.
type DashboardBooks struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Borrowed    int `json:"borrowed"`
	Maintenance int `json:"maintenance"`
	Lost        int `json:"lost"`
}

// DashboardLoans summarises loan lifecycle counts.
type DashboardLoans struct {
	Active   int `json:"active"`
	Overdue  int `json:"overdue"`
	Returned int `json:"returned"`
	Total    int `json:"total"`
}

// OverdueLoan is an overdue entry annotated with days elapsed past due.
type OverdueLoan struct {
	models.LoanDetail
	DaysOverdue int `json:"days_overdue"`
}
