package domain

// MonthlyCirculation is one month's issue/return counts for the
// dashboard trend chart.
type MonthlyCirculation struct {
	Month    string `json:"month"` // short month name, e.g. "Jan"
	Issued   int    `json:"issued"`
	Returned int    `json:"returned"`
}

// CategoryCount is a category's historical borrow count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// DashboardStats is the librarian dashboard snapshot. All fields are
// recomputed from the stores on every call; nothing is cached.
type DashboardStats struct {
	TotalBooks             int                  `json:"total_books"`
	TotalCopies            int                  `json:"total_copies"`
	AvailableCopies        int                  `json:"available_copies"`
	AvailabilityPercentage float64              `json:"availability_percentage"`
	TotalMembers           int                  `json:"total_members"`
	NewMembersThisWeek     int                  `json:"new_members_this_week"`
	IssuedLoans            int                  `json:"issued_loans"`
	OverdueLoans           int                  `json:"overdue_loans"`
	TotalFines             float64              `json:"total_fines"`
	Circulation            []MonthlyCirculation `json:"circulation"`
	TopCategories          []CategoryCount      `json:"top_categories"`
}

// MemberStats is the borrower-facing dashboard snapshot.
type MemberStats struct {
	ActiveLoans         int     `json:"active_loans"`
	OverdueLoans        int     `json:"overdue_loans"`
	PendingReservations int     `json:"pending_reservations"`
	TotalOwed           float64 `json:"total_owed"`
}

// AvailabilityPercentage computes available/total as a percentage
// rounded to one decimal place, 0 when there are no copies at all.
func AvailabilityPercentage(available, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(available) / float64(total) * 100
	// round to one decimal place
	return float64(int(pct*10+0.5)) / 10
}
