package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
)

// CountBooks returns the number of distinct titles in the catalog.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}

// SumCopies returns the library-wide total and available copy counts.
func (s *Store) SumCopies(ctx context.Context) (total, available int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_copies), 0), COALESCE(SUM(available_copies), 0) FROM books`).
		Scan(&total, &available)
	if err != nil {
		return 0, 0, fmt.Errorf("sum copies: %w", err)
	}
	return total, available, nil
}

// MonthlyCirculation returns issue and return counts per calendar
// month for a trailing window ending at now. Months with no activity
// appear with zero counts so the dashboard chart has a fixed width.
func (s *Store) MonthlyCirculation(ctx context.Context, now time.Time, months int) ([]domain.MonthlyCirculation, error) {
	if months <= 0 {
		return nil, nil
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	issued := make(map[string]int)
	returned := make(map[string]int)

	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', issue_date), COUNT(*) FROM loans
		WHERE issue_date >= ? GROUP BY 1`, formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("monthly issues: %w", err)
	}
	for rows.Next() {
		var month string
		var count int
		if err := rows.Scan(&month, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan monthly issues: %w", err)
		}
		issued[month] = count
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("monthly issues: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', return_date), COUNT(*) FROM loans
		WHERE return_date IS NOT NULL AND return_date >= ? GROUP BY 1`, formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("monthly returns: %w", err)
	}
	for rows.Next() {
		var month string
		var count int
		if err := rows.Scan(&month, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan monthly returns: %w", err)
		}
		returned[month] = count
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("monthly returns: %w", err)
	}

	result := make([]domain.MonthlyCirculation, 0, months)
	for i := 0; i < months; i++ {
		m := start.AddDate(0, i, 0)
		key := m.Format("2006-01")
		result = append(result, domain.MonthlyCirculation{
			Month:    m.Format("Jan"),
			Issued:   issued[key],
			Returned: returned[key],
		})
	}
	return result, nil
}

// TopCategories returns the categories most borrowed from, by
// historical loan count, limited to n entries.
func (s *Store) TopCategories(ctx context.Context, n int) ([]domain.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, COUNT(l.id) AS borrow_count
		FROM loans l
		JOIN books b ON b.id = l.book_id
		JOIN categories c ON c.id = b.category_id
		GROUP BY c.id, c.name
		ORDER BY borrow_count DESC, c.name
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	defer rows.Close()

	var counts []domain.CategoryCount
	for rows.Next() {
		var cc domain.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts = append(counts, cc)
	}
	return counts, rows.Err()
}
