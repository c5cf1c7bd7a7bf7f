package domain

import (
	"testing"
	"time"
)

func TestOverdueDays(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	loan := &Loan{DueDate: due, Status: LoanStatusIssued}

	tests := []struct {
		name string
		ref  time.Time
		want int
	}{
		{"before due", due.Add(-48 * time.Hour), 0},
		{"exactly due", due, 0},
		{"partial day", due.Add(23 * time.Hour), 0},
		{"one day", due.Add(24 * time.Hour), 1},
		{"five days", due.AddDate(0, 0, 5), 5},
		{"five and a half days", due.Add(5*24*time.Hour + 12*time.Hour), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loan.OverdueDays(tt.ref); got != tt.want {
				t.Errorf("OverdueDays(%v) = %d, want %d", tt.ref, got, tt.want)
			}
		})
	}
}

func TestAccruedFine(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	loan := &Loan{DueDate: due, Status: LoanStatusIssued}

	if got := loan.AccruedFine(due.AddDate(0, 0, 5), 5); got != 25 {
		t.Errorf("AccruedFine(+5d, rate 5) = %v, want 25", got)
	}
	if got := loan.AccruedFine(due.AddDate(0, 0, -1), 5); got != 0 {
		t.Errorf("AccruedFine(-1d, rate 5) = %v, want 0", got)
	}
}

func TestAccruedFineMonotonic(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	loan := &Loan{DueDate: due, Status: LoanStatusOverdue}

	prev := 0.0
	for d := 0; d < 30; d++ {
		got := loan.AccruedFine(due.Add(time.Duration(d)*18*time.Hour), 5)
		if got < prev {
			t.Fatalf("fine decreased from %v to %v as time advanced", prev, got)
		}
		prev = got
	}
}

func TestFineReference(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	returned := now.AddDate(0, 0, -3)

	open := &Loan{Status: LoanStatusIssued}
	if got := open.FineReference(now); !got.Equal(now) {
		t.Errorf("open loan FineReference = %v, want now", got)
	}

	closed := &Loan{Status: LoanStatusReturned, ReturnDate: &returned}
	if got := closed.FineReference(now); !got.Equal(returned) {
		t.Errorf("closed loan FineReference = %v, want return date", got)
	}
}

func TestIsActive(t *testing.T) {
	if !(&Loan{Status: LoanStatusIssued}).IsActive() {
		t.Error("issued loan should be active")
	}
	if !(&Loan{Status: LoanStatusOverdue}).IsActive() {
		t.Error("overdue loan should be active")
	}
	if (&Loan{Status: LoanStatusReturned}).IsActive() {
		t.Error("returned loan should not be active")
	}
}
