package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/store"
)

func TestCreateLoanDecrementsAvailability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "The Go Programming Language", 2)

	seedLoan(t, s, user, book, time.Now().UTC().AddDate(0, 0, 14))

	got, err := s.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AvailableCopies != 1 {
		t.Errorf("available_copies = %d, want 1", got.AvailableCopies)
	}
	if got.TotalCopies != 2 {
		t.Errorf("total_copies = %d, want 2", got.TotalCopies)
	}
}

func TestCreateLoanDuplicateActive(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Clean Architecture", 3)
	due := time.Now().UTC().AddDate(0, 0, 14)

	seedLoan(t, s, user, book, due)

	second := &domain.Loan{
		ID: "loan-dup", UserID: user.ID, BookID: book.ID,
		IssueDate: time.Now().UTC(), DueDate: due,
		Status: domain.LoanStatusIssued, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	err := s.CreateLoan(context.Background(), second)
	if !errors.Is(err, store.ErrDuplicateLoan) {
		t.Fatalf("second issue error = %v, want ErrDuplicateLoan", err)
	}

	// The failed issue must not have touched the count.
	got, _ := s.GetBook(context.Background(), book.ID)
	if got.AvailableCopies != 2 {
		t.Errorf("available_copies = %d, want 2 after rejected duplicate", got.AvailableCopies)
	}
}

func TestCreateLoanExhaustsAvailability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, s, "asha")
	u2 := seedUser(t, s, "bina")
	u3 := seedUser(t, s, "chetan")
	book := seedBook(t, s, "SICP", 2)
	due := time.Now().UTC().AddDate(0, 0, 14)

	seedLoan(t, s, u1, book, due)
	seedLoan(t, s, u2, book, due)

	got, _ := s.GetBook(ctx, book.ID)
	if got.AvailableCopies != 0 {
		t.Fatalf("available_copies = %d, want 0", got.AvailableCopies)
	}

	third := &domain.Loan{
		ID: "loan-exhausted", UserID: u3.ID, BookID: book.ID,
		IssueDate: time.Now().UTC(), DueDate: due,
		Status: domain.LoanStatusIssued, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	err := s.CreateLoan(ctx, third)
	if !errors.Is(err, store.ErrNoCopies) {
		t.Fatalf("issue with no copies error = %v, want ErrNoCopies", err)
	}

	// No loan row slipped in.
	if _, err := s.GetLoan(ctx, "loan-exhausted"); !errors.Is(err, store.ErrLoanNotFound) {
		t.Errorf("rejected issue left a loan row behind")
	}
}

func TestCreateLoanBookMissing(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, "asha")

	l := &domain.Loan{
		ID: "loan-x", UserID: user.ID, BookID: "book-missing",
		IssueDate: time.Now().UTC(), DueDate: time.Now().UTC().AddDate(0, 0, 14),
		Status: domain.LoanStatusIssued, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := s.CreateLoan(context.Background(), l); !errors.Is(err, store.ErrBookNotFound) {
		t.Fatalf("issue for missing book error = %v, want ErrBookNotFound", err)
	}
}

func TestReturnLoan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "TAOCP", 1)

	// Due 5 days ago; returning now at rate 5 owes 25.
	due := time.Now().UTC().AddDate(0, 0, -5)
	loan := seedLoan(t, s, user, book, due)

	returnedAt := time.Now().UTC()
	got, err := s.ReturnLoan(ctx, loan.ID, returnedAt, 5)
	if err != nil {
		t.Fatalf("return loan: %v", err)
	}
	if got.Status != domain.LoanStatusReturned {
		t.Errorf("status = %s, want returned", got.Status)
	}
	if got.FineAmount != 25 {
		t.Errorf("fine_amount = %v, want 25", got.FineAmount)
	}
	if got.ReturnDate == nil {
		t.Error("return_date not set")
	}

	b, _ := s.GetBook(ctx, book.ID)
	if b.AvailableCopies != 1 {
		t.Errorf("available_copies = %d, want 1 after return", b.AvailableCopies)
	}
}

func TestReturnLoanTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "The Mythical Man-Month", 1)
	loan := seedLoan(t, s, user, book, time.Now().UTC().AddDate(0, 0, -2))

	first, err := s.ReturnLoan(ctx, loan.ID, time.Now().UTC(), 5)
	if err != nil {
		t.Fatalf("first return: %v", err)
	}

	_, err = s.ReturnLoan(ctx, loan.ID, time.Now().UTC().Add(time.Hour), 5)
	if !errors.Is(err, store.ErrLoanClosed) {
		t.Fatalf("second return error = %v, want ErrLoanClosed", err)
	}

	// Second call changed nothing.
	after, _ := s.GetLoan(ctx, loan.ID)
	if after.FineAmount != first.FineAmount {
		t.Errorf("fine_amount changed on failed second return: %v -> %v", first.FineAmount, after.FineAmount)
	}
	b, _ := s.GetBook(ctx, book.ID)
	if b.AvailableCopies != 1 {
		t.Errorf("available_copies = %d, want 1 (unchanged by second return)", b.AvailableCopies)
	}
}

func TestReturnLoanNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReturnLoan(context.Background(), "loan-missing", time.Now().UTC(), 5)
	if !errors.Is(err, store.ErrLoanNotFound) {
		t.Fatalf("error = %v, want ErrLoanNotFound", err)
	}
}

func TestSweepOverdue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	late := seedBook(t, s, "Late Book", 1)
	punctual := seedBook(t, s, "On Time Book", 1)

	now := time.Now().UTC()
	lateLoan := seedLoan(t, s, user, late, now.AddDate(0, 0, -5))
	okLoan := seedLoan(t, s, user, punctual, now.AddDate(0, 0, 7))

	changed, err := s.SweepOverdue(ctx, now, 5)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}

	got, _ := s.GetLoan(ctx, lateLoan.ID)
	if got.Status != domain.LoanStatusOverdue {
		t.Errorf("late loan status = %s, want overdue", got.Status)
	}
	if got.FineAmount != 25 {
		t.Errorf("late loan fine = %v, want 25", got.FineAmount)
	}

	ok, _ := s.GetLoan(ctx, okLoan.ID)
	if ok.Status != domain.LoanStatusIssued {
		t.Errorf("punctual loan status = %s, want issued", ok.Status)
	}

	// Idempotent: immediate re-run changes nothing.
	changed, err = s.SweepOverdue(ctx, now, 5)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if changed != 0 {
		t.Errorf("second sweep changed = %d, want 0", changed)
	}
}

func TestSweepActiveFinesAdvances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, s, "asha")
	book := seedBook(t, s, "Overdue Book", 1)

	now := time.Now().UTC()
	loan := seedLoan(t, s, user, book, now.AddDate(0, 0, -3))

	if _, err := s.SweepActiveFines(ctx, now, 5); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	got, _ := s.GetLoan(ctx, loan.ID)
	if got.FineAmount != 15 {
		t.Fatalf("fine after 3 days = %v, want 15", got.FineAmount)
	}

	// Two more days pass; the fine keeps up.
	later := now.AddDate(0, 0, 2)
	changed, err := s.SweepActiveFines(ctx, later, 5)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if changed != 1 {
		t.Errorf("second sweep changed = %d, want 1", changed)
	}
	got, _ = s.GetLoan(ctx, loan.ID)
	if got.FineAmount != 25 {
		t.Errorf("fine after 5 days = %v, want 25", got.FineAmount)
	}
	if got.Status != domain.LoanStatusOverdue {
		t.Errorf("status = %s, want overdue", got.Status)
	}

	// Same instant again: nothing to do.
	changed, _ = s.SweepActiveFines(ctx, later, 5)
	if changed != 0 {
		t.Errorf("third sweep changed = %d, want 0", changed)
	}
}

func TestListLoansFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, s, "asha")
	u2 := seedUser(t, s, "bina")
	b1 := seedBook(t, s, "Book One", 2)
	b2 := seedBook(t, s, "Book Two", 2)
	due := time.Now().UTC().AddDate(0, 0, 14)

	l1 := seedLoan(t, s, u1, b1, due)
	seedLoan(t, s, u1, b2, due)
	seedLoan(t, s, u2, b1, due)

	if _, err := s.ReturnLoan(ctx, l1.ID, time.Now().UTC(), 5); err != nil {
		t.Fatalf("return: %v", err)
	}

	all, total, err := s.ListLoans(ctx, LoanFilter{}, nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("list all = %d items (total %d), want 3", len(all), total)
	}

	active, total, err := s.ListLoans(ctx, LoanFilter{UserID: u1.ID, ActiveOnly: true}, nil)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if total != 1 || len(active) != 1 {
		t.Fatalf("active loans for u1 = %d (total %d), want 1", len(active), total)
	}
	if active[0].BookID != b2.ID {
		t.Errorf("active loan book = %s, want %s", active[0].BookID, b2.ID)
	}
	if active[0].BookTitle != "Book Two" {
		t.Errorf("denormalized title = %q, want Book Two", active[0].BookTitle)
	}
}

func TestSumActiveLoanFines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u1 := seedUser(t, s, "asha")
	u2 := seedUser(t, s, "bina")
	b1 := seedBook(t, s, "Book One", 2)
	b2 := seedBook(t, s, "Book Two", 2)

	now := time.Now().UTC()
	seedLoan(t, s, u1, b1, now.AddDate(0, 0, -4)) // 20 at rate 5
	seedLoan(t, s, u2, b2, now.AddDate(0, 0, -2)) // 10 at rate 5

	if _, err := s.SweepActiveFines(ctx, now, 5); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	all, err := s.SumActiveLoanFines(ctx, "")
	if err != nil {
		t.Fatalf("sum all: %v", err)
	}
	if all != 30 {
		t.Errorf("total fines = %v, want 30", all)
	}

	mine, err := s.SumActiveLoanFines(ctx, u1.ID)
	if err != nil {
		t.Fatalf("sum user: %v", err)
	}
	if mine != 20 {
		t.Errorf("u1 fines = %v, want 20", mine)
	}
}
