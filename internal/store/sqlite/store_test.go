package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pustakapp/pustak-server/internal/domain"
	"github.com/pustakapp/pustak-server/internal/id"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, name string) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID:           id.MustGenerate(id.PrefixUser),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         domain.RoleMember,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func seedBook(t *testing.T, s *Store, title string, copies int) *domain.Book {
	t.Helper()
	now := time.Now().UTC()
	b := &domain.Book{
		ID:              id.MustGenerate(id.PrefixBook),
		Title:           title,
		Author:          "Author of " + title,
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("seed book %s: %v", title, err)
	}
	return b
}

func seedLoan(t *testing.T, s *Store, user *domain.User, book *domain.Book, due time.Time) *domain.Loan {
	t.Helper()
	now := time.Now().UTC()
	l := &domain.Loan{
		ID:        id.MustGenerate(id.PrefixLoan),
		UserID:    user.ID,
		BookID:    book.ID,
		IssueDate: now,
		DueDate:   due,
		Status:    domain.LoanStatusIssued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateLoan(context.Background(), l); err != nil {
		t.Fatalf("seed loan: %v", err)
	}
	return l
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	tables := []string{"users", "categories", "books", "loans", "reservations", "fines", "notifications"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	defer s2.Close()
}

func TestOpen_ForeignKeysEnforcedPerConnection(t *testing.T) {
	s := newTestStore(t)

	// Pragmas travel in the DSN, so every connection the pool opens
	// must reject orphan rows, not just the first. Holding the conns
	// open forces the pool to hand out distinct connections.
	ctx := context.Background()
	var conns []*sql.Conn
	for i := 0; i < 3; i++ {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("get conn %d: %v", i, err)
		}
		conns = append(conns, conn)
	}
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	now := formatTime(time.Now())
	for i, conn := range conns {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO loans (id, user_id, book_id, issue_date, due_date, status, created_at, updated_at)
			 VALUES (?, 'user-missing', 'book-missing', ?, ?, 'issued', ?, ?)`,
			id.MustGenerate(id.PrefixLoan), now, now, now, now,
		)
		if err == nil {
			t.Fatalf("conn %d: insert with dangling references succeeded, want FOREIGN KEY error", i)
		}
	}
}
