// Package main provides a tool to seed the database with sample
// catalog and membership data for local development.
//
// Usage:
//
//	DATA_PATH=~/Pustak go run ./cmd/seed
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pustakapp/pustak-server/internal/config"
	"github.com/pustakapp/pustak-server/internal/service"
	"github.com/pustakapp/pustak-server/internal/store/sqlite"
)

var librarianEmail = flag.String("librarian-email", "librarian@example.com", "Email for the seeded librarian account")
var librarianPassword = flag.String("librarian-password", "changeme-please", "Password for the seeded librarian account")

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		dataPath = filepath.Join(home, "Pustak")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataPath, "pustak.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	st, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	cfg := config.CirculationConfig{FineRate: 5, LoanDays: 14, ReservationHoldDays: 3}
	membership := service.NewMembershipService(st, cfg, logger)
	catalog := service.NewCatalogService(st, nil, logger)

	ctx := context.Background()

	librarian, err := membership.RegisterUser(ctx, service.RegisterUserRequest{
		Name:     "Head Librarian",
		Email:    *librarianEmail,
		Password: *librarianPassword,
		Role:     "librarian",
	})
	if err != nil {
		log.Printf("Librarian not created (may already exist): %v", err)
	} else {
		fmt.Printf("Created librarian %s (%s)\n", librarian.Email, librarian.ID)
	}

	members := []struct{ name, email string }{
		{"Asha Rao", "asha@example.com"},
		{"Ravi Kumar", "ravi@example.com"},
		{"Meera Iyer", "meera@example.com"},
	}
	for _, m := range members {
		user, err := membership.RegisterUser(ctx, service.RegisterUserRequest{
			Name:     m.name,
			Email:    m.email,
			Password: "reading-is-fun",
		})
		if err != nil {
			log.Printf("Member %s not created: %v", m.email, err)
			continue
		}
		fmt.Printf("Created member %s (%s)\n", user.Email, user.ID)
	}

	categoryIDs := make(map[string]string)
	for _, c := range []struct{ name, description string }{
		{"Fiction", "Novels and short stories"},
		{"Science", "Popular science and reference"},
		{"History", "Historical accounts and biographies"},
		{"Technology", "Programming and engineering"},
	} {
		category, err := catalog.CreateCategory(ctx, service.CreateCategoryRequest{
			Name:        c.name,
			Description: c.description,
		})
		if err != nil {
			log.Printf("Category %s not created: %v", c.name, err)
			continue
		}
		categoryIDs[c.name] = category.ID
		fmt.Printf("Created category %s (%s)\n", category.Name, category.ID)
	}

	books := []struct {
		title, author, publisher, isbn, category string
		copies                                   int
	}{
		{"The Go Programming Language", "Alan A. A. Donovan", "Addison-Wesley", "9780134190440", "Technology", 3},
		{"Designing Data-Intensive Applications", "Martin Kleppmann", "O'Reilly", "9781449373320", "Technology", 2},
		{"Dune", "Frank Herbert", "Ace", "9780441172719", "Fiction", 4},
		{"A Brief History of Time", "Stephen Hawking", "Bantam", "9780553380163", "Science", 2},
		{"The Guns of August", "Barbara W. Tuchman", "Presidio Press", "9780345476098", "History", 1},
		{"Hyperion", "Dan Simmons", "Spectra", "9780553283686", "Fiction", 2},
	}
	for _, b := range books {
		book, err := catalog.AddBook(ctx, service.AddBookRequest{
			Title:       b.title,
			Author:      b.author,
			Publisher:   b.publisher,
			ISBN:        b.isbn,
			CategoryID:  categoryIDs[b.category],
			TotalCopies: b.copies,
		})
		if err != nil {
			log.Printf("Book %q not created: %v", b.title, err)
			continue
		}
		fmt.Printf("Created book %q (%s)\n", book.Title, book.ID)
	}

	fmt.Println("Seeding complete")
}
