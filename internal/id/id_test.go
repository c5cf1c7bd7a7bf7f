package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	got, err := Generate(PrefixBook)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasPrefix(got, "book-") {
		t.Errorf("Generate() = %q, want book- prefix", got)
	}
	// prefix + dash + 21-character nanoid
	if len(got) != len(PrefixBook)+1+21 {
		t.Errorf("Generate() length = %d, want %d", len(got), len(PrefixBook)+1+21)
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		got := MustGenerate(PrefixLoan)
		if seen[got] {
			t.Fatalf("duplicate ID generated: %s", got)
		}
		seen[got] = true
	}
}

func TestHasPrefix(t *testing.T) {
	if !HasPrefix("user-abc123", PrefixUser) {
		t.Error("HasPrefix(user-abc123, user) = false, want true")
	}
	if HasPrefix("username", PrefixUser) {
		t.Error("HasPrefix(username, user) = true, want false")
	}
	if HasPrefix("book-abc123", PrefixUser) {
		t.Error("HasPrefix(book-abc123, user) = true, want false")
	}
}
