// Package search provides full-text search over the book catalog using Bleve.
// It supports fuzzy and prefix matching on titles and authors, exact ISBN
// lookup, and category filtering.
package search

import (
	"github.com/pustakapp/pustak-server/internal/domain"
)

// BookDocument is the document structure for the Bleve index.
//
// Category name is denormalized into the document so category filtering
// and display work without a database round trip per hit.
type BookDocument struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Publisher    string `json:"publisher,omitempty"`
	ISBN         string `json:"isbn,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	Available    bool   `json:"available"`
	CreatedAt    int64  `json:"created_at"` // Unix millis
	UpdatedAt    int64  `json:"updated_at"` // Unix millis
}

// DocumentFromBook builds a search document from a catalog book.
func DocumentFromBook(b *domain.Book) *BookDocument {
	return &BookDocument{
		ID:           b.ID,
		Title:        b.Title,
		Author:       b.Author,
		Publisher:    b.Publisher,
		ISBN:         b.ISBN,
		CategoryID:   b.CategoryID,
		CategoryName: b.CategoryName,
		Available:    b.IsAvailable(),
		CreatedAt:    b.CreatedAt.UnixMilli(),
		UpdatedAt:    b.UpdatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but the
// index mapping uses lowercase names, so we convert explicitly.
func (d *BookDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"title":      d.Title,
		"author":     d.Author,
		"available":  d.Available,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}
	if d.CategoryID != "" {
		m["category_id"] = d.CategoryID
	}
	if d.CategoryName != "" {
		m["category_name"] = d.CategoryName
	}

	return m
}
