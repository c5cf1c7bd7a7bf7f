package validation

import (
	"errors"
	"testing"

	domainerrors "github.com/pustakapp/pustak-server/internal/errors"
)

type createBookInput struct {
	Title       string `json:"title" validate:"required,min=1,max=500"`
	Author      string `json:"author" validate:"required"`
	ISBN        string `json:"isbn,omitempty" validate:"omitempty,min=10,max=17"`
	TotalCopies int    `json:"total_copies" validate:"gte=0"`
}

func TestValidatePasses(t *testing.T) {
	v := New()
	err := v.Validate(createBookInput{
		Title:       "The Go Programming Language",
		Author:      "Donovan & Kernighan",
		ISBN:        "9780134190440",
		TotalCopies: 3,
	})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Validate(createBookInput{Author: "someone", TotalCopies: -1})
	if err == nil {
		t.Fatal("Validate() = nil, want validation error")
	}

	var derr *domainerrors.Error
	if !errors.As(err, &derr) {
		t.Fatalf("Validate() error type = %T, want *domainerrors.Error", err)
	}
	if derr.Code != domainerrors.CodeValidation {
		t.Errorf("error code = %s, want %s", derr.Code, domainerrors.CodeValidation)
	}

	details, ok := derr.Details.(map[string]string)
	if !ok {
		t.Fatalf("details type = %T, want map[string]string", derr.Details)
	}
	if _, ok := details["title"]; !ok {
		t.Errorf("details missing json-named field %q: %v", "title", details)
	}
	if _, ok := details["total_copies"]; !ok {
		t.Errorf("details missing json-named field %q: %v", "total_copies", details)
	}
}

func TestValidateOmitemptySkipsEmpty(t *testing.T) {
	v := New()
	err := v.Validate(createBookInput{Title: "t", Author: "a"})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil for empty omitempty field", err)
	}
}
