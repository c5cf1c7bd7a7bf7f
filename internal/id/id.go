// Package id generates prefixed unique identifiers for all stored entities.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Well-known entity prefixes. Every row in the store carries one of these
// so an identifier is self-describing in logs and API payloads.
const (
	PrefixUser         = "user"
	PrefixBook         = "book"
	PrefixCategory     = "cat"
	PrefixLoan         = "loan"
	PrefixReservation  = "rsv"
	PrefixFine         = "fine"
	PrefixNotification = "ntf"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "book-V1StGXR8_Z5jdHi6B-myT").
//
// NanoIDs are URL-friendly and compact (21 characters vs UUID's 36),
// which keeps loan and reservation references short enough to read aloud
// at a circulation desk.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
// Generation only fails when the system entropy source is broken, in
// which case the process cannot do anything useful anyway.
func MustGenerate(prefix string) string {
	nid, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return nid
}

// HasPrefix reports whether the ID carries the given entity prefix.
func HasPrefix(identifier, prefix string) bool {
	return strings.HasPrefix(identifier, prefix+"-")
}
