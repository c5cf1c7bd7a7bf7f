package domain

import "time"

// Role represents the user's permission level in the system.
type Role string

const (
	// RoleLibrarian grants full administrative access to the catalog and all circulation records.
	RoleLibrarian Role = "librarian"
	// RoleMember grants standard borrowing access.
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleLibrarian || r == RoleMember
}

// User represents a registered library member or staff account.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Stored hashed, never serialized
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsLibrarian returns true if the user has administrative privileges.
func (u *User) IsLibrarian() bool {
	return u.Role == RoleLibrarian
}

// CanBorrow returns true if the account may be party to a new loan or
// reservation. Deactivated accounts keep their history but cannot
// start new transactions.
func (u *User) CanBorrow() bool {
	return u.Active
}
