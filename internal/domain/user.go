package domain

import (
	"slices"
	"strings"
)

// User represents a registered patron and the titles they currently hold.
type User struct {
	ID    string   // Unique identifier, trimmed; "0" is a valid ID
	Name  string   // Free text, may be empty
	Loans []string // Titles currently held, insertion order, no duplicates
}

// NewUser validates the given ID and constructs a User with no loans.
func NewUser(id, name string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidUserID
	}

	return &User{
		ID:   id,
		Name: name,
	}, nil
}

// Holds reports whether the user currently has the given title on loan.
func (u *User) Holds(title string) bool {
	return slices.Contains(u.Loans, title)
}
