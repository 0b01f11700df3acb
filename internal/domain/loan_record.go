package domain

import "time"

// LoanRecord is one entry in a user's append-only loan history. A borrow
// appends an open record; the matching return fills in ReturnedAt. History
// is an audit log independent of live loan state and is never deleted.
type LoanRecord struct {
	ID         string     // Record identifier (UUID)
	UserID     string     // Borrowing user
	Title      string     // Borrowed title
	BorrowedAt time.Time  // When the copy was lent out
	ReturnedAt *time.Time // When it came back, nil while the loan is open
}

// Open reports whether the record has not been closed by a return yet.
func (r LoanRecord) Open() bool {
	return r.ReturnedAt == nil
}
