package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Every domain failure wraps exactly one of these so
// callers can match on the class of failure without knowing the specific
// condition.
var (
	// ErrInvalidInput is returned when an argument is malformed (bad title,
	// bad quantity, bad loan limit).
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateEntity is returned when registering a book or user whose
	// key is already taken.
	ErrDuplicateEntity = errors.New("already registered")
	// ErrNotFound is returned when a referenced book or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when a borrow finds no copies left.
	ErrUnavailable = errors.New("unavailable")
	// ErrLimitExceeded is returned when a borrow would push a user past the
	// loan limit.
	ErrLimitExceeded = errors.New("loan limit reached")
	// ErrDuplicateLoan is returned when a user tries to borrow a title they
	// already hold.
	ErrDuplicateLoan = errors.New("duplicate loan")
	// ErrInvalidOperation is returned when a request is incompatible with
	// current state (removing entities with outstanding obligations,
	// returning an unheld title).
	ErrInvalidOperation = errors.New("invalid operation")
)

// Specific conditions, each wrapping its category sentinel.
var (
	ErrInvalidTitle      = fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	ErrQuantityTooLarge  = fmt.Errorf("%w: at most %d copies per title", ErrInvalidInput, MaxCopiesPerTitle)
	ErrInvalidUserID     = fmt.Errorf("%w: user id must not be empty", ErrInvalidInput)
	ErrInvalidLoanLimit  = fmt.Errorf("%w: loan limit must be at least 1", ErrInvalidInput)
	ErrBookAlreadyExists = fmt.Errorf("book %w", ErrDuplicateEntity)
	ErrUserAlreadyExists = fmt.Errorf("user %w", ErrDuplicateEntity)
	ErrBookNotFound      = fmt.Errorf("book %w", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)
	ErrBookUnavailable   = fmt.Errorf("book %w: no copies left", ErrUnavailable)
	ErrCopiesOnLoan      = fmt.Errorf("%w: copies are on loan", ErrInvalidOperation)
	ErrUserHasLoans      = fmt.Errorf("%w: user has active loans", ErrInvalidOperation)
	ErrLoanNotHeld       = fmt.Errorf("%w: user does not hold this title", ErrInvalidOperation)
	ErrReturnExceedsMax  = fmt.Errorf("%w: return exceeds original quantity", ErrInvalidOperation)
)
