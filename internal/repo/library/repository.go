package library

import (
	"context"
	"time"

	"github.com/rbook/librarian/internal/domain"
)

// Repository defines the storage contract for the catalog, the patrons and
// the per-user loan history. It is pure storage: identity lookup and
// lifetime only, no lending policy.
//
// Lookups report absence through the boolean return, not through an error;
// translating absence into domain errors is the caller's job.
type Repository interface {
	// AddBook stores a new book keyed by its title.
	// Returns domain.ErrBookAlreadyExists if the title is already taken.
	AddBook(ctx context.Context, book *domain.Book) error

	// GetBook retrieves a book by exact, case-sensitive title.
	GetBook(ctx context.Context, title string) (*domain.Book, bool, error)

	// ListBooks returns all books in catalog (insertion) order.
	ListBooks(ctx context.Context) ([]*domain.Book, error)

	// UpdateBook persists changes to an already stored book.
	// Returns domain.ErrBookNotFound if the title is unknown.
	UpdateBook(ctx context.Context, book *domain.Book) error

	// RemoveBook deletes the book with the given title.
	// Returns domain.ErrBookNotFound if the title is unknown.
	RemoveBook(ctx context.Context, title string) error

	// AddUser stores a new user keyed by their ID.
	// Returns domain.ErrUserAlreadyExists if the ID is already taken.
	AddUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*domain.User, bool, error)

	// ListUsers returns all users in registration order.
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// UpdateUser persists changes to an already stored user.
	// Returns domain.ErrUserNotFound if the ID is unknown.
	UpdateUser(ctx context.Context, user *domain.User) error

	// RemoveUser deletes the user with the given ID.
	// Returns domain.ErrUserNotFound if the ID is unknown.
	RemoveUser(ctx context.Context, id string) error

	// RecordLoan appends an open loan record to the user's history.
	RecordLoan(ctx context.Context, userID, title string, at time.Time) error

	// RecordReturn closes the most recent open record matching the title,
	// scanning the user's history in reverse chronological order. Closing
	// nothing is not an error; live loan state is validated elsewhere.
	RecordReturn(ctx context.Context, userID, title string, at time.Time) error

	// GetLoanHistory returns the user's full ordered history, or an empty
	// slice if the user has never borrowed anything.
	GetLoanHistory(ctx context.Context, userID string) ([]domain.LoanRecord, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)
