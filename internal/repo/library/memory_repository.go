package library

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rbook/librarian/internal/domain"
	"github.com/rbook/librarian/internal/infra/logging"
)

// MemoryRepository implements Repository with plain maps. It is the default
// backend for a single interactive session: no persistence, no locking.
//
// Entities are stored by reference, so mutations made by the service are
// visible without an explicit UpdateBook/UpdateUser round trip; the update
// methods still validate presence so the contract holds for callers that
// treat this backend interchangeably with a persistent one.
type MemoryRepository struct {
	books     map[string]*domain.Book
	bookOrder []string
	users     map[string]*domain.User
	userOrder []string
	history   map[string][]*domain.LoanRecord
	log       logging.Logger
}

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepositoryFactory creates a factory function that returns a new
// MemoryRepository. The factory function implements the RepositoryFactory type.
func MemoryRepositoryFactory() RepositoryFactory {
	return func() (Repository, error) {
		return NewMemoryRepository(), nil
	}
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		books:   make(map[string]*domain.Book),
		users:   make(map[string]*domain.User),
		history: make(map[string][]*domain.LoanRecord),
		log:     logging.GetLogger("repo.library.memory_repository"),
	}
}

// AddBook implements Repository.AddBook.
func (r *MemoryRepository) AddBook(ctx context.Context, book *domain.Book) error {
	if _, exists := r.books[book.Title]; exists {
		return domain.ErrBookAlreadyExists
	}

	r.books[book.Title] = book
	r.bookOrder = append(r.bookOrder, book.Title)

	r.log.DebugContext(ctx, "book stored", "title", book.Title)

	return nil
}

// GetBook implements Repository.GetBook.
func (r *MemoryRepository) GetBook(_ context.Context, title string) (*domain.Book, bool, error) {
	book, ok := r.books[title]

	return book, ok, nil
}

// ListBooks implements Repository.ListBooks, preserving insertion order.
func (r *MemoryRepository) ListBooks(_ context.Context) ([]*domain.Book, error) {
	books := make([]*domain.Book, 0, len(r.bookOrder))
	for _, title := range r.bookOrder {
		books = append(books, r.books[title])
	}

	return books, nil
}

// UpdateBook implements Repository.UpdateBook.
func (r *MemoryRepository) UpdateBook(_ context.Context, book *domain.Book) error {
	if _, exists := r.books[book.Title]; !exists {
		return domain.ErrBookNotFound
	}

	r.books[book.Title] = book

	return nil
}

// RemoveBook implements Repository.RemoveBook.
func (r *MemoryRepository) RemoveBook(ctx context.Context, title string) error {
	if _, exists := r.books[title]; !exists {
		return domain.ErrBookNotFound
	}

	delete(r.books, title)
	r.bookOrder = deleteValue(r.bookOrder, title)

	r.log.DebugContext(ctx, "book removed", "title", title)

	return nil
}

// AddUser implements Repository.AddUser.
func (r *MemoryRepository) AddUser(ctx context.Context, user *domain.User) error {
	if _, exists := r.users[user.ID]; exists {
		return domain.ErrUserAlreadyExists
	}

	r.users[user.ID] = user
	r.userOrder = append(r.userOrder, user.ID)

	r.log.DebugContext(ctx, "user stored", "id", user.ID)

	return nil
}

// GetUser implements Repository.GetUser.
func (r *MemoryRepository) GetUser(_ context.Context, id string) (*domain.User, bool, error) {
	user, ok := r.users[id]

	return user, ok, nil
}

// ListUsers implements Repository.ListUsers, preserving registration order.
func (r *MemoryRepository) ListUsers(_ context.Context) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		users = append(users, r.users[id])
	}

	return users, nil
}

// UpdateUser implements Repository.UpdateUser.
func (r *MemoryRepository) UpdateUser(_ context.Context, user *domain.User) error {
	if _, exists := r.users[user.ID]; !exists {
		return domain.ErrUserNotFound
	}

	r.users[user.ID] = user

	return nil
}

// RemoveUser implements Repository.RemoveUser.
func (r *MemoryRepository) RemoveUser(ctx context.Context, id string) error {
	if _, exists := r.users[id]; !exists {
		return domain.ErrUserNotFound
	}

	delete(r.users, id)
	r.userOrder = deleteValue(r.userOrder, id)

	r.log.DebugContext(ctx, "user removed", "id", id)

	return nil
}

// RecordLoan implements Repository.RecordLoan.
func (r *MemoryRepository) RecordLoan(_ context.Context, userID, title string, at time.Time) error {
	r.history[userID] = append(r.history[userID], &domain.LoanRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		BorrowedAt: at,
	})

	return nil
}

// RecordReturn implements Repository.RecordReturn by scanning the user's
// history backwards for the nearest open record of the title.
func (r *MemoryRepository) RecordReturn(_ context.Context, userID, title string, at time.Time) error {
	records := r.history[userID]

	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Title == title && records[i].Open() {
			returnedAt := at
			records[i].ReturnedAt = &returnedAt

			break
		}
	}

	return nil
}

// GetLoanHistory implements Repository.GetLoanHistory.
func (r *MemoryRepository) GetLoanHistory(_ context.Context, userID string) ([]domain.LoanRecord, error) {
	records := r.history[userID]

	history := make([]domain.LoanRecord, 0, len(records))
	for _, record := range records {
		history = append(history, *record)
	}

	return history, nil
}

// Close implements Repository.Close. Nothing to release for the in-memory
// backend.
func (r *MemoryRepository) Close() error {
	return nil
}

func deleteValue(values []string, value string) []string {
	for i, v := range values {
		if v == value {
			return append(values[:i], values[i+1:]...)
		}
	}

	return values
}
