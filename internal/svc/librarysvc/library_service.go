package librarysvc

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rbook/librarian/internal/domain"
	"github.com/rbook/librarian/internal/infra/logging"
	"github.com/rbook/librarian/internal/repo/library"
)

// LibraryConfig contains configuration parameters for the library service.
type LibraryConfig struct {
	// LoanLimit is the maximum number of distinct titles a user may hold
	// at the same time
	LoanLimit int `env:"LOAN_LIMIT" default:"3"`
}

// LibraryService owns all lending policy: it is the sole mutator of books
// and users and records every borrow and return in the loan history. It
// validates before it mutates; a rejected operation leaves no partial state.
type LibraryService struct {
	Config LibraryConfig
	Repo   library.Repository
	Log    logging.Logger

	// Now is the time source for loan timestamps. Injected so tests can
	// pin it; defaults to time.Now.
	Now func() time.Time

	loanLimit int
}

// NewLibraryService creates a new LibraryService with the given repository
// factory and configuration. Returns an error if the configured loan limit
// is invalid or the repository cannot be created.
func NewLibraryService(repoFactory library.RepositoryFactory, cfg LibraryConfig) (*LibraryService, error) {
	log := logging.GetLogger("svc.librarysvc.library_service")

	if cfg.LoanLimit < 1 {
		return nil, fmt.Errorf("configured loan limit: %w", domain.ErrInvalidLoanLimit)
	}

	repo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new library repo: %w", err)
	}

	return &LibraryService{
		Config:    cfg,
		Repo:      repo,
		Log:       log,
		Now:       time.Now,
		loanLimit: cfg.LoanLimit,
	}, nil
}

// AddBook registers a new title with the given number of copies, all of
// them initially available. Returns the created book.
func (s *LibraryService) AddBook(ctx context.Context, title, author string, quantity int) (_ *domain.Book, err error) {
	log := s.Log.With(logging.Group("book", "title", title, "quantity", quantity))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "add book failed", "error", err)
		} else {
			log.DebugContext(ctx, "book registered")
		}
	}()

	book, err := domain.NewBook(title, author, quantity)
	if err != nil {
		return nil, fmt.Errorf("new book: %w", err)
	}

	if err := s.Repo.AddBook(ctx, book); err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}

	return book, nil
}

// ListBooks returns the whole catalog in registration order.
func (s *LibraryService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.Repo.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return books, nil
}

// RemoveBook deletes a title from the catalog. Removal is blocked while
// any copy is on loan.
func (s *LibraryService) RemoveBook(ctx context.Context, title string) (err error) {
	log := s.Log.With(logging.Group("book", "title", title))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "remove book failed", "error", err)
		} else {
			log.DebugContext(ctx, "book removed")
		}
	}()

	book, ok, err := s.Repo.GetBook(ctx, title)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	} else if !ok {
		return domain.ErrBookNotFound
	}

	if book.QuantityAvailable != book.QuantityOriginal {
		return domain.ErrCopiesOnLoan
	}

	if err := s.Repo.RemoveBook(ctx, title); err != nil {
		return fmt.Errorf("remove book: %w", err)
	}

	return nil
}

// AddUser registers a new patron. Returns the created user.
func (s *LibraryService) AddUser(ctx context.Context, id, name string) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "add user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user registered")
		}
	}()

	user, err := domain.NewUser(id, name)
	if err != nil {
		return nil, fmt.Errorf("new user: %w", err)
	}

	if err := s.Repo.AddUser(ctx, user); err != nil {
		return nil, fmt.Errorf("add user: %w", err)
	}

	return user, nil
}

// ListUsers returns all registered patrons in registration order.
func (s *LibraryService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.Repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return users, nil
}

// RemoveUser deletes a patron. Removal is blocked while the user holds any
// loans. The loan history outlives the user.
func (s *LibraryService) RemoveUser(ctx context.Context, id string) (err error) {
	log := s.Log.With(logging.Group("user", "id", id))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "remove user failed", "error", err)
		} else {
			log.DebugContext(ctx, "user removed")
		}
	}()

	user, ok, err := s.Repo.GetUser(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	} else if !ok {
		return domain.ErrUserNotFound
	}

	if len(user.Loans) > 0 {
		return domain.ErrUserHasLoans
	}

	if err := s.Repo.RemoveUser(ctx, id); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}

	return nil
}

// BorrowBook lends one copy of the title to the user: availability is
// decremented, the title joins the user's loans and an open loan record is
// appended at the current time. A user may hold at most one copy of a
// given title, and no more than the loan limit in total.
// Returns the updated user and book.
func (s *LibraryService) BorrowBook(ctx context.Context, userID, title string) (_ *domain.User, _ *domain.Book, err error) {
	log := s.Log.With(logging.Group("loan", "user", userID, "title", title))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "borrow failed", "error", err)
		} else {
			log.InfoContext(ctx, "book borrowed")
		}
	}()

	user, ok, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return nil, nil, domain.ErrUserNotFound
	}

	book, ok, err := s.Repo.GetBook(ctx, title)
	if err != nil {
		return nil, nil, fmt.Errorf("get book: %w", err)
	} else if !ok {
		return nil, nil, domain.ErrBookNotFound
	}

	if book.QuantityAvailable <= 0 {
		return nil, nil, domain.ErrBookUnavailable
	}

	if len(user.Loans) >= s.loanLimit {
		return nil, nil, domain.ErrLimitExceeded
	}

	if user.Holds(book.Title) {
		return nil, nil, domain.ErrDuplicateLoan
	}

	book.QuantityAvailable--
	user.Loans = append(user.Loans, book.Title)

	if err := s.Repo.UpdateBook(ctx, book); err != nil {
		return nil, nil, fmt.Errorf("update book: %w", err)
	}

	if err := s.Repo.UpdateUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("update user: %w", err)
	}

	if err := s.Repo.RecordLoan(ctx, user.ID, book.Title, s.Now()); err != nil {
		return nil, nil, fmt.Errorf("record loan: %w", err)
	}

	return user, book, nil
}

// ReturnBook takes one copy of the title back from the user: availability
// is incremented, the title leaves the user's loans and the most recent
// open loan record for the title is closed at the current time.
func (s *LibraryService) ReturnBook(ctx context.Context, userID, title string) (err error) {
	log := s.Log.With(logging.Group("loan", "user", userID, "title", title))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "return failed", "error", err)
		} else {
			log.InfoContext(ctx, "book returned")
		}
	}()

	user, ok, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	} else if !ok {
		return domain.ErrUserNotFound
	}

	book, ok, err := s.Repo.GetBook(ctx, title)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	} else if !ok {
		return domain.ErrBookNotFound
	}

	if !user.Holds(book.Title) {
		return domain.ErrLoanNotHeld
	}

	// Defensive invariant check against inconsistent storage; unreachable
	// through borrow/return alone since holding implies a prior decrement.
	if book.QuantityAvailable+1 > book.QuantityOriginal {
		return domain.ErrReturnExceedsMax
	}

	book.QuantityAvailable++
	user.Loans = slices.DeleteFunc(user.Loans, func(t string) bool { return t == book.Title })

	if err := s.Repo.UpdateBook(ctx, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	if err := s.Repo.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if err := s.Repo.RecordReturn(ctx, user.ID, book.Title, s.Now()); err != nil {
		return fmt.Errorf("record return: %w", err)
	}

	return nil
}

// ListUserLoans returns a snapshot of the titles the user currently holds.
// The returned slice is the caller's to keep; mutating it does not affect
// the stored loan state.
func (s *LibraryService) ListUserLoans(ctx context.Context, userID string) ([]string, error) {
	user, ok, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return nil, domain.ErrUserNotFound
	}

	return slices.Clone(user.Loans), nil
}

// LoanHistory returns the user's full loan history, oldest first.
func (s *LibraryService) LoanHistory(ctx context.Context, userID string) ([]domain.LoanRecord, error) {
	if _, ok, err := s.Repo.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	} else if !ok {
		return nil, domain.ErrUserNotFound
	}

	history, err := s.Repo.GetLoanHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get loan history: %w", err)
	}

	return history, nil
}

// SearchBooks returns all books whose title or author contains the term,
// case-insensitively, in catalog order. An empty term matches the whole
// catalog.
func (s *LibraryService) SearchBooks(ctx context.Context, term string) ([]*domain.Book, error) {
	books, err := s.Repo.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	term = strings.ToLower(term)

	var matches []*domain.Book

	for _, book := range books {
		if strings.Contains(strings.ToLower(book.Title), term) ||
			strings.Contains(strings.ToLower(book.Author), term) {
			matches = append(matches, book)
		}
	}

	return matches, nil
}

// AvailabilityReport aggregates copy counts over the whole catalog. Pure
// read, no mutation.
func (s *LibraryService) AvailabilityReport(ctx context.Context) (domain.AvailabilityReport, error) {
	books, err := s.Repo.ListBooks(ctx)
	if err != nil {
		return domain.AvailabilityReport{}, fmt.Errorf("list books: %w", err)
	}

	report := domain.AvailabilityReport{TotalTitles: len(books)}

	for _, book := range books {
		report.TotalCopies += book.QuantityOriginal
		report.CopiesOnLoan += book.OnLoan()
		report.CopiesAvailable += book.QuantityAvailable
	}

	return report, nil
}

// SetLoanLimit changes the maximum number of titles a user may hold at
// once. The limit must be at least 1. Loans already held above a lowered
// limit stay valid; the limit only guards new borrows.
func (s *LibraryService) SetLoanLimit(n int) error {
	if n < 1 {
		return domain.ErrInvalidLoanLimit
	}

	s.loanLimit = n

	return nil
}

// LoanLimit returns the current loan limit.
func (s *LibraryService) LoanLimit() int {
	return s.loanLimit
}

// Close releases resources held by the service, such as database
// connections. Returns an error if cleanup fails.
func (s *LibraryService) Close() error {
	if err := s.Repo.Close(); err != nil {
		return fmt.Errorf("close library repo: %w", err)
	}

	return nil
}
