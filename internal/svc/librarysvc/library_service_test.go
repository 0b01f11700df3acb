package librarysvc_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbook/librarian/internal/domain"
	"github.com/rbook/librarian/internal/repo/library"
	"github.com/rbook/librarian/internal/svc/librarysvc"
)

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// setupTestService builds a service over a real in-memory repository and a
// pinned clock. The repository is returned so tests can inspect (and, for
// the defensive checks, corrupt) stored state directly.
func setupTestService(t *testing.T) (*librarysvc.LibraryService, *library.MemoryRepository) {
	t.Helper()

	repo := library.NewMemoryRepository()

	svc, err := librarysvc.NewLibraryService(
		func() (library.Repository, error) { return repo, nil },
		librarysvc.LibraryConfig{LoanLimit: 3},
	)
	require.NoError(t, err)

	svc.Now = func() time.Time { return testTime }

	return svc, repo
}

func TestNewLibraryServiceRejectsBadLoanLimit(t *testing.T) {
	t.Parallel()

	_, err := librarysvc.NewLibraryService(
		library.MemoryRepositoryFactory(),
		librarysvc.LibraryConfig{LoanLimit: 0},
	)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLibraryService_AddBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name     string
		title    string
		author   string
		quantity int
		wantErr  error
	}{
		{
			name:     "successful registration",
			title:    "Clean Code",
			author:   "Robert C. Martin",
			quantity: 2,
		},
		{
			name:     "empty title",
			title:    "   ",
			quantity: 1,
			wantErr:  domain.ErrInvalidTitle,
		},
		{
			name:     "non-positive quantity",
			title:    "TDD",
			quantity: 0,
			wantErr:  domain.ErrInvalidQuantity,
		},
		{
			name:     "quantity above maximum",
			title:    "TDD",
			quantity: 6,
			wantErr:  domain.ErrQuantityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := setupTestService(t)

			book, err := svc.AddBook(ctx, tt.title, tt.author, tt.quantity)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.quantity, book.QuantityOriginal)
			assert.Equal(t, tt.quantity, book.QuantityAvailable)
		})
	}
}

func TestLibraryService_AddBookDuplicateTitle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	_, err := svc.AddBook(ctx, "Clean Code", "Robert C. Martin", 2)
	require.NoError(t, err)

	_, err = svc.AddBook(ctx, "Clean Code", "Someone Else", 1)
	require.ErrorIs(t, err, domain.ErrDuplicateEntity)
}

func TestLibraryService_AddUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	user, err := svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)
	assert.Empty(t, user.Loans)

	// "0" is a valid ID
	_, err = svc.AddUser(ctx, "0", "Zero")
	require.NoError(t, err)

	_, err = svc.AddUser(ctx, "1", "Maria")
	require.ErrorIs(t, err, domain.ErrDuplicateEntity)

	_, err = svc.AddUser(ctx, "  ", "Nobody")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

//nolint:funlen
func TestLibraryService_BorrowBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddBook(ctx, "DDD", "Evans", 1)
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "99", "DDD")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("unknown book", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "1", "Missing")
		require.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("no copies left", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddUser(ctx, "2", "Bea")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "DDD", "Evans", 1)
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "1", "DDD")
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "2", "DDD")
		require.ErrorIs(t, err, domain.ErrUnavailable)
	})

	t.Run("loan limit reached", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)

		for _, title := range []string{"A", "B", "C", "D"} {
			_, err := svc.AddBook(ctx, title, "X", 1)
			require.NoError(t, err)
		}

		for _, title := range []string{"A", "B", "C"} {
			_, _, err := svc.BorrowBook(ctx, "1", title)
			require.NoError(t, err)
		}

		_, _, err = svc.BorrowBook(ctx, "1", "D")
		require.ErrorIs(t, err, domain.ErrLimitExceeded)
	})

	t.Run("duplicate loan even with copies remaining", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "A", "X", 2)
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "1", "A")
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "1", "A")
		require.ErrorIs(t, err, domain.ErrDuplicateLoan)
	})

	t.Run("successful borrow updates quantity, loans and history", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "Clean Code", "Robert C. Martin", 2)
		require.NoError(t, err)

		user, book, err := svc.BorrowBook(ctx, "1", "Clean Code")
		require.NoError(t, err)
		assert.Equal(t, 1, book.QuantityAvailable)
		assert.Equal(t, []string{"Clean Code"}, user.Loans)

		history, err := repo.GetLoanHistory(ctx, "1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "Clean Code", history[0].Title)
		assert.True(t, history[0].BorrowedAt.Equal(testTime))
		assert.True(t, history[0].Open())
	})
}

//nolint:funlen
func TestLibraryService_ReturnBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("title not held", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "A", "X", 1)
		require.NoError(t, err)

		err = svc.ReturnBook(ctx, "1", "A")
		require.ErrorIs(t, err, domain.ErrLoanNotHeld)
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("unknown book", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)

		err = svc.ReturnBook(ctx, "1", "Missing")
		require.ErrorIs(t, err, domain.ErrBookNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		svc, _ := setupTestService(t)

		err := svc.ReturnBook(ctx, "99", "A")
		require.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("return exceeding original stock is rejected", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "A", "X", 1)
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "1", "A")
		require.NoError(t, err)

		// Simulate an inconsistent repository: all copies back on the
		// shelf while the user still holds the title.
		book, ok, err := repo.GetBook(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		book.QuantityAvailable = book.QuantityOriginal

		err = svc.ReturnBook(ctx, "1", "A")
		require.ErrorIs(t, err, domain.ErrReturnExceedsMax)
		require.ErrorIs(t, err, domain.ErrInvalidOperation)
	})

	t.Run("successful return restores state and closes the record", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "A", "X", 2)
		require.NoError(t, err)

		_, _, err = svc.BorrowBook(ctx, "1", "A")
		require.NoError(t, err)

		returnedAt := testTime.Add(48 * time.Hour)
		svc.Now = func() time.Time { return returnedAt }

		require.NoError(t, svc.ReturnBook(ctx, "1", "A"))

		book, ok, err := repo.GetBook(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, book.QuantityOriginal, book.QuantityAvailable)

		loans, err := svc.ListUserLoans(ctx, "1")
		require.NoError(t, err)
		assert.Empty(t, loans)

		history, err := repo.GetLoanHistory(ctx, "1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		require.NotNil(t, history[0].ReturnedAt)
		assert.True(t, history[0].ReturnedAt.Equal(returnedAt))
	})

	t.Run("borrow and return are inverse operations", func(t *testing.T) {
		t.Parallel()

		svc, repo := setupTestService(t)
		_, err := svc.AddUser(ctx, "1", "Ana")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "A", "X", 2)
		require.NoError(t, err)

		for range 3 {
			_, _, err = svc.BorrowBook(ctx, "1", "A")
			require.NoError(t, err)
			require.NoError(t, svc.ReturnBook(ctx, "1", "A"))
		}

		book, ok, err := repo.GetBook(ctx, "A")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, book.QuantityAvailable)

		history, err := repo.GetLoanHistory(ctx, "1")
		require.NoError(t, err)
		require.Len(t, history, 3)

		for _, record := range history {
			assert.False(t, record.Open())
		}
	})
}

func TestLibraryService_RemoveBook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	require.ErrorIs(t, svc.RemoveBook(ctx, "Missing"), domain.ErrBookNotFound)

	_, err := svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "A", "X", 2)
	require.NoError(t, err)

	_, _, err = svc.BorrowBook(ctx, "1", "A")
	require.NoError(t, err)

	// Blocked while a copy is on loan, permitted again after the return
	err = svc.RemoveBook(ctx, "A")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)

	require.NoError(t, svc.ReturnBook(ctx, "1", "A"))
	require.NoError(t, svc.RemoveBook(ctx, "A"))

	books, err := svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestLibraryService_RemoveUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	require.ErrorIs(t, svc.RemoveUser(ctx, "99"), domain.ErrUserNotFound)

	_, err := svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "A", "X", 1)
	require.NoError(t, err)

	_, _, err = svc.BorrowBook(ctx, "1", "A")
	require.NoError(t, err)

	err = svc.RemoveUser(ctx, "1")
	require.ErrorIs(t, err, domain.ErrInvalidOperation)

	require.NoError(t, svc.ReturnBook(ctx, "1", "A"))
	require.NoError(t, svc.RemoveUser(ctx, "1"))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestLibraryService_ListUserLoansReturnsSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	_, err := svc.ListUserLoans(ctx, "99")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "A", "X", 1)
	require.NoError(t, err)

	_, _, err = svc.BorrowBook(ctx, "1", "A")
	require.NoError(t, err)

	loans, err := svc.ListUserLoans(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, loans)

	// Mutating the snapshot must not leak into stored state
	loans[0] = "tampered"

	again, err := svc.ListUserLoans(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, again)
}

func TestLibraryService_LoanHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	_, err := svc.LoanHistory(ctx, "99")
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)

	history, err := svc.LoanHistory(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.AddBook(ctx, "A", "X", 1)
	require.NoError(t, err)
	_, _, err = svc.BorrowBook(ctx, "1", "A")
	require.NoError(t, err)

	history, err = svc.LoanHistory(ctx, "1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "A", history[0].Title)
}

func TestLibraryService_SearchBooks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	_, err := svc.AddBook(ctx, "Clean Code", "Robert C. Martin", 2)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "Domain-Driven Design", "Eric Evans", 1)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "Refactoring", "Martin Fowler", 1)
	require.NoError(t, err)

	tests := []struct {
		name       string
		term       string
		wantTitles []string
	}{
		{
			name:       "empty term matches all in catalog order",
			term:       "",
			wantTitles: []string{"Clean Code", "Domain-Driven Design", "Refactoring"},
		},
		{
			name:       "case-insensitive title substring",
			term:       "clean",
			wantTitles: []string{"Clean Code"},
		},
		{
			name:       "case-insensitive author substring",
			term:       "MARTIN",
			wantTitles: []string{"Clean Code", "Refactoring"},
		},
		{
			name:       "no match",
			term:       "haskell",
			wantTitles: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			books, err := svc.SearchBooks(ctx, tt.term)
			require.NoError(t, err)

			titles := make([]string, 0, len(books))
			for _, book := range books {
				titles = append(titles, book.Title)
			}

			assert.Equal(t, tt.wantTitles, titles)
		})
	}
}

func TestLibraryService_AvailabilityReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	report, err := svc.AvailabilityReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityReport{}, report)

	_, err = svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "A", "X", 2)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "B", "Y", 1)
	require.NoError(t, err)

	_, _, err = svc.BorrowBook(ctx, "1", "A")
	require.NoError(t, err)

	report, err = svc.AvailabilityReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityReport{
		TotalTitles:     2,
		TotalCopies:     3,
		CopiesOnLoan:    1,
		CopiesAvailable: 2,
	}, report)
}

// The sqlite backend must serve the same policy decisions as the memory
// one; in particular the guards that read the user's live loans depend on
// the loans sequence being loaded back from the database.
func TestLibraryService_LendingCycleOnSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	svc, err := librarysvc.NewLibraryService(
		library.SQLiteRepositoryFactory(library.SQLiteRepositoryConfig{DSN: dsn}),
		librarysvc.LibraryConfig{LoanLimit: 3},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, svc.Close())
	})

	svc.Now = func() time.Time { return testTime }

	_, err = svc.AddUser(ctx, "0", "Zero")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "Clean Code", "Robert C. Martin", 2)
	require.NoError(t, err)

	user, book, err := svc.BorrowBook(ctx, "0", "Clean Code")
	require.NoError(t, err)
	assert.Equal(t, 1, book.QuantityAvailable)
	assert.Equal(t, []string{"Clean Code"}, user.Loans)

	_, _, err = svc.BorrowBook(ctx, "0", "Clean Code")
	require.ErrorIs(t, err, domain.ErrDuplicateLoan)

	require.ErrorIs(t, svc.RemoveBook(ctx, "Clean Code"), domain.ErrInvalidOperation)
	require.ErrorIs(t, svc.RemoveUser(ctx, "0"), domain.ErrInvalidOperation)

	loans, err := svc.ListUserLoans(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, []string{"Clean Code"}, loans)

	require.NoError(t, svc.ReturnBook(ctx, "0", "Clean Code"))

	history, err := svc.LoanHistory(ctx, "0")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Open())
	assert.True(t, history[0].BorrowedAt.Equal(testTime))

	require.NoError(t, svc.RemoveUser(ctx, "0"))
	require.NoError(t, svc.RemoveBook(ctx, "Clean Code"))
}

func TestLibraryService_LoanLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := setupTestService(t)

	assert.Equal(t, 3, svc.LoanLimit())

	require.ErrorIs(t, svc.SetLoanLimit(0), domain.ErrInvalidInput)
	require.ErrorIs(t, svc.SetLoanLimit(-1), domain.ErrInvalidInput)

	require.NoError(t, svc.SetLoanLimit(1))
	assert.Equal(t, 1, svc.LoanLimit())

	_, err := svc.AddUser(ctx, "1", "Ana")
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "A", "X", 1)
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, "B", "Y", 1)
	require.NoError(t, err)

	_, _, err = svc.BorrowBook(ctx, "1", "A")
	require.NoError(t, err)

	_, _, err = svc.BorrowBook(ctx, "1", "B")
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
}
