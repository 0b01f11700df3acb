package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rbook/librarian/internal/domain"
	"github.com/rbook/librarian/internal/infra/logging"
)

// SQLiteRepositoryConfig holds configuration for the SQLite repository.
type SQLiteRepositoryConfig struct {
	// DSN is the SQLite data source name. The default keeps the database
	// in memory, shared across connections for the lifetime of the process.
	DSN string `env:"DSN" default:"file:librarysvc?mode=memory&cache=shared"`
}

// SQLiteRepository implements Repository on top of SQLite. It exists to
// show that the storage contract carries over to a real database without
// touching lending policy; with the default in-memory DSN it behaves like
// MemoryRepository from the caller's point of view.
type SQLiteRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepositoryFactory creates a factory function that returns a new
// SQLiteRepository. The factory function implements the RepositoryFactory type.
func SQLiteRepositoryFactory(cfg SQLiteRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		return NewSQLiteRepository(cfg)
	}
}

// NewSQLiteRepository creates a new SQLiteRepository with the given
// configuration. It initializes the database connection and creates the
// schema if needed.
func NewSQLiteRepository(cfg SQLiteRepositoryConfig) (*SQLiteRepository, error) {
	log := logging.GetLogger("repo.library.sqlite_repository").With(
		logging.Group("db", "dsn", cfg.DSN),
	)

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := initializeDB(db); err != nil {
		return nil, fmt.Errorf("initialize db: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

func initializeDB(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			title              TEXT    PRIMARY KEY,
			author             TEXT    NOT NULL,
			quantity_original  INTEGER NOT NULL,
			quantity_available INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_loans (
			user_id TEXT NOT NULL,
			title   TEXT NOT NULL,
			UNIQUE (user_id, title)
		);

		CREATE TABLE IF NOT EXISTS loan_history (
			id          TEXT    PRIMARY KEY,
			user_id     TEXT    NOT NULL,
			title       TEXT    NOT NULL,
			borrowed_at INTEGER NOT NULL,
			returned_at INTEGER
		)
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// AddBook implements Repository.AddBook using SQLite.
func (r *SQLiteRepository) AddBook(_ context.Context, book *domain.Book) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.Exec(
		"INSERT INTO books (title, author, quantity_original, quantity_available) VALUES (?, ?, ?, ?)",
		book.Title,
		book.Author,
		book.QuantityOriginal,
		book.QuantityAvailable,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", translateConstraint(err, domain.ErrBookAlreadyExists))
	}

	return nil
}

// GetBook implements Repository.GetBook using SQLite.
func (r *SQLiteRepository) GetBook(_ context.Context, title string) (*domain.Book, bool, error) {
	var book domain.Book

	err := r.db.QueryRow(
		"SELECT title, author, quantity_original, quantity_available FROM books WHERE title = ?",
		title,
	).Scan(&book.Title, &book.Author, &book.QuantityOriginal, &book.QuantityAvailable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query book: %w", err)
	}

	return &book, true, nil
}

// ListBooks implements Repository.ListBooks using SQLite. Rowid order
// matches insertion order.
func (r *SQLiteRepository) ListBooks(_ context.Context) ([]*domain.Book, error) {
	rows, err := r.db.Query(
		"SELECT title, author, quantity_original, quantity_available FROM books ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*domain.Book

	for rows.Next() {
		var book domain.Book
		if err := rows.Scan(&book.Title, &book.Author, &book.QuantityOriginal, &book.QuantityAvailable); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}

		books = append(books, &book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	return books, nil
}

// UpdateBook implements Repository.UpdateBook using SQLite.
func (r *SQLiteRepository) UpdateBook(_ context.Context, book *domain.Book) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.Exec(
		"UPDATE books SET author = ?, quantity_original = ?, quantity_available = ? WHERE title = ?",
		book.Author,
		book.QuantityOriginal,
		book.QuantityAvailable,
		book.Title,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	return affectedOrErr(result, domain.ErrBookNotFound)
}

// RemoveBook implements Repository.RemoveBook using SQLite.
func (r *SQLiteRepository) RemoveBook(_ context.Context, title string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.Exec("DELETE FROM books WHERE title = ?", title)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	return affectedOrErr(result, domain.ErrBookNotFound)
}

// AddUser implements Repository.AddUser using SQLite.
func (r *SQLiteRepository) AddUser(_ context.Context, user *domain.User) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.Exec("INSERT INTO users (id, name) VALUES (?, ?)", user.ID, user.Name)
	if err != nil {
		return fmt.Errorf("insert user: %w", translateConstraint(err, domain.ErrUserAlreadyExists))
	}

	return nil
}

// GetUser implements Repository.GetUser using SQLite. The user's current
// loans are loaded alongside the user row.
func (r *SQLiteRepository) GetUser(_ context.Context, id string) (*domain.User, bool, error) {
	var user domain.User

	err := r.db.QueryRow("SELECT id, name FROM users WHERE id = ?", id).Scan(&user.ID, &user.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query user: %w", err)
	}

	loans, err := r.loadLoans(user.ID)
	if err != nil {
		return nil, false, err
	}

	user.Loans = loans

	return &user, true, nil
}

// loadLoans reads the user's current loans sequence. Rowid order matches
// the insertion order UpdateUser writes, so the sequence round-trips.
func (r *SQLiteRepository) loadLoans(userID string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT title FROM user_loans WHERE user_id = ? ORDER BY rowid", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query user loans: %w", err)
	}
	defer rows.Close()

	var loans []string

	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("scan user loan: %w", err)
		}

		loans = append(loans, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user loans: %w", err)
	}

	return loans, nil
}

// ListUsers implements Repository.ListUsers using SQLite.
func (r *SQLiteRepository) ListUsers(_ context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query("SELECT id, name FROM users ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User

	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}

		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	for _, user := range users {
		loans, err := r.loadLoans(user.ID)
		if err != nil {
			return nil, err
		}

		user.Loans = loans
	}

	return users, nil
}

// UpdateUser implements Repository.UpdateUser using SQLite. The loans
// sequence is rewritten wholesale to preserve its order; the user row and
// the rewrite commit together or not at all.
func (r *SQLiteRepository) UpdateUser(_ context.Context, user *domain.User) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update user: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.Exec("UPDATE users SET name = ? WHERE id = ?", user.Name, user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if err = affectedOrErr(result, domain.ErrUserNotFound); err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM user_loans WHERE user_id = ?", user.ID); err != nil {
		return fmt.Errorf("clear user loans: %w", err)
	}

	for _, title := range user.Loans {
		if _, err = tx.Exec(
			"INSERT INTO user_loans (user_id, title) VALUES (?, ?)", user.ID, title,
		); err != nil {
			return fmt.Errorf("insert user loan: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update user: %w", err)
	}

	return nil
}

// RemoveUser implements Repository.RemoveUser using SQLite. The loan
// history is kept; it is an audit log independent of the user's lifetime.
func (r *SQLiteRepository) RemoveUser(_ context.Context, id string) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := affectedOrErr(result, domain.ErrUserNotFound); err != nil {
		return err
	}

	if _, err := r.db.Exec("DELETE FROM user_loans WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("clear user loans: %w", err)
	}

	return nil
}

// RecordLoan implements Repository.RecordLoan using SQLite.
func (r *SQLiteRepository) RecordLoan(_ context.Context, userID, title string, at time.Time) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	_, err := r.db.Exec(
		"INSERT INTO loan_history (id, user_id, title, borrowed_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(),
		userID,
		title,
		at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert loan record: %w", err)
	}

	return nil
}

// RecordReturn implements Repository.RecordReturn using SQLite. The most
// recent open record wins, matching the reverse scan of the in-memory
// backend.
func (r *SQLiteRepository) RecordReturn(_ context.Context, userID, title string, at time.Time) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	var recordID string

	err := r.db.QueryRow(`
		SELECT id FROM loan_history
		WHERE user_id = ? AND title = ? AND returned_at IS NULL
		ORDER BY rowid DESC LIMIT 1`,
		userID,
		title,
	).Scan(&recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("query open loan record: %w", err)
	}

	if _, err := r.db.Exec(
		"UPDATE loan_history SET returned_at = ? WHERE id = ?", at.UnixNano(), recordID,
	); err != nil {
		return fmt.Errorf("close loan record: %w", err)
	}

	return nil
}

// GetLoanHistory implements Repository.GetLoanHistory using SQLite.
func (r *SQLiteRepository) GetLoanHistory(_ context.Context, userID string) ([]domain.LoanRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, title, borrowed_at, returned_at FROM loan_history
		WHERE user_id = ? ORDER BY rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query loan history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.LoanRecord, 0)

	for rows.Next() {
		var (
			record     domain.LoanRecord
			borrowedAt int64
			returnedAt sql.NullInt64
		)

		if err := rows.Scan(&record.ID, &record.UserID, &record.Title, &borrowedAt, &returnedAt); err != nil {
			return nil, fmt.Errorf("scan loan record: %w", err)
		}

		record.BorrowedAt = time.Unix(0, borrowedAt)

		if returnedAt.Valid {
			t := time.Unix(0, returnedAt.Int64)
			record.ReturnedAt = &t
		}

		history = append(history, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan history: %w", err)
	}

	return history, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

// translateConstraint joins the matching domain error onto sqlite
// unique-constraint violations so callers can match with errors.Is.
func translateConstraint(err error, domainErr error) error {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			fallthrough
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return errors.Join(domainErr, err)
		}
	}

	return err
}

func affectedOrErr(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}
