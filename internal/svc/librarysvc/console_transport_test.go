package librarysvc_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbook/librarian/internal/repo/library"
	"github.com/rbook/librarian/internal/svc/librarysvc"
)

func runConsoleSession(t *testing.T, lines ...string) string {
	t.Helper()

	svc, _ := setupTestService(t)

	var out bytes.Buffer

	console := librarysvc.NewConsoleTransport(svc, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, console.Run(context.Background()))

	return out.String()
}

func TestConsoleTransportFullSession(t *testing.T) {
	t.Parallel()

	output := runConsoleSession(t,
		"1", "Clean Code", "Robert C. Martin", "2", // register book
		"4", "1", "Ana", // register user
		"6", "1", "Clean Code", // borrow
		"8", "1", // list user loans
		"10",       // availability report
		"7", "1", "Clean Code", // return
		"2", // list books
		"0", // exit
	)

	assert.Contains(t, output, "Book registered.")
	assert.Contains(t, output, "User registered.")
	assert.Contains(t, output, "Loan registered.")
	assert.Contains(t, output, "Loans of 1: Clean Code")
	assert.Contains(t, output, "Total titles: 1")
	assert.Contains(t, output, "Total copies: 2")
	assert.Contains(t, output, "Copies on loan: 1")
	assert.Contains(t, output, "Copies available: 1")
	assert.Contains(t, output, "Return registered.")
	assert.Contains(t, output, "Clean Code - Robert C. Martin | available: 2")
	assert.Contains(t, output, "Goodbye!")
}

func TestConsoleTransportFailedActionKeepsSessionAlive(t *testing.T) {
	t.Parallel()

	output := runConsoleSession(t,
		"3", "Missing", // remove unknown book -> error
		"1", "TDD", "Kent Beck", "nope", // bad quantity -> error
		"1", "TDD", "Kent Beck", "1", // and the loop still works
		"0",
	)

	assert.Contains(t, output, "Error: book not found")
	assert.Contains(t, output, `Error: not a number: "nope"`)
	assert.Contains(t, output, "Book registered.")
	assert.Contains(t, output, "Goodbye!")
}

func TestConsoleTransportSearchAndLimit(t *testing.T) {
	t.Parallel()

	output := runConsoleSession(t,
		"1", "Clean Code", "Robert C. Martin", "2",
		"1", "Refactoring", "Martin Fowler", "1",
		"9", "martin", // search by author
		"9", "haskell", // no match
		"11", "5", // raise the loan limit
		"11", "0", // invalid limit -> error
		"13", // unknown option
		"0",
	)

	assert.Contains(t, output, "Clean Code - Robert C. Martin")
	assert.Contains(t, output, "Refactoring - Martin Fowler")
	assert.Contains(t, output, "No books found.")
	assert.Contains(t, output, "Loan limit set to 5.")
	assert.Contains(t, output, "Error: invalid input: loan limit must be at least 1")
	assert.Contains(t, output, "Unknown option.")
	assert.Contains(t, output, "Goodbye!")
}

func TestConsoleTransportEndsOnInputEOF(t *testing.T) {
	t.Parallel()

	svc, err := librarysvc.NewLibraryService(
		library.MemoryRepositoryFactory(),
		librarysvc.LibraryConfig{LoanLimit: 3},
	)
	require.NoError(t, err)

	var out bytes.Buffer

	console := librarysvc.NewConsoleTransport(svc, strings.NewReader(""), &out)
	require.NoError(t, console.Run(context.Background()))
}
