package librarysvc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	context_ "github.com/rbook/librarian/internal/infra/context"
	"github.com/rbook/librarian/internal/infra/logging"
)

const menu = `
Choose an option:
 1 - Register book
 2 - List books
 3 - Remove book
 4 - Register user
 5 - List users
 6 - Borrow book
 7 - Return book
 8 - List user loans
 9 - Search books
10 - Availability report
11 - Set loan limit
12 - Remove user
 0 - Exit`

// ConsoleTransport drives the library service through an interactive
// line-based menu. It is a thin I/O loop: every action delegates to the
// service and a failed action prints its error and keeps the session alive.
type ConsoleTransport struct {
	svc *LibraryService
	in  *bufio.Scanner
	out io.Writer
	log logging.Logger
}

// NewConsoleTransport creates a console transport reading line-based input
// from in and printing results to out.
func NewConsoleTransport(svc *LibraryService, in io.Reader, out io.Writer) *ConsoleTransport {
	return &ConsoleTransport{
		svc: svc,
		in:  bufio.NewScanner(in),
		out: out,
		log: logging.GetLogger("svc.librarysvc.console_transport"),
	}
}

// Run shows the menu until the user exits or input ends. Each action runs
// under a fresh trace ID so its log records can be correlated.
func (t *ConsoleTransport) Run(ctx context.Context) error {
	for {
		fmt.Fprintln(t.out, menu)

		option, ok := t.prompt("Option: ")
		if !ok {
			return t.in.Err()
		}

		if option == "0" {
			fmt.Fprintln(t.out, "Goodbye!")

			return nil
		}

		actionCtx := context_.WithTraceID(ctx, uuid.NewString())

		if err := t.dispatch(actionCtx, option); err != nil {
			t.log.DebugContext(actionCtx, "action failed", "option", option, "error", err)
			fmt.Fprintf(t.out, "Error: %v\n", err)
		}
	}
}

//nolint:cyclop
func (t *ConsoleTransport) dispatch(ctx context.Context, option string) error {
	switch option {
	case "1":
		return t.registerBook(ctx)
	case "2":
		return t.listBooks(ctx)
	case "3":
		return t.removeBook(ctx)
	case "4":
		return t.registerUser(ctx)
	case "5":
		return t.listUsers(ctx)
	case "6":
		return t.borrowBook(ctx)
	case "7":
		return t.returnBook(ctx)
	case "8":
		return t.listUserLoans(ctx)
	case "9":
		return t.searchBooks(ctx)
	case "10":
		return t.availabilityReport(ctx)
	case "11":
		return t.setLoanLimit(ctx)
	case "12":
		return t.removeUser(ctx)
	default:
		fmt.Fprintln(t.out, "Unknown option.")

		return nil
	}
}

func (t *ConsoleTransport) registerBook(ctx context.Context) error {
	title, _ := t.prompt("Title: ")
	author, _ := t.prompt("Author: ")

	quantity, err := t.promptInt("Quantity: ")
	if err != nil {
		return err
	}

	if _, err := t.svc.AddBook(ctx, title, author, quantity); err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Book registered.")

	return nil
}

func (t *ConsoleTransport) listBooks(ctx context.Context) error {
	books, err := t.svc.ListBooks(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Registered books:")

	for _, book := range books {
		fmt.Fprintf(t.out, "%s - %s | available: %d\n", book.Title, book.Author, book.QuantityAvailable)
	}

	return nil
}

func (t *ConsoleTransport) removeBook(ctx context.Context) error {
	title, _ := t.prompt("Title to remove: ")

	if err := t.svc.RemoveBook(ctx, title); err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Book removed.")

	return nil
}

func (t *ConsoleTransport) registerUser(ctx context.Context) error {
	id, _ := t.prompt("User ID: ")
	name, _ := t.prompt("Name: ")

	if _, err := t.svc.AddUser(ctx, id, name); err != nil {
		return err
	}

	fmt.Fprintln(t.out, "User registered.")

	return nil
}

func (t *ConsoleTransport) listUsers(ctx context.Context) error {
	users, err := t.svc.ListUsers(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Registered users:")

	for _, user := range users {
		fmt.Fprintf(t.out, "%s - %s\n", user.ID, user.Name)
	}

	return nil
}

func (t *ConsoleTransport) borrowBook(ctx context.Context) error {
	userID, _ := t.prompt("User ID: ")
	title, _ := t.prompt("Book title: ")

	if _, _, err := t.svc.BorrowBook(ctx, userID, title); err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Loan registered.")

	return nil
}

func (t *ConsoleTransport) returnBook(ctx context.Context) error {
	userID, _ := t.prompt("User ID: ")
	title, _ := t.prompt("Book title: ")

	if err := t.svc.ReturnBook(ctx, userID, title); err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Return registered.")

	return nil
}

func (t *ConsoleTransport) listUserLoans(ctx context.Context) error {
	userID, _ := t.prompt("User ID: ")

	loans, err := t.svc.ListUserLoans(ctx, userID)
	if err != nil {
		return err
	}

	if len(loans) == 0 {
		fmt.Fprintf(t.out, "Loans of %s: (none)\n", userID)
	} else {
		fmt.Fprintf(t.out, "Loans of %s: %s\n", userID, strings.Join(loans, ", "))
	}

	return nil
}

func (t *ConsoleTransport) searchBooks(ctx context.Context) error {
	term, _ := t.prompt("Search term (title or author): ")

	books, err := t.svc.SearchBooks(ctx, term)
	if err != nil {
		return err
	}

	if len(books) == 0 {
		fmt.Fprintln(t.out, "No books found.")

		return nil
	}

	for _, book := range books {
		fmt.Fprintf(t.out, "%s - %s\n", book.Title, book.Author)
	}

	return nil
}

func (t *ConsoleTransport) availabilityReport(ctx context.Context) error {
	report, err := t.svc.AvailabilityReport(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(t.out, "Availability report:")
	fmt.Fprintf(t.out, "Total titles: %d\n", report.TotalTitles)
	fmt.Fprintf(t.out, "Total copies: %d\n", report.TotalCopies)
	fmt.Fprintf(t.out, "Copies on loan: %d\n", report.CopiesOnLoan)
	fmt.Fprintf(t.out, "Copies available: %d\n", report.CopiesAvailable)

	return nil
}

func (t *ConsoleTransport) setLoanLimit(_ context.Context) error {
	limit, err := t.promptInt("Loan limit per user: ")
	if err != nil {
		return err
	}

	if err := t.svc.SetLoanLimit(limit); err != nil {
		return err
	}

	fmt.Fprintf(t.out, "Loan limit set to %d.\n", limit)

	return nil
}

func (t *ConsoleTransport) removeUser(ctx context.Context) error {
	userID, _ := t.prompt("User ID to remove: ")

	if err := t.svc.RemoveUser(ctx, userID); err != nil {
		return err
	}

	fmt.Fprintln(t.out, "User removed.")

	return nil
}

// prompt prints the label and reads one line. The boolean is false once
// input is exhausted.
func (t *ConsoleTransport) prompt(label string) (string, bool) {
	fmt.Fprint(t.out, label)

	if !t.in.Scan() {
		return "", false
	}

	return strings.TrimSpace(t.in.Text()), true
}

func (t *ConsoleTransport) promptInt(label string) (int, error) {
	text, _ := t.prompt(label)

	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}

	return value, nil
}
