package domain

import "strings"

// MaxCopiesPerTitle caps how many copies of a single title the library owns.
const MaxCopiesPerTitle = 5

// Book represents one title in the catalog together with its copy counts.
type Book struct {
	Title             string // Unique natural key, trimmed
	Author            string // Free text, may be empty
	QuantityOriginal  int    // Total copies owned, immutable after creation
	QuantityAvailable int    // Copies not currently on loan
}

// NewBook validates the given fields and constructs a Book with all copies
// available. The title is trimmed before use.
func NewBook(title, author string, quantity int) (*Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if quantity > MaxCopiesPerTitle {
		return nil, ErrQuantityTooLarge
	}

	return &Book{
		Title:             title,
		Author:            author,
		QuantityOriginal:  quantity,
		QuantityAvailable: quantity,
	}, nil
}

// OnLoan returns the number of copies currently lent out.
func (b *Book) OnLoan() int {
	return b.QuantityOriginal - b.QuantityAvailable
}
