package domain

// AvailabilityReport aggregates copy counts over the whole catalog.
type AvailabilityReport struct {
	TotalTitles     int // Distinct titles registered
	TotalCopies     int // Sum of QuantityOriginal
	CopiesOnLoan    int // Sum of QuantityOriginal - QuantityAvailable
	CopiesAvailable int // Sum of QuantityAvailable
}
