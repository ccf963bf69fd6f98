package statistics

import "github.com/AntonStoeckl/library-history-go/library"

// PopularBook is one row of the MostPopularBooks report.
type PopularBook struct {
	Book        library.Book
	BorrowCount int
}

// ReaderActivity is one row of the ReadersWhoTookTheMostBooks report.
type ReaderActivity struct {
	ReaderID    library.ReaderID
	ReaderName  string
	BorrowCount int
}
