package statistics

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/AntonStoeckl/library-history-go/library"
)

// DefaultLoanPeriod is how long a reader may keep a book.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// ProjectMostPopularBooks ranks books by the number of times they were borrowed.
//
//	GIVEN: the complete borrowing history
//	THEN:  at most count books, most borrowed first, equal counts by ascending book id
//	FAILS: ErrInvalidRange for count < 0, ErrNoData for an empty history
func ProjectMostPopularBooks(history []library.HistoryDetails, count int) ([]PopularBook, error) {
	if count < 0 {
		return nil, errors.Join(library.ErrInvalidRange, fmt.Errorf("count must not be negative, got %d", count))
	}

	if len(history) == 0 {
		return nil, library.ErrNoData
	}

	byBook := groupBy(history, func(d library.HistoryDetails) library.BookID { return d.History.BookID })
	ranked := top(rankGroups(byBook, cmp.Compare[library.BookID]), count)

	result := make([]PopularBook, 0, len(ranked))
	for _, g := range ranked {
		result = append(result, PopularBook{
			Book:        g.items[0].Book,
			BorrowCount: len(g.items),
		})
	}

	return result, nil
}

// ProjectReadersWhoTookTheMostBooks ranks readers by their completed loans inside [from, to].
//
//	GIVEN: the borrowing history
//	WHEN:  only returned loans with take >= from and return <= to count
//	THEN:  at most count readers, most loans first, equal counts by ascending reader id
//	FAILS: ErrInvalidRange for count < 0 or from > to, ErrNoData if no loan falls into the window
func ProjectReadersWhoTookTheMostBooks(
	history []library.HistoryDetails,
	count int,
	from time.Time,
	to time.Time,
) ([]ReaderActivity, error) {
	if err := validateWindow(count, from, to); err != nil {
		return nil, err
	}

	window := WindowCondition(from, to)

	inWindow := make([]library.HistoryDetails, 0, len(history))
	for _, d := range history {
		if window.Matches(d.History.Fields()) {
			inWindow = append(inWindow, d)
		}
	}

	if len(inWindow) == 0 {
		return nil, library.ErrNoData
	}

	byReader := groupBy(inWindow, func(d library.HistoryDetails) library.ReaderID { return d.Card.ReaderID })
	ranked := top(rankGroups(byReader, cmp.Compare[library.ReaderID]), count)

	result := make([]ReaderActivity, 0, len(ranked))
	for _, g := range ranked {
		result = append(result, ReaderActivity{
			ReaderID:    g.key,
			ReaderName:  g.items[0].Reader.Name,
			BorrowCount: len(g.items),
		})
	}

	return result, nil
}

// ProjectReadersThatDontReturnBooks lists every reader with at least one active loan.
//
//	GIVEN: the borrowing history
//	THEN:  each such reader once, in the order of their earliest active loan (take date, then history id)
//	FAILS: ErrNoData for an empty history; a history without active loans yields an empty list
func ProjectReadersThatDontReturnBooks(history []library.HistoryDetails) ([]library.Reader, error) {
	if len(history) == 0 {
		return nil, library.ErrNoData
	}

	chronological := slices.Clone(history)
	slices.SortStableFunc(chronological, byTakeDateThenID)

	seen := make(map[library.ReaderID]struct{})
	readers := make([]library.Reader, 0)

	for _, d := range chronological {
		if !library.IsActive(d.History.Loan) {
			continue
		}

		if _, ok := seen[d.Reader.ID]; ok {
			continue
		}

		seen[d.Reader.ID] = struct{}{}
		readers = append(readers, d.Reader)
	}

	return readers, nil
}

// ProjectBookReturningDate returns when the book's current loan is due.
//
//	GIVEN: the borrowing history
//	WHEN:  the most recent loan of the book (latest take date, ties by higher history id) is still active
//	THEN:  its take date plus loanPeriod
//	FAILS: ErrNotFound if the book was never lent or its latest loan was returned,
//	       ErrInvalidRange for a non-positive loanPeriod
func ProjectBookReturningDate(history []library.HistoryDetails, bookID library.BookID, loanPeriod time.Duration) (time.Time, error) {
	if loanPeriod <= 0 {
		return time.Time{}, errors.Join(library.ErrInvalidRange, fmt.Errorf("loan period must be positive, got %s", loanPeriod))
	}

	var latest *library.HistoryDetails

	for i := range history {
		d := &history[i]
		if d.History.BookID != bookID {
			continue
		}

		if latest == nil || byTakeDateThenID(*d, *latest) > 0 {
			latest = d
		}
	}

	if latest == nil {
		return time.Time{}, errors.Join(library.ErrNotFound, fmt.Errorf("book %d was never lent", bookID))
	}

	if !library.IsActive(latest.History.Loan) {
		return time.Time{}, errors.Join(library.ErrNotFound, fmt.Errorf("book %d has no active loan", bookID))
	}

	return latest.History.Loan.TakenAt().Add(loanPeriod), nil
}

// WindowCondition selects the returned loans taken at or after from and returned at or before to.
func WindowCondition(from, to time.Time) library.Condition {
	return library.AllOf(
		library.Gte(library.FieldHistoryTakeDate, from),
		library.IsNotNull(library.FieldHistoryReturnDate),
		library.Lte(library.FieldHistoryReturnDate, to),
	)
}

// ActiveLoansCondition selects the loans whose book is still out.
func ActiveLoansCondition() library.Condition {
	return library.AllOf(library.IsNull(library.FieldHistoryReturnDate))
}

// BookCondition selects the loans of one book.
func BookCondition(bookID library.BookID) library.Condition {
	return library.AllOf(library.Eq(library.FieldHistoryBookID, bookID))
}

func validateWindow(count int, from, to time.Time) error {
	if count < 0 {
		return errors.Join(library.ErrInvalidRange, fmt.Errorf("count must not be negative, got %d", count))
	}

	if from.After(to) {
		return errors.Join(
			library.ErrInvalidRange,
			fmt.Errorf("from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339)),
		)
	}

	return nil
}

func byTakeDateThenID(a, b library.HistoryDetails) int {
	if c := a.History.Loan.TakenAt().Compare(b.History.Loan.TakenAt()); c != 0 {
		return c
	}

	return cmp.Compare(a.History.ID, b.History.ID)
}
