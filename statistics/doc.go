// Package statistics implements the borrowing-history reports of the library.
//
// Every report is split the same way: a pure Project* function aggregates an in-memory snapshot of
// joined history rows (library.HistoryDetails), and the Engine fetches that snapshot with exactly one
// read, instruments the call, and optionally remembers the result in a report cache.
//
// Reports:
//   - MostPopularBooks: books ranked by how often they were borrowed
//   - ReadersWhoTookTheMostBooks: readers ranked by completed loans inside a date window
//   - ReadersThatDontReturnBooks: readers holding at least one book
//   - BookReturningDate: the due date of a book's current loan
//
// All rankings are deterministic: equal counts are ordered by ascending id.
package statistics
