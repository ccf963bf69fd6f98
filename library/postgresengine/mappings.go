package postgresengine

import (
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine/internal/adapters"
)

// mapping binds an entity type to its table. columns lists the selected columns in scan order,
// id first; record excludes the id column.
type mapping[T any] struct {
	table   string
	columns []string
	scan    func(rows adapters.DBRows) (T, error)
	record  func(entity T) goqu.Record
	id      func(entity T) int64
	setID   func(entity *T, id int64)
}

func (m mapping[T]) hasColumn(name string) bool {
	for _, column := range m.columns {
		if column == name {
			return true
		}
	}

	return false
}

func (m mapping[T]) selectColumns() []any {
	columns := make([]any, 0, len(m.columns))
	for _, column := range m.columns {
		columns = append(columns, goqu.T(m.table).Col(column))
	}

	return columns
}

func bookMapping(table string) mapping[library.Book] {
	return mapping[library.Book]{
		table:   table,
		columns: []string{colID, library.FieldBookTitle, library.FieldBookAuthor, library.FieldBookYear},
		scan: func(rows adapters.DBRows) (library.Book, error) {
			var book library.Book
			err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.Year)

			return book, err
		},
		record: func(book library.Book) goqu.Record {
			return goqu.Record{
				library.FieldBookTitle:  book.Title,
				library.FieldBookAuthor: book.Author,
				library.FieldBookYear:   book.Year,
			}
		},
		id:    func(book library.Book) int64 { return book.ID },
		setID: func(book *library.Book, id int64) { book.ID = id },
	}
}

func readerMapping(table string) mapping[library.Reader] {
	return mapping[library.Reader]{
		table:   table,
		columns: []string{colID, library.FieldReaderName, library.FieldReaderEmail},
		scan: func(rows adapters.DBRows) (library.Reader, error) {
			var reader library.Reader
			err := rows.Scan(&reader.ID, &reader.Name, &reader.Email)

			return reader, err
		},
		record: func(reader library.Reader) goqu.Record {
			return goqu.Record{
				library.FieldReaderName:  reader.Name,
				library.FieldReaderEmail: reader.Email,
			}
		},
		id:    func(reader library.Reader) int64 { return reader.ID },
		setID: func(reader *library.Reader, id int64) { reader.ID = id },
	}
}

func readerProfileMapping(table string) mapping[library.ReaderProfile] {
	return mapping[library.ReaderProfile]{
		table: table,
		columns: []string{
			colID, library.FieldProfileReaderID, library.FieldProfileAddress, library.FieldProfilePhone,
		},
		scan: func(rows adapters.DBRows) (library.ReaderProfile, error) {
			var profile library.ReaderProfile
			err := rows.Scan(&profile.ID, &profile.ReaderID, &profile.Address, &profile.Phone)

			return profile, err
		},
		record: func(profile library.ReaderProfile) goqu.Record {
			return goqu.Record{
				library.FieldProfileReaderID: profile.ReaderID,
				library.FieldProfileAddress:  profile.Address,
				library.FieldProfilePhone:    profile.Phone,
			}
		},
		id:    func(profile library.ReaderProfile) int64 { return profile.ID },
		setID: func(profile *library.ReaderProfile, id int64) { profile.ID = id },
	}
}

func cardMapping(table string) mapping[library.Card] {
	return mapping[library.Card]{
		table:   table,
		columns: []string{colID, library.FieldCardReaderID, library.FieldCardCreated},
		scan: func(rows adapters.DBRows) (library.Card, error) {
			var card library.Card
			err := rows.Scan(&card.ID, &card.ReaderID, &card.Created)

			return card, err
		},
		record: func(card library.Card) goqu.Record {
			return goqu.Record{
				library.FieldCardReaderID: card.ReaderID,
				library.FieldCardCreated:  card.Created.UTC(),
			}
		},
		id:    func(card library.Card) int64 { return card.ID },
		setID: func(card *library.Card, id int64) { card.ID = id },
	}
}

func historyMapping(table string) mapping[library.History] {
	return mapping[library.History]{
		table: table,
		columns: []string{
			colID,
			library.FieldHistoryBookID,
			library.FieldHistoryCardID,
			library.FieldHistoryTakeDate,
			library.FieldHistoryReturnDate,
		},
		scan: func(rows adapters.DBRows) (library.History, error) {
			var history library.History
			var taken time.Time
			var returned sql.NullTime

			if err := rows.Scan(&history.ID, &history.BookID, &history.CardID, &taken, &returned); err != nil {
				return library.History{}, err
			}

			loan, err := library.LoanFromColumns(taken, nullTimePtr(returned))
			if err != nil {
				return library.History{}, err
			}

			history.Loan = loan

			return history, nil
		},
		record: historyRecord,
		id:     func(history library.History) int64 { return history.ID },
		setID:  func(history *library.History, id int64) { history.ID = id },
	}
}

func historyRecord(history library.History) goqu.Record {
	taken, returned := library.LoanColumns(history.Loan)

	record := goqu.Record{
		library.FieldHistoryBookID:     history.BookID,
		library.FieldHistoryCardID:     history.CardID,
		library.FieldHistoryTakeDate:   taken.UTC(),
		library.FieldHistoryReturnDate: nil,
	}

	if returned != nil {
		record[library.FieldHistoryReturnDate] = returned.UTC()
	}

	return record
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	return &t.Time
}
