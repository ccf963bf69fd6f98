package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine/internal/adapters"
)

// historyRepository adds the joined read to the generic history repository.
type historyRepository struct {
	*repository[library.History]
}

// FindWithDetails streams histories joined with their book, card, and the card's reader.
// The condition applies to history columns; rows come ordered by take date, then history id.
func (r *historyRepository) FindWithDetails(
	ctx context.Context,
	condition library.Condition,
) iter.Seq2[library.HistoryDetails, error] {
	store := r.uow.store
	tables := store.tables
	histories := goqu.T(tables.Histories)
	books := goqu.T(tables.Books)
	cards := goqu.T(tables.Cards)
	readers := goqu.T(tables.Readers)

	where, err := store.compileCondition(tables.Histories, r.mapping.hasColumn, condition)
	if err != nil {
		return failedSeq[library.HistoryDetails](errors.Join(library.ErrPersistence, err))
	}

	builder := store.dialect.
		From(histories).
		Join(books, goqu.On(books.Col(colID).Eq(histories.Col(library.FieldHistoryBookID)))).
		Join(cards, goqu.On(cards.Col(colID).Eq(histories.Col(library.FieldHistoryCardID)))).
		Join(readers, goqu.On(readers.Col(colID).Eq(cards.Col(library.FieldCardReaderID)))).
		Select(
			histories.Col(colID),
			histories.Col(library.FieldHistoryBookID),
			histories.Col(library.FieldHistoryCardID),
			histories.Col(library.FieldHistoryTakeDate),
			histories.Col(library.FieldHistoryReturnDate),
			books.Col(colID),
			books.Col(library.FieldBookTitle),
			books.Col(library.FieldBookAuthor),
			books.Col(library.FieldBookYear),
			cards.Col(colID),
			cards.Col(library.FieldCardReaderID),
			cards.Col(library.FieldCardCreated),
			readers.Col(colID),
			readers.Col(library.FieldReaderName),
			readers.Col(library.FieldReaderEmail),
		).
		Order(histories.Col(library.FieldHistoryTakeDate).Asc(), histories.Col(colID).Asc())

	if where != nil {
		builder = builder.Where(where)
	}

	return streamQuery(ctx, store, tables.Histories, builder, scanHistoryDetails)
}

func scanHistoryDetails(rows adapters.DBRows) (library.HistoryDetails, error) {
	var details library.HistoryDetails
	var taken time.Time
	var returned sql.NullTime

	err := rows.Scan(
		&details.History.ID,
		&details.History.BookID,
		&details.History.CardID,
		&taken,
		&returned,
		&details.Book.ID,
		&details.Book.Title,
		&details.Book.Author,
		&details.Book.Year,
		&details.Card.ID,
		&details.Card.ReaderID,
		&details.Card.Created,
		&details.Reader.ID,
		&details.Reader.Name,
		&details.Reader.Email,
	)
	if err != nil {
		return library.HistoryDetails{}, err
	}

	loan, err := library.LoanFromColumns(taken, nullTimePtr(returned))
	if err != nil {
		return library.HistoryDetails{}, err
	}

	details.History.Loan = loan

	return details, nil
}
