package library

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Field names double as column names of the SQL stores.
const (
	FieldID = "id"

	FieldBookTitle  = "title"
	FieldBookAuthor = "author"
	FieldBookYear   = "year"

	FieldReaderName  = "name"
	FieldReaderEmail = "email"

	FieldProfileReaderID = "reader_id"
	FieldProfileAddress  = "address"
	FieldProfilePhone    = "phone"

	FieldCardReaderID = "reader_id"
	FieldCardCreated  = "created"

	FieldHistoryBookID     = "book_id"
	FieldHistoryCardID     = "card_id"
	FieldHistoryTakeDate   = "take_date"
	FieldHistoryReturnDate = "return_date"
)

type (
	BookID    = int64
	ReaderID  = int64
	CardID    = int64
	HistoryID = int64
)

var validate = validator.New()

// Book is a title in the library's catalog.
type Book struct {
	ID     BookID
	Title  string `validate:"required"`
	Author string `validate:"required"`
	Year   int    `validate:"gte=1,lte=9999"`
}

// Reader is a registered library user.
type Reader struct {
	ID    ReaderID
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
}

// ReaderProfile holds a reader's contact details, at most one per reader.
type ReaderProfile struct {
	ID       int64
	ReaderID ReaderID `validate:"gt=0"`
	Address  string
	Phone    string
}

// Card is the loan card issued to a reader; every borrow event is booked on a card.
type Card struct {
	ID       CardID
	ReaderID ReaderID `validate:"gt=0"`
	Created  time.Time
}

// History is one borrow event of a book on a card.
type History struct {
	ID     HistoryID
	BookID BookID `validate:"gt=0"`
	CardID CardID `validate:"gt=0"`
	Loan   Loan   `validate:"-"`
}

// HistoryDetails is a History row joined with its Book, Card, and the Card's Reader.
type HistoryDetails struct {
	History History
	Book    Book
	Card    Card
	Reader  Reader
}

// Validate checks the Book invariants.
func (b Book) Validate() error {
	return validateStruct(b)
}

// Validate checks the Reader invariants.
func (r Reader) Validate() error {
	return validateStruct(r)
}

// Validate checks the ReaderProfile invariants.
func (p ReaderProfile) Validate() error {
	return validateStruct(p)
}

// Validate checks the Card invariants.
func (c Card) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	if c.Created.IsZero() {
		return errors.Join(ErrInvalidEntity, errors.New("card created timestamp must be set"))
	}

	return nil
}

// Validate checks the History invariants, including the loan dates.
func (h History) Validate() error {
	if err := validateStruct(h); err != nil {
		return err
	}

	switch loan := h.Loan.(type) {
	case nil:
		return errors.Join(ErrInvalidEntity, errors.New("history has no loan"))
	case ReturnedLoan:
		if loan.Returned.Before(loan.Taken) {
			return errors.Join(ErrInvalidEntity, errors.New("return date is before take date"))
		}
	}

	if h.Loan.TakenAt().IsZero() {
		return errors.Join(ErrInvalidEntity, errors.New("take date must be set"))
	}

	return nil
}

func validateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return errors.Join(ErrInvalidEntity, err)
	}

	return nil
}

// Fields returns the Book's column values.
func (b Book) Fields() map[string]any {
	return map[string]any{
		FieldID:         b.ID,
		FieldBookTitle:  b.Title,
		FieldBookAuthor: b.Author,
		FieldBookYear:   b.Year,
	}
}

// Fields returns the Reader's column values.
func (r Reader) Fields() map[string]any {
	return map[string]any{
		FieldID:          r.ID,
		FieldReaderName:  r.Name,
		FieldReaderEmail: r.Email,
	}
}

// Fields returns the ReaderProfile's column values.
func (p ReaderProfile) Fields() map[string]any {
	return map[string]any{
		FieldID:              p.ID,
		FieldProfileReaderID: p.ReaderID,
		FieldProfileAddress:  p.Address,
		FieldProfilePhone:    p.Phone,
	}
}

// Fields returns the Card's column values.
func (c Card) Fields() map[string]any {
	return map[string]any{
		FieldID:           c.ID,
		FieldCardReaderID: c.ReaderID,
		FieldCardCreated:  c.Created,
	}
}

// Fields returns the History's column values; an active loan has a nil return date.
func (h History) Fields() map[string]any {
	fields := map[string]any{
		FieldID:                h.ID,
		FieldHistoryBookID:     h.BookID,
		FieldHistoryCardID:     h.CardID,
		FieldHistoryReturnDate: nil,
	}

	if h.Loan != nil {
		fields[FieldHistoryTakeDate] = h.Loan.TakenAt()
		if returned, ok := ReturnedAt(h.Loan); ok {
			fields[FieldHistoryReturnDate] = returned
		}
	}

	return fields
}
