// Package readers registers readers, their profiles, and their loan cards.
package readers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/statistics"
)

// Reporter is the part of the statistics engine the readers service needs.
type Reporter interface {
	ReadersThatDontReturnBooks(ctx context.Context) ([]library.Reader, error)
	ReadersWhoTookTheMostBooks(ctx context.Context, count int, from, to time.Time) ([]statistics.ReaderActivity, error)
}

// ReaderWithProfile is a reader together with its optional profile.
type ReaderWithProfile struct {
	Reader  library.Reader
	Profile *library.ReaderProfile
}

// Service manages readers and the aggregates hanging off them.
type Service struct {
	uowFactory library.UnitOfWorkFactory
	reporter   Reporter
}

// NewService creates a readers Service.
func NewService(uowFactory library.UnitOfWorkFactory, reporter Reporter) Service {
	return Service{uowFactory: uowFactory, reporter: reporter}
}

// Create stores the reader and, if given, its profile. The profile needs the reader's generated id,
// so the two are saved one after the other; a failed profile save removes the reader again.
func (s Service) Create(ctx context.Context, in ReaderWithProfile) (ReaderWithProfile, error) {
	reader := in.Reader
	if err := reader.Validate(); err != nil {
		return ReaderWithProfile{}, err
	}

	uow := s.uowFactory.NewUnitOfWork()
	uow.Readers().Add(&reader)

	if _, err := uow.SaveChanges(ctx); err != nil {
		return ReaderWithProfile{}, err
	}

	if in.Profile == nil {
		return ReaderWithProfile{Reader: reader}, nil
	}

	profile := *in.Profile
	profile.ReaderID = reader.ID

	if err := profile.Validate(); err != nil {
		return ReaderWithProfile{}, errors.Join(err, s.removeReader(ctx, reader.ID))
	}

	uow.ReaderProfiles().Add(&profile)

	if _, err := uow.SaveChanges(ctx); err != nil {
		uow.Discard()
		return ReaderWithProfile{}, errors.Join(err, s.removeReader(ctx, reader.ID))
	}

	return ReaderWithProfile{Reader: reader, Profile: &profile}, nil
}

func (s Service) removeReader(ctx context.Context, id library.ReaderID) error {
	uow := s.uowFactory.NewUnitOfWork()
	uow.Readers().DeleteByID(id)

	if _, err := uow.SaveChanges(ctx); err != nil {
		return fmt.Errorf("removing reader %d after a failed profile save: %w", id, err)
	}

	return nil
}

// Get returns the reader with its profile, if any. It returns ErrNotFound for an unknown id.
func (s Service) Get(ctx context.Context, id library.ReaderID) (ReaderWithProfile, error) {
	uow := s.uowFactory.NewUnitOfWork()

	reader, err := uow.Readers().FindByID(ctx, id)
	if err != nil {
		return ReaderWithProfile{}, err
	}

	profile, err := s.findProfile(ctx, uow, id)
	if err != nil {
		return ReaderWithProfile{}, err
	}

	return ReaderWithProfile{Reader: reader, Profile: profile}, nil
}

func (s Service) findProfile(ctx context.Context, uow library.UnitOfWork, readerID library.ReaderID) (*library.ReaderProfile, error) {
	profiles, err := library.Collect(uow.ReaderProfiles().FindByCondition(
		ctx,
		library.AllOf(library.Eq(library.FieldProfileReaderID, readerID)),
	))
	if err != nil {
		return nil, err
	}

	if len(profiles) == 0 {
		return nil, nil
	}

	return &profiles[0], nil
}

// List returns all readers ordered by id.
func (s Service) List(ctx context.Context) ([]library.Reader, error) {
	return library.Collect(s.uowFactory.NewUnitOfWork().Readers().FindAll(ctx))
}

// Update replaces the stored reader. It returns ErrNotFound if the reader does not exist.
func (s Service) Update(ctx context.Context, reader library.Reader) error {
	if err := reader.Validate(); err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork()
	uow.Readers().Update(reader)

	_, err := uow.SaveChanges(ctx)
	if errors.Is(err, library.ErrConcurrencyConflict) {
		return errors.Join(library.ErrNotFound, fmt.Errorf("reader %d", reader.ID))
	}

	return err
}

// Delete removes the reader and its profile. A reader who was issued a card cannot be deleted.
func (s Service) Delete(ctx context.Context, id library.ReaderID) error {
	uow := s.uowFactory.NewUnitOfWork()
	uow.Readers().DeleteByID(id)

	_, err := uow.SaveChanges(ctx)

	return err
}

// UpsertProfile creates the reader's profile or replaces the existing one.
func (s Service) UpsertProfile(ctx context.Context, profile library.ReaderProfile) (library.ReaderProfile, error) {
	if err := profile.Validate(); err != nil {
		return library.ReaderProfile{}, err
	}

	uow := s.uowFactory.NewUnitOfWork()

	if _, err := uow.Readers().FindByID(ctx, profile.ReaderID); err != nil {
		return library.ReaderProfile{}, err
	}

	existing, err := s.findProfile(ctx, uow, profile.ReaderID)
	if err != nil {
		return library.ReaderProfile{}, err
	}

	if existing != nil {
		profile.ID = existing.ID
		uow.ReaderProfiles().Update(profile)
	} else {
		profile.ID = 0
		uow.ReaderProfiles().Add(&profile)
	}

	if _, err := uow.SaveChanges(ctx); err != nil {
		return library.ReaderProfile{}, err
	}

	return profile, nil
}

// IssueCard issues a new loan card to the reader.
func (s Service) IssueCard(ctx context.Context, readerID library.ReaderID, at time.Time) (library.Card, error) {
	uow := s.uowFactory.NewUnitOfWork()

	if _, err := uow.Readers().FindByID(ctx, readerID); err != nil {
		return library.Card{}, err
	}

	card := library.Card{ReaderID: readerID, Created: at}
	if err := card.Validate(); err != nil {
		return library.Card{}, err
	}

	uow.Cards().Add(&card)

	if _, err := uow.SaveChanges(ctx); err != nil {
		return library.Card{}, err
	}

	return card, nil
}

// Cards returns the cards issued to the reader.
func (s Service) Cards(ctx context.Context, readerID library.ReaderID) ([]library.Card, error) {
	return library.Collect(s.uowFactory.NewUnitOfWork().Cards().FindByCondition(
		ctx,
		library.AllOf(library.Eq(library.FieldCardReaderID, readerID)),
	))
}

// DontReturnBooks lists the readers currently holding at least one book.
func (s Service) DontReturnBooks(ctx context.Context) ([]library.Reader, error) {
	return s.reporter.ReadersThatDontReturnBooks(ctx)
}

// MostActive ranks readers by the loans they completed inside [from, to].
func (s Service) MostActive(ctx context.Context, count int, from, to time.Time) ([]statistics.ReaderActivity, error) {
	return s.reporter.ReadersWhoTookTheMostBooks(ctx, count, from, to)
}
