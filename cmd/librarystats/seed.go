package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/services/readers"
)

type seedOptions struct {
	books   int
	readers int
	loans   int
	seed    uint64
	start   string
}

func newSeedCmd(a *app) *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with a reproducible demo borrowing history",
		Long: `Creates books, readers with one card each, and a history of loans.
The same --seed always produces the same history. Loans are taken and returned in time order
starting at --start; a book that is out when it is picked again is returned first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := time.Parse(dateLayout, opts.start)
			if err != nil {
				return errors.Join(library.ErrInvalidRange, fmt.Errorf("--start: %w", err))
			}

			stats, err := a.seed(cmd.Context(), opts, start)
			if err != nil {
				return err
			}

			a.ok("seeded %d books, %d readers, %d checkouts and %d returns", opts.books, opts.readers, stats.checkouts, stats.returns)

			return nil
		},
	}

	cmd.Flags().IntVar(&opts.books, "books", 20, "Number of books")
	cmd.Flags().IntVar(&opts.readers, "readers", 10, "Number of readers")
	cmd.Flags().IntVar(&opts.loans, "loans", 100, "Number of checkouts to attempt")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&opts.start, "start", "2025-01-01", "Day of the first loan (YYYY-MM-DD)")

	return cmd
}

type seedStats struct {
	checkouts int
	returns   int
}

func (a *app) seed(ctx context.Context, opts seedOptions, start time.Time) (seedStats, error) {
	if opts.books < 1 || opts.readers < 1 || opts.loans < 0 {
		return seedStats{}, errors.Join(library.ErrInvalidRange, errors.New("need at least one book and one reader"))
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed)) //nolint:gosec
	clock := start

	bookIDs := make([]library.BookID, 0, opts.books)
	for i := 1; i <= opts.books; i++ {
		book, err := a.books.Create(ctx, library.Book{
			Title:  fmt.Sprintf("Book %d", i),
			Author: fmt.Sprintf("Author %d", rng.IntN(max(opts.books/3, 1))+1),
			Year:   1950 + rng.IntN(75),
		})
		if err != nil {
			return seedStats{}, err
		}

		bookIDs = append(bookIDs, book.ID)
	}

	cardIDs := make([]library.CardID, 0, opts.readers)
	for i := 1; i <= opts.readers; i++ {
		reader, err := a.readers.Create(ctx, readers.ReaderWithProfile{
			Reader:  library.Reader{Name: fmt.Sprintf("Reader %d", i), Email: fmt.Sprintf("reader%d@library.example", i)},
			Profile: &library.ReaderProfile{Address: fmt.Sprintf("%d Library Lane", i)},
		})
		if err != nil {
			return seedStats{}, err
		}

		card, err := a.readers.IssueCard(ctx, reader.Reader.ID, clock)
		if err != nil {
			return seedStats{}, err
		}

		cardIDs = append(cardIDs, card.ID)
	}

	stats := seedStats{}

	for range opts.loans {
		clock = clock.Add(time.Duration(1+rng.IntN(48)) * time.Hour)
		bookID := bookIDs[rng.IntN(len(bookIDs))]
		cardID := cardIDs[rng.IntN(len(cardIDs))]

		_, err := a.lending.CheckOut(ctx, bookID, cardID, clock)
		if errors.Is(err, library.ErrBookAlreadyLent) {
			if _, err = a.lending.ReturnBook(ctx, bookID, clock); err != nil {
				return stats, err
			}

			stats.returns++

			continue
		}

		if err != nil {
			return stats, err
		}

		stats.checkouts++
	}

	return stats, nil
}
