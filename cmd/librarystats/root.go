package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/library/postgresengine"
	"github.com/AntonStoeckl/library-history-go/reportexport"
	"github.com/AntonStoeckl/library-history-go/services/books"
)

const (
	formatJSON = "json"
	formatXLSX = "xlsx"

	dateLayout = "2006-01-02"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "librarystats",
		Short: "Borrowing-history reports and lending commands for the library database",
		Long: `librarystats reads the library's borrowing history and answers the standard questions:
which books are popular, which readers read the most, who holds books, and when a book is due.

Reports are printed as JSON or written as an Excel workbook (--format xlsx --output report.xlsx).
Configuration comes from config.yaml and LIBRARY_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flagConfig, "config", "", "Config file path (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().StringVar(&a.flagFormat, "format", formatJSON, "Output format: json or xlsx")
	root.PersistentFlags().StringVarP(&a.flagOutput, "output", "o", "", "Output file (default: stdout; required for xlsx)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "schema" {
			return nil
		}

		switch a.flagFormat {
		case formatJSON:
		case formatXLSX:
			if a.flagOutput == "" {
				return errors.New("--format xlsx needs --output")
			}
		default:
			return fmt.Errorf("unknown format %q, want json or xlsx", a.flagFormat)
		}

		return a.wire(cmd.Context())
	}

	root.AddCommand(
		newPopularBooksCmd(a),
		newTopReadersCmd(a),
		newNonReturnersCmd(a),
		newDueDateCmd(a),
		newCheckoutCmd(a),
		newCheckinCmd(a),
		newBooksCmd(a),
		newReadersCmd(a),
		newSeedCmd(a),
		newSchemaCmd(),
	)

	return root
}

func newPopularBooksCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "popular-books",
		Short: "Books ranked by how often they were borrowed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.engine.MostPopularBooks(cmd.Context(), count)
			if err != nil {
				return err
			}

			return a.emit(result, reportexport.PopularBooksSheet(result))
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of books")

	return cmd
}

func newTopReadersCmd(a *app) *cobra.Command {
	var (
		count    int
		fromFlag string
		toFlag   string
	)

	cmd := &cobra.Command{
		Use:   "top-readers",
		Short: "Readers ranked by the loans they completed inside a date range",
		Long: `Counts the loans taken on or after --from and returned on or before the end of the day --to.
Dates are calendar days in UTC (YYYY-MM-DD).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, to, err := parseWindow(fromFlag, toFlag)
			if err != nil {
				return err
			}

			result, err := a.engine.ReadersWhoTookTheMostBooks(cmd.Context(), count, from, to)
			if err != nil {
				return err
			}

			return a.emit(result, reportexport.ReaderActivitySheet(result, from, to))
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "Number of readers")
	cmd.Flags().StringVar(&fromFlag, "from", "", "First day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Last day of the range (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newNonReturnersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "non-returners",
		Short: "Readers currently holding at least one book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.engine.ReadersThatDontReturnBooks(cmd.Context())
			if err != nil {
				return err
			}

			return a.emit(result, reportexport.ReadersSheet("Non-returners", result))
		},
	}
}

func newDueDateCmd(a *app) *cobra.Command {
	var bookID int64

	cmd := &cobra.Command{
		Use:   "due-date",
		Short: "When the current loan of a book is due",
		RunE: func(cmd *cobra.Command, _ []string) error {
			due, err := a.lending.DueDate(cmd.Context(), bookID)
			if err != nil {
				return err
			}

			return a.emit(dueDate{BookID: bookID, Due: due}, reportexport.DueDateSheet(bookID, due))
		},
	}

	cmd.Flags().Int64Var(&bookID, "book", 0, "Book ID")
	_ = cmd.MarkFlagRequired("book")

	return cmd
}

func newCheckoutCmd(a *app) *cobra.Command {
	var (
		bookID int64
		cardID int64
		atFlag string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Lend a book on a reader's card",
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := a.parseInstant(atFlag)
			if err != nil {
				return err
			}

			history, err := a.lending.CheckOut(cmd.Context(), bookID, cardID, at)
			if err != nil {
				return err
			}

			a.ok("book %d checked out on card %d (loan %d)", bookID, cardID, history.ID)

			return nil
		},
	}

	cmd.Flags().Int64Var(&bookID, "book", 0, "Book ID")
	cmd.Flags().Int64Var(&cardID, "card", 0, "Card ID")
	cmd.Flags().StringVar(&atFlag, "at", "", "Checkout time (RFC 3339, default: now)")
	_ = cmd.MarkFlagRequired("book")
	_ = cmd.MarkFlagRequired("card")

	return cmd
}

func newCheckinCmd(a *app) *cobra.Command {
	var (
		historyID int64
		bookID    int64
		atFlag    string
	)

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Take a book back, by loan (--history) or by book (--book)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := a.parseInstant(atFlag)
			if err != nil {
				return err
			}

			var history library.History

			switch {
			case historyID != 0:
				history, err = a.lending.Return(cmd.Context(), historyID, at)
			case bookID != 0:
				history, err = a.lending.ReturnBook(cmd.Context(), bookID, at)
			default:
				err = errors.New("checkin needs --history or --book")
			}

			if err != nil {
				return err
			}

			a.ok("book %d returned (loan %d)", history.BookID, history.ID)

			return nil
		},
	}

	cmd.Flags().Int64Var(&historyID, "history", 0, "Loan (history) ID")
	cmd.Flags().Int64Var(&bookID, "book", 0, "Book ID")
	cmd.Flags().StringVar(&atFlag, "at", "", "Return time (RFC 3339, default: now)")
	cmd.MarkFlagsMutuallyExclusive("history", "book")

	return cmd
}

func newBooksCmd(a *app) *cobra.Command {
	var filter books.BookFilter

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the catalog, optionally filtered by --author and --year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				result []library.Book
				err    error
			)

			if filter.Author == "" && filter.Year == 0 {
				result, err = a.books.List(cmd.Context())
			} else {
				result, err = a.books.Filter(cmd.Context(), filter)
			}

			if err != nil {
				return err
			}

			return a.emit(result, booksSheet(result))
		},
	}

	cmd.Flags().StringVar(&filter.Author, "author", "", "Author")
	cmd.Flags().IntVar(&filter.Year, "year", 0, "Publication year")

	return cmd
}

func newReadersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "readers",
		Short: "List all registered readers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.readers.List(cmd.Context())
			if err != nil {
				return err
			}

			return a.emit(result, reportexport.ReadersSheet("Readers", result))
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), postgresengine.PostgresSchema)
			return err
		},
	}
}

type dueDate struct {
	BookID library.BookID `json:"book_id"`
	Due    time.Time      `json:"due"`
}

func booksSheet(result []library.Book) reportexport.Sheet {
	rows := make([][]any, 0, len(result))
	for _, b := range result {
		rows = append(rows, []any{b.ID, b.Title, b.Author, b.Year})
	}

	return reportexport.Sheet{Name: "Books", Headers: []string{"Book ID", "Title", "Author", "Year"}, Rows: rows}
}

// emit writes the report in the selected format.
func (a *app) emit(v any, sheet reportexport.Sheet) error {
	w := a.stdout

	if a.flagOutput != "" {
		f, err := os.Create(a.flagOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()

		w = f
	}

	if a.flagFormat == formatXLSX {
		return reportexport.WriteXLSX(w, sheet)
	}

	return reportexport.WriteJSON(w, v)
}

func (a *app) ok(format string, args ...any) {
	_, _ = fmt.Fprintln(a.stdout, color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func (a *app) parseInstant(value string) (time.Time, error) {
	if value == "" {
		return a.now().UTC(), nil
	}

	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.Join(library.ErrInvalidRange, fmt.Errorf("--at: %w", err))
	}

	return at.UTC(), nil
}

// parseWindow turns two calendar days into an inclusive [start of from, end of to] range.
func parseWindow(fromFlag, toFlag string) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, fromFlag)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Join(library.ErrInvalidRange, fmt.Errorf("--from: %w", err))
	}

	to, err := time.Parse(dateLayout, toFlag)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Join(library.ErrInvalidRange, fmt.Errorf("--to: %w", err))
	}

	return from, to.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
