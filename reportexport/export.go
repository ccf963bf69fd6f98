// Package reportexport renders reports as JSON or as Excel workbooks.
package reportexport

import (
	"errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xuri/excelize/v2"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/statistics"
)

const (
	defaultSheet     = "Sheet1"
	defaultColWidth  = 15.0
	maxColWidth      = 60.0
	headerFillColor  = "#E0E0E0"
	dateLayout       = "2006-01-02"
	timestampLayout  = time.RFC3339
	columnWidthSlack = 2
)

// ErrEmptySheetName is returned for a sheet without a name.
var ErrEmptySheetName = errors.New("sheet name must not be empty")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sheet is one table of a workbook. The first row of the sheet holds the headers.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	if _, err = w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json: %w", err)
	}

	return nil
}

// WriteXLSX writes the sheets as one workbook, in the given order.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("new style: %w", err)
	}

	for i, sheet := range sheets {
		if sheet.Name == "" {
			return ErrEmptySheetName
		}

		if i == 0 {
			err = f.SetSheetName(defaultSheet, sheet.Name)
		} else {
			_, err = f.NewSheet(sheet.Name)
		}

		if err != nil {
			return fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}

		if err = fillSheet(f, sheet, headerStyle); err != nil {
			return fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}

	if _, err = f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}

	return nil
}

func fillSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	if len(sheet.Headers) == 0 {
		return nil
	}

	if err := f.SetSheetRow(sheet.Name, "A1", &sheet.Headers); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		if err = f.SetSheetRow(sheet.Name, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}

	lastHeader, err := excelize.CoordinatesToCellName(len(sheet.Headers), 1)
	if err != nil {
		return err
	}

	if err = f.SetCellStyle(sheet.Name, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, width := range columnWidths(sheet) {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}

		if err = f.SetColWidth(sheet.Name, col, col, width); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}

	return nil
}

// columnWidths sizes each column to its longest value, within [defaultColWidth, maxColWidth].
func columnWidths(sheet Sheet) []float64 {
	widths := make([]float64, len(sheet.Headers))

	grow := func(col int, value any) {
		if col >= len(widths) {
			return
		}

		widths[col] = max(widths[col], float64(len([]rune(fmt.Sprint(value)))+columnWidthSlack))
	}

	for col, header := range sheet.Headers {
		grow(col, header)
	}

	for _, row := range sheet.Rows {
		for col, value := range row {
			grow(col, value)
		}
	}

	for i := range widths {
		widths[i] = min(max(widths[i], defaultColWidth), maxColWidth)
	}

	return widths
}

// PopularBooksSheet tabulates the MostPopularBooks report.
func PopularBooksSheet(books []statistics.PopularBook) Sheet {
	rows := make([][]any, 0, len(books))
	for i, b := range books {
		rows = append(rows, []any{i + 1, b.Book.ID, b.Book.Title, b.Book.Author, b.Book.Year, b.BorrowCount})
	}

	return Sheet{
		Name:    "Popular books",
		Headers: []string{"Rank", "Book ID", "Title", "Author", "Year", "Borrowed"},
		Rows:    rows,
	}
}

// ReaderActivitySheet tabulates the ReadersWhoTookTheMostBooks report.
func ReaderActivitySheet(readers []statistics.ReaderActivity, from, to time.Time) Sheet {
	rows := make([][]any, 0, len(readers))
	for i, r := range readers {
		rows = append(rows, []any{i + 1, r.ReaderID, r.ReaderName, r.BorrowCount})
	}

	return Sheet{
		Name:    fmt.Sprintf("Readers %s - %s", from.Format(dateLayout), to.Format(dateLayout)),
		Headers: []string{"Rank", "Reader ID", "Name", "Books taken"},
		Rows:    rows,
	}
}

// ReadersSheet tabulates a list of readers, e.g. the ReadersThatDontReturnBooks report.
func ReadersSheet(name string, readers []library.Reader) Sheet {
	rows := make([][]any, 0, len(readers))
	for _, r := range readers {
		rows = append(rows, []any{r.ID, r.Name, r.Email})
	}

	return Sheet{
		Name:    name,
		Headers: []string{"Reader ID", "Name", "Email"},
		Rows:    rows,
	}
}

// DueDateSheet tabulates the BookReturningDate report of one book.
func DueDateSheet(bookID library.BookID, due time.Time) Sheet {
	return Sheet{
		Name:    "Due date",
		Headers: []string{"Book ID", "Due"},
		Rows:    [][]any{{bookID, due.UTC().Format(timestampLayout)}},
	}
}
