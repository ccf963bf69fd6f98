package reportexport_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AntonStoeckl/library-history-go/library"
	"github.com/AntonStoeckl/library-history-go/reportexport"
	"github.com/AntonStoeckl/library-history-go/statistics"
	. "github.com/AntonStoeckl/library-history-go/testutil/helper" //nolint:revive
)

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	return f
}

func Test_WriteJSON_IsIndented(t *testing.T) {
	// arrange
	var buf bytes.Buffer

	// act
	err := reportexport.WriteJSON(&buf, []statistics.ReaderActivity{{ReaderID: 1, ReaderName: "Jon Snow", BorrowCount: 3}})

	// assert
	require.NoError(t, err)
	assert.Equal(t, `[
  {
    "ReaderID": 1,
    "ReaderName": "Jon Snow",
    "BorrowCount": 3
  }
]
`, buf.String())
}

func Test_WriteJSON_EmptyResultIsAnEmptyArray(t *testing.T) {
	var buf bytes.Buffer

	err := reportexport.WriteJSON(&buf, []library.Reader{})

	require.NoError(t, err)
	assert.Equal(t, "[]\n", buf.String())
}

func Test_WriteXLSX_PopularBooks(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	books := []statistics.PopularBook{
		{Book: library.Book{ID: 7, Title: "Dune", Author: "Frank Herbert", Year: 1965}, BorrowCount: 4},
		{Book: library.Book{ID: 3, Title: "A song of ice and fire", Author: "Jon Snow", Year: 1996}, BorrowCount: 2},
	}

	// act
	err := reportexport.WriteXLSX(&buf, reportexport.PopularBooksSheet(books))

	// assert
	require.NoError(t, err)

	f := openWorkbook(t, buf.Bytes())
	assert.Equal(t, []string{"Popular books"}, f.GetSheetList())

	rows, err := f.GetRows("Popular books")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Rank", "Book ID", "Title", "Author", "Year", "Borrowed"},
		{"1", "7", "Dune", "Frank Herbert", "1965", "4"},
		{"2", "3", "A song of ice and fire", "Jon Snow", "1996", "2"},
	}, rows)

	styleID, err := f.GetCellStyle("Popular books", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	width, err := f.GetColWidth("Popular books", "C")
	require.NoError(t, err)
	assert.InDelta(t, 24.0, width, 0.01, "wide enough for the longest title")
}

func Test_WriteXLSX_MultipleSheetsKeepTheirOrder(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	readers := []library.Reader{{ID: 1, Name: "Jon Snow", Email: "jon_snow@epam.com"}}
	activity := []statistics.ReaderActivity{{ReaderID: 1, ReaderName: "Jon Snow", BorrowCount: 2}}

	// act
	err := reportexport.WriteXLSX(&buf,
		reportexport.ReadersSheet("Non-returners", readers),
		reportexport.ReaderActivitySheet(activity, Day(0), Day(10)),
		reportexport.DueDateSheet(7, Day(14)),
	)

	// assert
	require.NoError(t, err)

	f := openWorkbook(t, buf.Bytes())
	assert.Equal(t, []string{"Non-returners", "Readers 2025-03-01 - 2025-03-11", "Due date"}, f.GetSheetList())

	rows, err := f.GetRows("Due date")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Book ID", "Due"}, {"7", "2025-03-15T10:00:00Z"}}, rows)
}

func Test_WriteXLSX_EmptyReportHasOnlyTheHeader(t *testing.T) {
	var buf bytes.Buffer

	err := reportexport.WriteXLSX(&buf, reportexport.ReadersSheet("Non-returners", nil))

	require.NoError(t, err)
	rows, err := openWorkbook(t, buf.Bytes()).GetRows("Non-returners")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Reader ID", "Name", "Email"}}, rows)
}

func Test_WriteXLSX_RejectsUnnamedSheets(t *testing.T) {
	var buf bytes.Buffer

	err := reportexport.WriteXLSX(&buf, reportexport.Sheet{Headers: []string{"A"}})

	assert.ErrorIs(t, err, reportexport.ErrEmptySheetName)
}
