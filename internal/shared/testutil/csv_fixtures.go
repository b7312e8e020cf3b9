package testutil

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// SampleHeader is the header of the dashboard export used across tests.
var SampleHeader = []string{"date", "SKU", "cost", "NB2Bs", "nB2B CPA"}

// SampleRows holds ten records for two SKUs over five days. The A-100 row of
// 04.03.2024 has an empty nB2B CPA cell.
var SampleRows = [][]string{
	{"01.03.2024", "A-100", "10.5", "2", "5.25"},
	{"02.03.2024", "A-100", "12", "3", "4"},
	{"03.03.2024", "A-100", "8", "1", "8"},
	{"04.03.2024", "A-100", "9.5", "0", ""},
	{"05.03.2024", "A-100", "11", "2", "5.5"},
	{"01.03.2024", "B-200", "20", "4", "5"},
	{"02.03.2024", "B-200", "22", "2", "11"},
	{"03.03.2024", "B-200", "18", "3", "6"},
	{"04.03.2024", "B-200", "25", "5", "5"},
	{"05.03.2024", "B-200", "21", "3", "7"},
}

// SampleCSV returns the sample export as semicolon separated UTF-8.
func SampleCSV() []byte {
	return []byte(JoinCSV(";", SampleHeader, SampleRows))
}

// JoinCSV renders a header and rows with the given delimiter. Cells are not quoted.
func JoinCSV(delimiter string, header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, delimiter))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(strings.Join(row, delimiter))
		b.WriteString("\n")
	}
	return b.String()
}

// Latin1 re-encodes UTF-8 text as ISO-8859-1. Characters outside Latin-1 fail the test.
func Latin1(t *testing.T, text string) []byte {
	t.Helper()
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode latin1: %v", err)
	}
	return out
}

// SampleXLSX returns the sample export as a workbook. Dates are stored as
// real Excel dates, metrics as numbers.
func SampleXLSX(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for j, h := range SampleHeader {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for i, row := range SampleRows {
		for j, v := range row {
			if v == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			var value interface{} = v
			switch j {
			case 0:
				d, err := time.Parse("02.01.2006", v)
				if err != nil {
					t.Fatalf("fixture date %q: %v", v, err)
				}
				value = d
			case 2, 3, 4:
				value = mustFloat(t, v)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				t.Fatalf("set cell %s: %v", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func mustFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("fixture number %q: %v", s, err)
	}
	return v
}
