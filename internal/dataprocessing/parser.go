package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"skupulse/pkg/contracts/domain"
)

// Format identifies the container of an uploaded file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromName picks the format by file extension. Anything that is not a
// workbook is treated as delimited text.
func FormatFromName(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// IngestAs dispatches to Ingest or IngestXLSX.
func IngestAs(format Format, data []byte, opts Options) (*domain.Table, error) {
	if format == FormatXLSX {
		return IngestXLSX(data, opts)
	}
	return Ingest(data, opts)
}

// Ingest decodes, parses and normalizes delimited text into a Table.
// It either returns a complete table or one of DecodingError, SchemaError,
// DateParseError or MalformedTableError; there are no partial results.
func Ingest(data []byte, opts Options) (*domain.Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dateFormat, _ := CompileDateFormat(opts.DateFormat)

	decoded, err := Decode(data, opts.FallbackEncoding)
	if err != nil {
		return nil, err
	}
	slog.Debug("decoded upload",
		slog.String("encoding", decoded.Encoding),
		slog.Int("bytes", len(data)))

	header, records, lines, err := readDelimited(decoded.Text, opts.Delimiter)
	if err != nil {
		return nil, err
	}
	return buildTable(header, records, lines, opts, dateFormat, nil)
}

// IngestXLSX reads the first worksheet of a workbook and normalizes it the same
// way as Ingest. Date cells stored as Excel serial numbers are converted
// directly; text date cells go through the configured pattern.
func IngestXLSX(data []byte, opts Options) (*domain.Table, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dateFormat, _ := CompileDateFormat(opts.DateFormat)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedTableError{Reason: "not a readable xlsx workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &MalformedTableError{Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &MalformedTableError{Reason: "failed to read sheet " + sheets[0], Err: err}
	}
	slog.Debug("read workbook",
		slog.String("sheet", sheets[0]),
		slog.Int("rows", len(rows)))

	if len(rows) == 0 {
		return nil, &MalformedTableError{Reason: "file is empty"}
	}
	header := rows[0]
	var records [][]string
	var lines []int
	for i, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		if len(row) > len(header) {
			return nil, &MalformedTableError{
				Line:   i + 2,
				Reason: fmt.Sprintf("row has %d cells but header has %d", len(row), len(header)),
			}
		}
		// GetRows drops trailing empty cells.
		padded := make([]string, len(header))
		copy(padded, row)
		records = append(records, padded)
		lines = append(lines, i+2)
	}
	return buildTable(header, records, lines, opts, dateFormat, excelSerialDate)
}

// IngestFile is a convenience for command line use.
func IngestFile(name string, data []byte, opts Options) (*domain.Table, error) {
	return IngestAs(FormatFromName(name), data, opts)
}

func readDelimited(text string, delimiter rune) ([]string, [][]string, []int, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, nil, &MalformedTableError{Reason: "file is empty"}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delimiter
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if err != nil {
		return nil, nil, nil, malformed(err)
	}

	var records [][]string
	var lines []int
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, malformed(err)
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return header, records, lines, nil
}

func malformed(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		reason := parseErr.Err.Error()
		if errors.Is(parseErr.Err, csv.ErrFieldCount) {
			reason = "row has a different number of fields than the header"
		}
		return &MalformedTableError{Line: parseErr.Line, Reason: reason, Err: err}
	}
	return &MalformedTableError{Reason: err.Error(), Err: err}
}

// normalizeHeader trims names, names blank headers by position and rejects
// duplicates.
func normalizeHeader(raw []string) ([]string, error) {
	names := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("Column_%d", i+1)
		}
		if seen[name] {
			return nil, &MalformedTableError{Line: 1, Reason: fmt.Sprintf("duplicate column name %q", name)}
		}
		seen[name] = true
		names[i] = name
	}
	return names, nil
}

type serialDateFunc func(cell string) (time.Time, bool)

func buildTable(rawHeader []string, records [][]string, lines []int, opts Options,
	dateFormat *DateFormat, serial serialDateFunc) (*domain.Table, error) {
	header, err := normalizeHeader(rawHeader)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range opts.Required() {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Found: header}
	}

	table := &domain.Table{
		Columns:    make([]domain.Column, len(header)),
		DateColumn: opts.DateColumn,
		KeyColumn:  opts.KeyColumn,
		Rows:       len(records),
	}
	for j, name := range header {
		cells := make([]string, len(records))
		for i, rec := range records {
			cells[i] = strings.TrimSpace(rec[j])
		}
		if name == opts.DateColumn {
			col, err := dateColumn(name, cells, lines, dateFormat, serial)
			if err != nil {
				return nil, err
			}
			table.Columns[j] = col
			continue
		}
		if name == opts.KeyColumn {
			table.Columns[j] = domain.Column{Name: name, Kind: domain.ColumnKindText, Texts: cells}
			continue
		}
		table.Columns[j] = inferColumn(name, cells, opts.DecimalSeparator)
	}
	return table, nil
}

func dateColumn(name string, cells []string, lines []int, format *DateFormat, serial serialDateFunc) (domain.Column, error) {
	dates := make([]time.Time, len(cells))
	for i, cell := range cells {
		if serial != nil {
			if t, ok := serial(cell); ok {
				dates[i] = t
				continue
			}
		}
		t, err := format.Parse(cell)
		if err != nil {
			return domain.Column{}, &DateParseError{
				Column:  name,
				Line:    lines[i],
				Value:   cell,
				Pattern: format.Pattern,
				Err:     err,
			}
		}
		dates[i] = t
	}
	return domain.Column{Name: name, Kind: domain.ColumnKindDate, Dates: dates}, nil
}

// inferColumn makes a number column when every non-empty cell parses as a
// float, otherwise a text column.
func inferColumn(name string, cells []string, decimal rune) domain.Column {
	numbers := make([]float64, len(cells))
	nulls := make([]bool, len(cells))
	for i, cell := range cells {
		if cell == "" {
			nulls[i] = true
			continue
		}
		v, ok := parseNumber(cell, decimal)
		if !ok {
			return domain.Column{Name: name, Kind: domain.ColumnKindText, Texts: cells}
		}
		numbers[i] = v
	}
	return domain.Column{Name: name, Kind: domain.ColumnKindNumber, Numbers: numbers, Nulls: nulls}
}

func parseNumber(cell string, decimal rune) (float64, bool) {
	if decimal == ',' {
		cell = strings.Replace(cell, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func excelSerialDate(cell string) (time.Time, bool) {
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || v <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(v, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
