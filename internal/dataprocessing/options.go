package dataprocessing

import (
	"fmt"
	"strings"
	"time"
)

// DateFormatISO selects ISO 8601 parsing (YYYY-MM-DD, optionally with a time part).
const DateFormatISO = "ISO"

// Fallback encodings tried when the input is not valid UTF-8.
const (
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

// Options configures one ingestion call. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// Delimiter separates fields: ';', ',', '\t' or '|'.
	Delimiter rune
	// DateFormat is a day-first token pattern such as "DD.MM.YYYY" or "DD-MM-YY",
	// or DateFormatISO.
	DateFormat string
	// DateColumn names the column normalized to calendar dates. It is always required.
	DateColumn string
	// KeyColumn holds the product identifier. It is always kept as text so
	// identifiers such as "00123" survive unchanged. It is optional.
	KeyColumn string
	// RequiredColumns must all be present after header trimming.
	RequiredColumns []string
	// DecimalSeparator is '.' or ','.
	DecimalSeparator rune
	// FallbackEncoding is used when the bytes are not valid UTF-8.
	FallbackEncoding string
}

// DefaultOptions returns the options of the SKU performance dashboard export:
// semicolon separated, DD.MM.YYYY dates, five required columns.
func DefaultOptions() Options {
	return Options{
		Delimiter:        ';',
		DateFormat:       "DD.MM.YYYY",
		DateColumn:       "date",
		KeyColumn:        "SKU",
		RequiredColumns:  []string{"date", "SKU", "cost", "NB2Bs", "nB2B CPA"},
		DecimalSeparator: '.',
		FallbackEncoding: EncodingLatin1,
	}
}

// Validate checks that the options can drive an ingestion.
func (o Options) Validate() error {
	switch o.Delimiter {
	case ';', ',', '\t', '|':
	default:
		return fmt.Errorf("%w: unsupported delimiter %q", ErrInvalidOptions, o.Delimiter)
	}
	if _, err := CompileDateFormat(o.DateFormat); err != nil {
		return err
	}
	if strings.TrimSpace(o.DateColumn) == "" {
		return fmt.Errorf("%w: date column name is empty", ErrInvalidOptions)
	}
	switch o.DecimalSeparator {
	case '.', ',':
	default:
		return fmt.Errorf("%w: unsupported decimal separator %q", ErrInvalidOptions, o.DecimalSeparator)
	}
	switch o.FallbackEncoding {
	case EncodingLatin1, EncodingWindows1252:
	default:
		return fmt.Errorf("%w: unsupported fallback encoding %q", ErrInvalidOptions, o.FallbackEncoding)
	}
	return nil
}

// Required returns the required columns with the date column first and
// duplicates removed.
func (o Options) Required() []string {
	seen := map[string]bool{o.DateColumn: true}
	cols := []string{o.DateColumn}
	for _, c := range o.RequiredColumns {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		cols = append(cols, c)
	}
	return cols
}

// Fingerprint identifies the options in cache keys. Two option values with the
// same fingerprint produce the same table from the same bytes.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("%q|%s|%s|%s|%s|%q|%s",
		o.Delimiter, o.DateFormat, o.DateColumn, o.KeyColumn,
		strings.Join(o.Required(), ","), o.DecimalSeparator, o.FallbackEncoding)
}

// DateFormat is a compiled date pattern.
type DateFormat struct {
	Pattern string
	layouts []string
}

// CompileDateFormat translates a day-first token pattern into Go layouts.
// Supported tokens are D/DD (day), M/MM (month), YY and YYYY (year); the
// separators '.', '-', '/' and ' ' are copied literally. Single- and double-digit
// days and months are both accepted when parsing.
func CompileDateFormat(pattern string) (*DateFormat, error) {
	if strings.EqualFold(pattern, DateFormatISO) {
		return &DateFormat{
			Pattern: DateFormatISO,
			layouts: []string{
				"2006-01-02",
				time.RFC3339,
				"2006-01-02T15:04:05",
				"2006-01-02 15:04:05",
			},
		}, nil
	}
	if pattern == "" {
		return nil, fmt.Errorf("%w: date format is empty", ErrInvalidOptions)
	}

	var layout strings.Builder
	var seenDay, seenMonth, seenYear bool
	for i := 0; i < len(pattern); {
		ch := pattern[i]
		j := i
		for j < len(pattern) && pattern[j] == ch {
			j++
		}
		run := pattern[i:j]
		switch {
		case run == "D" || run == "DD":
			layout.WriteString("2")
			seenDay = true
		case run == "M" || run == "MM":
			layout.WriteString("1")
			seenMonth = true
		case run == "YYYY":
			layout.WriteString("2006")
			seenYear = true
		case run == "YY":
			layout.WriteString("06")
			seenYear = true
		case strings.ContainsRune(".-/ ", rune(ch)):
			layout.WriteString(run)
		default:
			return nil, fmt.Errorf("%w: unsupported token %q in date format %q", ErrInvalidOptions, run, pattern)
		}
		i = j
	}
	if !seenDay || !seenMonth || !seenYear {
		return nil, fmt.Errorf("%w: date format %q must contain day, month and year", ErrInvalidOptions, pattern)
	}
	return &DateFormat{Pattern: pattern, layouts: []string{layout.String()}}, nil
}

// Parse converts a cell into a midnight-UTC calendar date.
func (f *DateFormat) Parse(value string) (time.Time, error) {
	var firstErr error
	for _, layout := range f.layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
