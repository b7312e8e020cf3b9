package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidOptions reports an unusable ingestion configuration.
	ErrInvalidOptions = errors.New("invalid ingest options")

	// ErrNoData is returned by Filter when no row matches the criteria.
	ErrNoData = errors.New("no data available for the selected SKU and date range")

	// ErrUnknownColumn is returned when an operation names a column the table lacks.
	ErrUnknownColumn = errors.New("unknown column")
)

// DecodingError means the bytes could not be decoded as UTF-8 nor as the
// fallback single-byte encoding.
type DecodingError struct {
	Attempted []string
	// Detected is the charset guessed from the content, if any.
	Detected string
	Reason   string
}

func (e *DecodingError) Error() string {
	msg := fmt.Sprintf("file could not be decoded as %s text", strings.Join(e.Attempted, " or "))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Detected != "" {
		msg += fmt.Sprintf(" (content looks like %s)", e.Detected)
	}
	return msg
}

// SchemaError lists required columns missing from the header.
type SchemaError struct {
	Missing []string
	Found   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("the file is missing these columns: %s", strings.Join(e.Missing, ", "))
}

// DateParseError reports the first date cell that does not match the pattern.
type DateParseError struct {
	Column  string
	Line    int
	Value   string
	Pattern string
	Err     error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("line %d: %s value %q does not match date format %s", e.Line, e.Column, e.Value, e.Pattern)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// MalformedTableError reports a structural problem in the delimited text.
type MalformedTableError struct {
	Line   int
	Reason string
	Err    error
}

func (e *MalformedTableError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed table at line %d: %s", e.Line, e.Reason)
	}
	return "malformed table: " + e.Reason
}

func (e *MalformedTableError) Unwrap() error {
	return e.Err
}

// ErrorKind names the taxonomy class of an ingestion error, for metrics and logs.
func ErrorKind(err error) string {
	var (
		decErr    *DecodingError
		schemaErr *SchemaError
		dateErr   *DateParseError
		malErr    *MalformedTableError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &decErr):
		return "decoding"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &dateErr):
		return "date"
	case errors.As(err, &malErr):
		return "malformed"
	case errors.Is(err, ErrInvalidOptions):
		return "options"
	default:
		return "other"
	}
}
