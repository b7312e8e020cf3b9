package exporter

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"skupulse/pkg/contracts/domain"
)

// Format is a download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv and xlsx; the empty string means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// formatCell renders one cell for CSV output. precision < 0 keeps the shortest
// exact representation of numbers.
func formatCell(c *domain.Column, i int, dateLayout string, precision int) string {
	if c.Kind != domain.ColumnKindNumber || precision < 0 {
		return c.Format(i, dateLayout)
	}
	v, ok := c.Float(i)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}
