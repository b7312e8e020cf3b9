package exporter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"skupulse/pkg/contracts/domain"
)

// Options configures an export.
type Options struct {
	// Delimiter separates CSV fields. Zero means ','.
	Delimiter rune
	// BOMPrefix starts CSV output with a UTF-8 BOM for Excel.
	BOMPrefix bool
	// DateLayout formats date cells in CSV output. Empty means YYYY-MM-DD.
	DateLayout string
	// Precision fixes the number of decimals in CSV output. nil or a
	// negative value keeps the shortest exact form.
	Precision *int
	// Exclude lists columns left out of the export.
	Exclude []string
	// SheetName names the XLSX worksheet. Empty means "Data".
	SheetName string
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.DateLayout == "" {
		o.DateLayout = domain.DateLayout
	}
	if o.SheetName == "" {
		o.SheetName = "Data"
	}
	return o
}

func (o Options) precision() int {
	if o.Precision == nil {
		return -1
	}
	return *o.Precision
}

// Exporter writes tables as CSV or XLSX.
type Exporter struct {
	logger *slog.Logger
}

// New creates an exporter.
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger.With(slog.String("component", "exporter"))}
}

// Write exports table to w in the given format.
func (e *Exporter) Write(w io.Writer, table *domain.Table, format Format, opts Options) error {
	switch format {
	case FormatCSV:
		return e.WriteCSV(w, table, opts)
	case FormatXLSX:
		return e.WriteXLSX(w, table, opts)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes the header and every row of table to w.
func (e *Exporter) WriteCSV(w io.Writer, table *domain.Table, opts Options) error {
	opts = opts.withDefaults()
	out := table.Without(opts.Exclude...)

	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	writer.Comma = opts.Delimiter
	if err := writer.Write(out.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(out.Columns))
	for i := 0; i < out.NumRows(); i++ {
		for j := range out.Columns {
			record[j] = formatCell(&out.Columns[j], i, opts.DateLayout, opts.precision())
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	e.logger.Debug("csv export written",
		slog.Int("rows", out.NumRows()),
		slog.Int("columns", len(out.Columns)))
	return nil
}

// WriteFile exports table to path, creating parent directories. The format
// comes from the file extension.
func (e *Exporter) WriteFile(path string, table *domain.Table, opts Options) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	buf := bufio.NewWriter(file)
	if err := e.Write(buf, table, format, opts); err != nil {
		file.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	e.logger.Info("export written",
		slog.String("file_path", path),
		slog.String("format", string(format)),
		slog.Int("rows", table.NumRows()))
	return file.Close()
}
