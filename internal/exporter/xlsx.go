package exporter

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"skupulse/pkg/contracts/domain"
)

// Built-in number format 14 is the locale short date.
const xlsxDateNumFmt = 14

// WriteXLSX writes table to w as a workbook with one sheet. Dates are Excel
// dates, numbers are numeric cells and empty number cells stay blank.
func (e *Exporter) WriteXLSX(w io.Writer, table *domain.Table, opts Options) error {
	opts = opts.withDefaults()
	out := table.Without(opts.Exclude...)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), opts.SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: xlsxDateNumFmt})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	sw, err := f.NewStreamWriter(opts.SheetName)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}
	if len(out.Columns) > 0 {
		if err := sw.SetColWidth(1, len(out.Columns), 14); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	header := make([]interface{}, len(out.Columns))
	for j, c := range out.Columns {
		header[j] = excelize.Cell{StyleID: headerStyle, Value: c.Name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := 0; i < out.NumRows(); i++ {
		row := make([]interface{}, len(out.Columns))
		for j := range out.Columns {
			c := &out.Columns[j]
			switch c.Kind {
			case domain.ColumnKindDate:
				row[j] = excelize.Cell{StyleID: dateStyle, Value: c.Dates[i]}
			case domain.ColumnKindNumber:
				if v, ok := c.Float(i); ok {
					row[j] = v
				}
			default:
				row[j] = c.Texts[i]
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	e.logger.Debug("xlsx export written",
		slog.Int("rows", out.NumRows()),
		slog.Int("columns", len(out.Columns)))
	return nil
}
