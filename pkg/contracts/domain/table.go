package domain

import (
	"strconv"
	"time"
)

// DateLayout is the wire format for calendar dates in API payloads and exports.
const DateLayout = "2006-01-02"

// ColumnKind classifies the values held by a Column.
type ColumnKind string

const (
	ColumnKindDate   ColumnKind = "date"
	ColumnKindNumber ColumnKind = "number"
	ColumnKindText   ColumnKind = "text"
)

// Column is one named, typed column of a Table.
//
// Exactly one of Dates, Numbers or Texts is populated, selected by Kind.
// For number columns Nulls marks cells that were empty in the source file;
// the matching entry in Numbers is zero.
type Column struct {
	Name    string      `json:"name"`
	Kind    ColumnKind  `json:"kind"`
	Dates   []time.Time `json:"-"`
	Numbers []float64   `json:"-"`
	Nulls   []bool      `json:"-"`
	Texts   []string    `json:"-"`
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case ColumnKindDate:
		return len(c.Dates)
	case ColumnKindNumber:
		return len(c.Numbers)
	default:
		return len(c.Texts)
	}
}

// Value returns the typed value of row i: time.Time, float64, string, or nil
// for an empty number cell.
func (c *Column) Value(i int) interface{} {
	switch c.Kind {
	case ColumnKindDate:
		return c.Dates[i]
	case ColumnKindNumber:
		if c.Nulls[i] {
			return nil
		}
		return c.Numbers[i]
	default:
		return c.Texts[i]
	}
}

// Float returns the numeric value of row i and whether it is present.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != ColumnKindNumber || c.Nulls[i] {
		return 0, false
	}
	return c.Numbers[i], true
}

// Format renders row i as text. Dates use dateLayout, numbers the shortest
// representation that round-trips.
func (c *Column) Format(i int, dateLayout string) string {
	switch c.Kind {
	case ColumnKindDate:
		return c.Dates[i].Format(dateLayout)
	case ColumnKindNumber:
		if c.Nulls[i] {
			return ""
		}
		return strconv.FormatFloat(c.Numbers[i], 'f', -1, 64)
	default:
		return c.Texts[i]
	}
}

// JSONValue is like Value but renders dates as DateLayout strings.
func (c *Column) JSONValue(i int) interface{} {
	if c.Kind == ColumnKindDate {
		return c.Dates[i].Format(DateLayout)
	}
	return c.Value(i)
}

func (c *Column) subset(indices []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case ColumnKindDate:
		out.Dates = make([]time.Time, len(indices))
		for j, i := range indices {
			out.Dates[j] = c.Dates[i]
		}
	case ColumnKindNumber:
		out.Numbers = make([]float64, len(indices))
		out.Nulls = make([]bool, len(indices))
		for j, i := range indices {
			out.Numbers[j] = c.Numbers[i]
			out.Nulls[j] = c.Nulls[i]
		}
	default:
		out.Texts = make([]string, len(indices))
		for j, i := range indices {
			out.Texts[j] = c.Texts[i]
		}
	}
	return out
}

// Table is the normalized, immutable form of an uploaded file.
// Columns keep the header order of the source file.
type Table struct {
	Columns    []Column `json:"columns"`
	DateColumn string   `json:"date_column"`
	KeyColumn  string   `json:"key_column,omitempty"`
	Rows       int      `json:"rows"`
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	return t.Rows
}

// ColumnNames returns the column names in header order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i := range t.Columns {
		names[i] = t.Columns[i].Name
	}
	return names
}

// Column looks up a column by its exact (trimmed) name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Dates returns the values of the date column.
func (t *Table) Dates() []time.Time {
	if c, ok := t.Column(t.DateColumn); ok && c.Kind == ColumnKindDate {
		return c.Dates
	}
	return nil
}

// Select returns a new table containing only the given rows, in the given order.
func (t *Table) Select(indices []int) *Table {
	out := &Table{
		Columns:    make([]Column, len(t.Columns)),
		DateColumn: t.DateColumn,
		KeyColumn:  t.KeyColumn,
		Rows:       len(indices),
	}
	for i := range t.Columns {
		out.Columns[i] = t.Columns[i].subset(indices)
	}
	return out
}

// Without returns a new table without the named columns. The original table
// shares its value slices with the result and must not be modified.
func (t *Table) Without(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := &Table{DateColumn: t.DateColumn, KeyColumn: t.KeyColumn, Rows: t.Rows}
	for _, c := range t.Columns {
		if !drop[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// RowValues returns row i as JSON-friendly values in column order.
func (t *Table) RowValues(i int) []interface{} {
	row := make([]interface{}, len(t.Columns))
	for j := range t.Columns {
		row[j] = t.Columns[j].JSONValue(i)
	}
	return row
}

// RowStrings returns row i formatted as text in column order.
func (t *Table) RowStrings(i int, dateLayout string) []string {
	row := make([]string, len(t.Columns))
	for j := range t.Columns {
		row[j] = t.Columns[j].Format(i, dateLayout)
	}
	return row
}

// FilterCriteria selects rows by key value and an inclusive calendar date range.
// A zero Start or End leaves that side of the range open.
type FilterCriteria struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// MetricSummary aggregates one numeric column.
type MetricSummary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Sum    string  `json:"sum"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// TableSummary describes a table for the dashboard: shape, keys and date range.
type TableSummary struct {
	Columns   []ColumnInfo    `json:"columns"`
	Rows      int             `json:"rows"`
	Keys      []string        `json:"keys,omitempty"`
	FirstDate string          `json:"first_date,omitempty"`
	LastDate  string          `json:"last_date,omitempty"`
	Metrics   []MetricSummary `json:"metrics,omitempty"`
}

// ColumnInfo is the JSON description of a column.
type ColumnInfo struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}
