package dataprocessing

import (
	"fmt"
	"time"

	"skupulse/pkg/contracts/domain"
)

// DefaultKeyColumn is used for tables that do not name a key column.
const DefaultKeyColumn = "SKU"

// KeyColumn returns the column Filter matches FilterCriteria.Key against.
func KeyColumn(table *domain.Table) string {
	if table.KeyColumn != "" {
		return table.KeyColumn
	}
	return DefaultKeyColumn
}

// Filter returns the rows whose key column equals criteria.Key and whose date
// lies within [Start, End], compared by calendar date. An empty Key matches
// every row; a zero bound is open. When nothing matches the error is ErrNoData.
func Filter(table *domain.Table, criteria domain.FilterCriteria) (*domain.Table, error) {
	keyColumn := KeyColumn(table)
	dates := table.Dates()
	if dates == nil && table.NumRows() > 0 {
		return nil, fmt.Errorf("%w: date column %q", ErrUnknownColumn, table.DateColumn)
	}

	var keys *domain.Column
	if criteria.Key != "" {
		col, ok := table.Column(keyColumn)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, keyColumn)
		}
		keys = col
	}

	start := truncateDay(criteria.Start)
	end := truncateDay(criteria.End)

	var indices []int
	for i := 0; i < table.NumRows(); i++ {
		if keys != nil && keys.Format(i, domain.DateLayout) != criteria.Key {
			continue
		}
		d := dates[i]
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		indices = append(indices, i)
	}
	if len(indices) == 0 {
		return nil, ErrNoData
	}
	return table.Select(indices), nil
}

// UniqueValues lists the distinct values of a column in order of first appearance.
func UniqueValues(table *domain.Table, column string) ([]string, error) {
	col, ok := table.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	seen := make(map[string]bool)
	var values []string
	for i := 0; i < col.Len(); i++ {
		v := col.Format(i, domain.DateLayout)
		if seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values, nil
}

// DateRange returns the earliest and latest date of the table. ok is false for
// an empty table.
func DateRange(table *domain.Table) (first, last time.Time, ok bool) {
	dates := table.Dates()
	if len(dates) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

// MetricColumns returns the number columns of the table, in header order.
func MetricColumns(table *domain.Table) []string {
	var names []string
	for _, c := range table.Columns {
		if c.Kind == domain.ColumnKindNumber {
			names = append(names, c.Name)
		}
	}
	return names
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
