package dataprocessing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"skupulse/pkg/contracts/domain"
)

// Summarize describes a table: its columns, row count, distinct keys, date
// range and, for each requested metric column, count, sum, mean, min and max
// over the non-empty cells. With no metric columns given every number column
// is summarized.
func Summarize(table *domain.Table, metricColumns ...string) (*domain.TableSummary, error) {
	summary := &domain.TableSummary{
		Rows:    table.NumRows(),
		Columns: make([]domain.ColumnInfo, len(table.Columns)),
	}
	for i, c := range table.Columns {
		summary.Columns[i] = domain.ColumnInfo{Name: c.Name, Kind: c.Kind}
	}

	if table.HasColumn(KeyColumn(table)) {
		keys, err := UniqueValues(table, KeyColumn(table))
		if err != nil {
			return nil, err
		}
		summary.Keys = keys
	}
	if first, last, ok := DateRange(table); ok {
		summary.FirstDate = first.Format(domain.DateLayout)
		summary.LastDate = last.Format(domain.DateLayout)
	}

	if len(metricColumns) == 0 {
		metricColumns = MetricColumns(table)
	}
	for _, name := range metricColumns {
		m, err := SummarizeColumn(table, name)
		if err != nil {
			return nil, err
		}
		summary.Metrics = append(summary.Metrics, *m)
	}
	return summary, nil
}

// SummarizeColumn aggregates one number column. Sums are exact decimal sums of
// the parsed values.
func SummarizeColumn(table *domain.Table, name string) (*domain.MetricSummary, error) {
	col, ok := table.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	if col.Kind != domain.ColumnKindNumber {
		return nil, fmt.Errorf("column %q is %s, not a number column", name, col.Kind)
	}

	m := &domain.MetricSummary{Column: name, Min: math.Inf(1), Max: math.Inf(-1)}
	sum := decimal.Zero
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		m.Count++
		sum = sum.Add(decimal.NewFromFloat(v))
		m.Min = math.Min(m.Min, v)
		m.Max = math.Max(m.Max, v)
	}
	m.Sum = sum.String()
	if m.Count == 0 {
		m.Min, m.Max = 0, 0
		return m, nil
	}
	m.Mean, _ = sum.Div(decimal.NewFromInt(int64(m.Count))).Float64()
	return m, nil
}
