// Package dataprocessing turns uploaded advertising performance exports into
// normalized tables and answers the questions the dashboard asks of them.
//
// # Ingestion
//
// Ingest takes the raw bytes of a delimited file and an Options value:
//
//	table, err := dataprocessing.Ingest(data, dataprocessing.DefaultOptions())
//	if err != nil {
//	    var schemaErr *dataprocessing.SchemaError
//	    if errors.As(err, &schemaErr) {
//	        // schemaErr.Missing lists the absent columns
//	    }
//	}
//
// The bytes are read as UTF-8 and, when that fails, once more with the
// fallback single-byte charset. Header names are trimmed, the required columns
// are checked and every cell of the date column is parsed with the day-first
// pattern. Failures are reported as DecodingError, SchemaError, DateParseError
// or MalformedTableError, and no table is returned alongside an error.
//
// IngestXLSX does the same for the first sheet of an Excel workbook.
//
// # Filtering and analytics
//
// Filter selects the rows of one SKU within an inclusive date range and
// returns ErrNoData when nothing matches. UniqueValues and DateRange supply the
// choices for the SKU selector and the date picker. Summarize aggregates the
// metric columns.
//
// Functions in this package have no side effects and are safe for concurrent
// use; memoization of ingested tables lives in the cache package.
package dataprocessing
