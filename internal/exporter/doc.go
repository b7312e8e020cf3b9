// Package exporter writes filtered dashboard tables for download.
//
// CSV output keeps the column order of the uploaded file, renders dates as
// YYYY-MM-DD and can start with a UTF-8 BOM so spreadsheet programs pick the
// right encoding. XLSX output writes a single sheet with real date and number
// cells.
//
//	exp := exporter.New(logger)
//	err := exp.Write(w, table, exporter.FormatXLSX, exporter.Options{})
package exporter
