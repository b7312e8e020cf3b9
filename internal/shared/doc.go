// Package shared holds helpers used across the SKU Pulse packages that belong
// to no single layer.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and sample dashboard exports (semicolon CSV, Latin-1, XLSX) for
// ingestion and handler tests:
//
//	func TestUpload(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    data := testutil.SampleCSV()
//	    ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
