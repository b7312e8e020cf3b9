// Package files discovers performance exports on disk for batch ingestion
// and names the files written for them.
//
// Example usage:
//
//	discovery := files.NewDiscovery(".", []string{".csv", ".tsv", ".xlsx"})
//	tables, err := discovery.FindTables("exports")
//	for _, f := range tables {
//	    out := files.OutputPath("reports", f.Path, "filtered", ".csv")
//	    ...
//	}
package files
