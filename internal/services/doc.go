// Package services implements the business logic layer of SKU Pulse.
// It sits between the HTTP handlers and the ingestion, cache, session, chart
// and export packages so that handlers only bind requests and render results.
//
// # Available Services
//
//	- DashboardService: upload, table description, SKU list, filtered rows,
//	  summaries, charts, exports and session end
//	- HealthService: liveness, readiness and version information
//
// # Sessions
//
// Every dashboard operation names the caller's session explicitly. Upload
// creates the session when the caller has none; the other operations return
// ErrNoTable until a file has been uploaded.
//
// # Error Handling
//
// Services return wrapped errors. Ingestion errors keep their dataprocessing
// types, and the sentinel errors of this package mark missing tables and
// invalid input. The HTTP layer maps all of them to problem details.
package services
