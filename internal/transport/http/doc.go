// Package http implements the HTTP handlers for the SKU Pulse dashboard.
// Handlers are a thin layer between the chi router and the service layer:
// they bind and validate request parameters, call a service and render the
// result as JSON or as a file. Every failure is passed to the shared
// ErrorHandler, which turns it into an RFC 7807 problem response.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Cache / Session Store
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Routes
//
//	GET    /                   upload page
//	POST   /api/uploads        multipart upload (field "file", optional "delimiter", "date_format")
//	GET    /api/table          metadata of the session's table
//	GET    /api/table/skus     distinct SKUs
//	GET    /api/table/rows     filtered rows (sku, start, end)
//	GET    /api/table/summary  per-metric aggregates of the filtered rows
//	GET    /api/table/chart    chart of the filtered rows (format=png|svg|json)
//	GET    /api/table/export   download of the filtered rows (format=csv|xlsx)
//	DELETE /api/session        drop the session and its table
//	GET    /api/health         health, /live and /ready probes
//	GET    /api/version        build information
//
// # Sessions
//
// The session is identified by the session cookie or the X-Session-ID
// header. An upload without a session starts one and sets the cookie.
//
// # Testing
//
// Handlers depend on the DashboardServiceInterface and HealthServiceInterface
// so tests can substitute testify mocks and drive them with httptest.
package http
