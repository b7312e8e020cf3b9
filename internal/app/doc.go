// Package app wires the SKU Pulse web server: configuration, logging,
// OpenTelemetry, the table cache and session store, the dashboard and health
// services, the chi router and the HTTP server lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, the optional YAML file and SKUPULSE_* variables
//	2. Initialize the slog logger and OpenTelemetry providers
//	3. Create the table cache, session store and file validator
//	4. Create the dashboard and health services
//	5. Build the router and its middleware chain
//	6. Serve until SIGINT or SIGTERM, then shut down gracefully
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Tests build the application with New and drive Router through httptest.
package app
