// Package app wires the QuotePulse HTTP service together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, optional YAML file, environment)
//	2. Initialize logging and OpenTelemetry (tracer, meter, Prometheus)
//	3. Build the GDELT, Stooq and Twelve Data clients
//	4. Build the analyzer with the configured date resolver
//	5. Create the analysis, today and health services
//	6. Set up middleware, handlers and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Tests call New with a prepared *config.Config instead.
//
// # Graceful Shutdown
//
// Run waits for SIGINT or SIGTERM, then Stop drains in-flight requests
// within the configured shutdown timeout, stops the runtime collector,
// releases the response caches and flushes the telemetry providers.
// Initialization errors are returned to the caller; the package never
// calls os.Exit.
package app
