// Package http implements the HTTP handlers of the QuotePulse service.
// Handlers stay thin: they parse and validate the request, call a service
// and render the result. Errors are handed to the shared
// errors.ErrorHandler, which maps them to RFC 7807 problem details.
//
// # Routes
//
//	POST /api/analyze          {"quote": "..."} -> analysis report (JSON)
//	GET  /api/analyze?q=...    analysis report as indented JSON in an HTML <pre>
//	GET  /api/analyze/export   ?q=...&format=csv|xlsx -> price window download
//	GET  /api/today[?force=1]  recent headlines and intraday closes
//	GET  /api/health           overall health
//	GET  /api/health/live      liveness
//	GET  /api/health/ready     readiness (503 when a dependency is not ready)
//	GET  /api/version          build information
//
// Every analysis and snapshot response carries "Cache-Control: no-store".
//
// # Handler Structure
//
// Each handler owns a Routes method returning a chi.Router that the
// application mounts under its prefix:
//
//	r.Mount("/api/analyze", analysisHandler.Routes())
//	r.Mount("/api/today", todayHandler.Routes())
//
// Services are consumed through the small interfaces in
// service_interfaces.go so tests can substitute testify mocks.
package http
