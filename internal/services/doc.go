// Package services orchestrates QuotePulse requests between the HTTP layer,
// the upstream clients and the alignment core.
//
// # Available Services
//
//	- AnalysisService: quote -> GDELT phrase query -> earliest article ->
//	  daily SPY reaction. Response cache (ristretto), coalescing of identical
//	  in-flight queries (singleflight), a refusing GDELT throttle, and
//	  concurrent upstream fetches (errgroup).
//	- TodayService: recent headlines plus today's intraday bars, cached.
//	- HealthService: liveness, readiness probes and build information.
//
// # Error Handling
//
// Failures of the alignment itself are returned as *alignment.Failure.
// Everything around it (throttling, broken upstream payloads, network
// errors) is a *ServiceError with an ErrorKind. Both carry debug context
// that the transport layer renders into problem details.
package services
