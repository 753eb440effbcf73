// Package requestid attaches request and correlation identifiers to HTTP
// requests.
//
// Middleware reads X-Request-ID and X-Correlation-ID from the incoming
// request, keeps them when they are short and made of [a-zA-Z0-9_-] only,
// and otherwise generates UUIDv4 values. The IDs are stored in the request
// context and echoed back in the response headers. A request ID is unique
// per request; a correlation ID may be reused by a client across several
// related requests.
//
// LoggerExtractor and CorrelationLoggerExtractor plug into pkg/logger so that
// every log record written with the request context carries the IDs, and
// Lookup matches the extractor signature used by pkg/audit.
//
//	handler := requestid.Middleware(mux)
//
//	log := logger.New(logger.WithContextExtractors(
//		requestid.LoggerExtractor(),
//		requestid.CorrelationLoggerExtractor(),
//	))
package requestid
