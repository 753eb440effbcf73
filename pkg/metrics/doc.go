// Package metrics defines the metrics sink consumed by the control plane guards
// and a Prometheus-backed implementation of it.
//
// Guards depend only on the Sink interface:
//
//	type Sink interface {
//		IncrementCounter(name string, labels Labels)
//		RecordHistogram(name string, value float64, labels Labels)
//	}
//
// Recording never fails from the caller's point of view. Implementations swallow
// registration and label errors (logging them) so that observability problems
// can never block a protected operation.
//
// # Prometheus
//
//	sink := metrics.NewPrometheus(
//		metrics.WithNamespace("controlplane"),
//		metrics.WithLogger(log),
//	)
//	r.Handle("/metrics", sink.Handler())
//
// Vectors are registered lazily on first use of a metric name. The label set seen
// on first use fixes the label names for that metric; later calls with a
// different label set are dropped and logged.
//
// # HTTP middleware
//
// Middleware records http_requests_total and http_request_duration_seconds for
// every request, labelled by method, chi route pattern and status code.
package metrics
