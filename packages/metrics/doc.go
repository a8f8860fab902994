// Package metrics exports Prometheus metrics for hitwire.
//
// A single Metrics value observes outgoing client calls (pass it to
// http.WithMetrics) and served requests (pass it to server.WithObserver),
// and serves everything it collected through Handler.
package metrics
