// Package stats aggregates client call latencies.
//
// A Recorder is passed to an http client with http.WithRecorder and keeps
// an HDR histogram of successful call latencies plus total and error
// counts. Summary reports min, max, mean and the p50/p90/p95/p99
// percentiles along with the observed request rate.
package stats
