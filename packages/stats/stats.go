package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are tracked in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// Recorder aggregates call latencies into an HDR histogram.
// It satisfies http.Recorder and is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	total     atomic.Int64
	errors    atomic.Int64
	start     time.Time
	now       func() time.Time
}

// Summary is a point-in-time view of a Recorder.
type Summary struct {
	Total   int64
	Errors  int64
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
	P50     time.Duration
	P90     time.Duration
	P95     time.Duration
	P99     time.Duration
	Elapsed time.Duration
	RPS     float64
}

// ErrorRate returns the share of failed calls, between 0 and 1.
func (s Summary) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Total)
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return newRecorder(time.Now)
}

func newRecorder(now func() time.Time) *Recorder {
	return &Recorder{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs),
		start:     now(),
		now:       now,
	}
}

// Record adds one call. Failed calls count as errors and are not part of
// the latency distribution.
func (r *Recorder) Record(d time.Duration, err error) {
	r.total.Add(1)
	if err != nil {
		r.errors.Add(1)
		return
	}

	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	r.mu.Lock()
	_ = r.histogram.RecordValue(us)
	r.mu.Unlock()
}

// Percentile returns the latency at quantile q (0-100).
func (r *Recorder) Percentile(q float64) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return usToDuration(r.histogram.ValueAtQuantile(q))
}

// Summary returns the current totals and percentiles.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	h := r.histogram
	s := Summary{
		Total:  r.total.Load(),
		Errors: r.errors.Load(),
		P50:    usToDuration(h.ValueAtQuantile(50)),
		P90:    usToDuration(h.ValueAtQuantile(90)),
		P95:    usToDuration(h.ValueAtQuantile(95)),
		P99:    usToDuration(h.ValueAtQuantile(99)),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
	}
	if h.TotalCount() > 0 {
		s.Min = usToDuration(h.Min())
		s.Max = usToDuration(h.Max())
	}
	r.mu.Unlock()

	s.Elapsed = r.now().Sub(r.start)
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.RPS = float64(s.Total) / secs
	}
	return s
}

// Reset clears all recorded values and restarts the clock.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.histogram.Reset()
	r.start = r.now()
	r.mu.Unlock()
	r.total.Store(0)
	r.errors.Store(0)
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
