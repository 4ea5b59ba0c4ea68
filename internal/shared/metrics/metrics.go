package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	generationStarted   = newLabeledCounter()
	generationCompleted = newLabeledCounter()
	generationFailed    = newLabeledCounter()
	lateResultsIgnored  atomic.Uint64

	creditsReserved     atomic.Uint64
	creditsGranted      atomic.Uint64
	creditsInsufficient atomic.Uint64

	jobsReceived             atomic.Uint64
	jobsDeletedUnrecoverable atomic.Uint64

	generationDuration = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 180000})
)

// IncGenerationStarted counts a generation attempt of the given kind.
func IncGenerationStarted(kind string) { generationStarted.Inc(kind) }

// IncGenerationCompleted counts a successful generation of the given kind.
func IncGenerationCompleted(kind string) { generationCompleted.Inc(kind) }

// IncGenerationFailed counts a failed or timed out generation.
func IncGenerationFailed(kind string) { generationFailed.Inc(kind) }

// IncLateResultIgnored counts generation results discarded because the item moved on.
func IncLateResultIgnored() { lateResultsIgnored.Add(1) }

// IncCreditsReserved counts successful reservations.
func IncCreditsReserved() { creditsReserved.Add(1) }

// AddCreditsGranted adds granted credits.
func AddCreditsGranted(n int) {
	if n > 0 {
		creditsGranted.Add(uint64(n))
	}
}

// IncCreditsInsufficient counts rejected reservations.
func IncCreditsInsufficient() { creditsInsufficient.Add(1) }

// IncJobsReceived counts queue messages received by the worker.
func IncJobsReceived() { jobsReceived.Add(1) }

// IncJobsDeletedUnrecoverable counts messages dropped because they cannot be parsed.
func IncJobsDeletedUnrecoverable() { jobsDeletedUnrecoverable.Add(1) }

// ObserveGenerationDurationMs records a generation duration in milliseconds.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeled(&buf, "generation_started_total", "Generation attempts started", "kind", generationStarted.Snapshot())
	writeLabeled(&buf, "generation_completed_total", "Generation attempts completed", "kind", generationCompleted.Snapshot())
	writeLabeled(&buf, "generation_failed_total", "Generation attempts failed", "kind", generationFailed.Snapshot())
	writeCounter(&buf, "generation_late_results_ignored_total", "Generation results discarded after the item moved on", lateResultsIgnored.Load())
	writeCounter(&buf, "credits_reserved_total", "Credits reserved for admitted requests", creditsReserved.Load())
	writeCounter(&buf, "credits_granted_total", "Credits granted", creditsGranted.Load())
	writeCounter(&buf, "credits_insufficient_total", "Reservations rejected for insufficient credits", creditsInsufficient.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Queue messages received", jobsReceived.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Queue messages dropped as unrecoverable", jobsDeletedUnrecoverable.Load())
	writeHistogram(&buf, "generation_duration_ms", "Generation duration in milliseconds", generationDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{buckets: buckets, counts: make([]uint64, len(buckets))}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeled(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
