package service

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_registrationMtc = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainvote_registration_seconds",
			Help:    "Voter and candidate registration latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"kind", "result"},
	)
	_voteStepMtc = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainvote_vote_steps_total",
			Help: "Vote confirmation steps received by step and result.",
		},
		[]string{"step", "result"},
	)
	_countingMtc = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chainvote_vote_count_update_seconds",
		Help:    "Latency of cached vote count updates.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(_registrationMtc, _voteStepMtc, _countingMtc)
}

// OperationMetrics contains timing information for an operation
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	Failures       int       `json:"failures"`
	ProcessingTime int64     `json:"processing_time_ms"`
}

// MetricsResponse provides the metrics for all operations
type MetricsResponse struct {
	Registration OperationMetrics `json:"registration"`
	Voting       OperationMetrics `json:"voting"`
	Counting     OperationMetrics `json:"counting"`
}

// MetricsCollector keeps a per process summary of each operation next to the
// Prometheus series
type MetricsCollector struct {
	mu           sync.RWMutex
	registration OperationMetrics
	voting       OperationMetrics
	counting     OperationMetrics
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRegistration records a voter or candidate registration
func (mc *MetricsCollector) RecordRegistration(kind string, start time.Time, err error) {
	d := time.Since(start)
	_registrationMtc.WithLabelValues(kind, result(err)).Observe(d.Seconds())
	mc.record(&mc.registration, start, d, err)
}

// RecordVoteStep records a confirmation step reported by a voter
func (mc *MetricsCollector) RecordVoteStep(step int, start time.Time, err error) {
	_voteStepMtc.WithLabelValues(strconv.Itoa(step), result(err)).Inc()
	mc.record(&mc.voting, start, time.Since(start), err)
}

// RecordCounting records a cached vote count update
func (mc *MetricsCollector) RecordCounting(start time.Time, err error) {
	d := time.Since(start)
	_countingMtc.Observe(d.Seconds())
	mc.record(&mc.counting, start, d, err)
}

func (mc *MetricsCollector) record(op *OperationMetrics, start time.Time, d time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if op.Count == 0 && op.Failures == 0 {
		op.StartTime = start
	}
	op.EndTime = start.Add(d)
	if err != nil {
		op.Failures++
		return
	}
	op.Count++
	op.ProcessingTime += d.Milliseconds()
}

// GetMetrics returns current metrics for all operations
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsResponse{
		Registration: mc.registration,
		Voting:       mc.voting,
		Counting:     mc.counting,
	}
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.registration = OperationMetrics{}
	mc.voting = OperationMetrics{}
	mc.counting = OperationMetrics{}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
