// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics provides Prometheus metrics for docchat.
//
// Metrics are registered on an injected prometheus.Registerer so tests can use
// a private registry. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for docchat.
type Metrics struct {
	// Submission metrics
	SubmissionsTotal       *prometheus.CounterVec
	SubmissionAttempts     prometheus.Histogram
	SubmissionsInFlight    prometheus.Gauge
	ConversationsProvision prometheus.Counter

	// Remote service metrics
	DispatchTotal        *prometheus.CounterVec
	DispatchDuration     prometheus.Histogram
	HistoryFetchFailures prometheus.Counter
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.SubmissionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_submissions_total",
			Help: "Total number of submissions by terminal outcome",
		},
		[]string{"outcome"},
	)

	m.SubmissionAttempts = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_submission_attempts",
			Help:    "Number of dispatch attempts per submission",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	m.SubmissionsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "docchat_submissions_in_flight",
			Help: "Number of submissions currently running",
		},
	)

	m.ConversationsProvision = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_conversations_provisioned_total",
			Help: "Total number of conversations created on first send",
		},
	)

	m.DispatchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_dispatch_total",
			Help: "Total number of prompt dispatches by result",
		},
		[]string{"result"},
	)

	m.DispatchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_dispatch_duration_seconds",
			Help:    "Duration of prompt dispatches in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	m.HistoryFetchFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_history_fetch_failures_total",
			Help: "Total number of failed conversation history fetches",
		},
	)

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_http_requests_total",
			Help: "Total number of HTTP requests to the assistant service",
		},
		[]string{"endpoint", "code"},
	)

	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the assistant service in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	return m
}

// SubmissionStarted increments the in-flight gauge.
func (m *Metrics) SubmissionStarted() {
	if m == nil {
		return
	}
	m.SubmissionsInFlight.Inc()
}

// SubmissionFinished records a terminal outcome and decrements the in-flight gauge.
func (m *Metrics) SubmissionFinished(outcome string, attempts int) {
	if m == nil {
		return
	}
	m.SubmissionsInFlight.Dec()
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		m.SubmissionAttempts.Observe(float64(attempts))
	}
}

// ObserveDispatch records one prompt dispatch.
func (m *Metrics) ObserveDispatch(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.DispatchTotal.WithLabelValues(result).Inc()
	m.DispatchDuration.Observe(d.Seconds())
}

// HistoryFetchFailed counts a failed history fetch.
func (m *Metrics) HistoryFetchFailed() {
	if m == nil {
		return
	}
	m.HistoryFetchFailures.Inc()
}

// ConversationProvisioned counts a conversation created on first send.
func (m *Metrics) ConversationProvisioned() {
	if m == nil {
		return
	}
	m.ConversationsProvision.Inc()
}

// ObserveRequest records one HTTP request. A status of 0 means the request
// never got a response.
func (m *Metrics) ObserveRequest(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(endpoint, code).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
