// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SubmissionStarted()
		m.SubmissionFinished("valid", 1)
		m.ObserveDispatch(time.Second, nil)
		m.HistoryFetchFailed()
		m.ConversationProvisioned()
		m.ObserveRequest("send", 200, time.Millisecond)
	})
}

func TestSubmissionLifecycle(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SubmissionStarted()
	assert.Equal(t, 1.0, value(t, m.SubmissionsInFlight))

	m.SubmissionFinished("exhausted", 5)
	assert.Equal(t, 0.0, value(t, m.SubmissionsInFlight))
	assert.Equal(t, 1.0, value(t, m.SubmissionsTotal.WithLabelValues("exhausted")))
}

func TestObserveDispatchAndRequests(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDispatch(10*time.Millisecond, nil)
	m.ObserveDispatch(10*time.Millisecond, errors.New("boom"))
	m.ObserveRequest("history", 500, time.Millisecond)
	m.ObserveRequest("history", 0, time.Millisecond)
	m.HistoryFetchFailed()

	assert.Equal(t, 1.0, value(t, m.DispatchTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, value(t, m.DispatchTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, value(t, m.RequestsTotal.WithLabelValues("history", "500")))
	assert.Equal(t, 1.0, value(t, m.RequestsTotal.WithLabelValues("history", "error")))
	assert.Equal(t, 1.0, value(t, m.HistoryFetchFailures))
}

func TestNewOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
