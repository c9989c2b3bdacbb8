package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveSubmission("committed")
	m.ObserveSubmission("committed")
	m.ObserveSubmission("pending")
	m.ObserveMessage("prepare", 3)
	m.ObserveMessage("commit", 0)
	m.SetView(2)
	m.SetSequence(7)
	m.SetPending(1)
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveRequest("POST", "/submit", 200, 5*time.Millisecond)
	m.IncRateLimited()

	require.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("committed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("pending")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.messages.WithLabelValues("prepare")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.view))
	require.Equal(t, 7.0, testutil.ToFloat64(m.sequence))
	require.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	require.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/submit", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))

	done := m.RequestStarted()
	require.Equal(t, 1.0, testutil.ToFloat64(m.inflight))
	done()
	require.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveSubmission("committed")
	m.ObserveMessage("prepare", 1)
	m.SetView(1)
	m.SetSequence(1)
	m.SetPending(1)
	m.ObserveCache(true)
	m.ObserveRequest("GET", "/status", 200, time.Second)
	m.IncRateLimited()
	m.RequestStarted()()
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.SetSequence(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "harn_ledger_global_sequence 3"))
}
