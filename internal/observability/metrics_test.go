package observability

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP("/optimize-prompt", http.MethodPost, http.StatusOK, 10*time.Millisecond)
	m.ObserveUpstream("generate_content", http.StatusOK, 200*time.Millisecond)
	m.IncOptimization("clarity")
	m.IncStreamCancelled()
	m.IncHistoryFailure()

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	for _, want := range []string{
		`promptlab_http_requests_total{method="POST",route="/optimize-prompt",status="200"} 1`,
		`promptlab_upstream_requests_total{endpoint="generate_content",status="200"} 1`,
		`promptlab_optimizations_total{mode="clarity"} 1`,
		`promptlab_stream_cancelled_total 1`,
		`promptlab_history_write_failures_total 1`,
	} {
		assert.Contains(t, string(body), want)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveHTTP("/", http.MethodGet, http.StatusOK, time.Millisecond)
		m.ObserveUpstream("models", http.StatusOK, time.Millisecond)
		m.IncOptimization("")
		m.IncStreamCancelled()
		m.IncHistoryFailure()
	})
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "WARN")

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
