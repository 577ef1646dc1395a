package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.ObserveRequest("GET", "/api/item/:id", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)
	m.ObserveTask("step1", nil, time.Second)
	m.ObserveTask("step1", errors.New("boom"), time.Second)
	m.ObserveTask("step1", errors.New("boom"), time.Second)
	m.ObserveProvider("gemini", nil, 120, 30)
	m.ObserveProvider("gemini", errors.New("quota"), 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/item/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("step1", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("step1", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequestsTotal.WithLabelValues("gemini", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.providerTokensTotal.WithLabelValues("gemini", "input")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.providerTokensTotal.WithLabelValues("gemini", "output")))
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.ObserveTask("step2", nil, time.Second)
		m.ObserveProvider("openai", nil, 1, 1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.ObserveTask("step2", nil, time.Second)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `dish_journal_analysis_tasks_total{status="success",task="step2"} 1`)
}
