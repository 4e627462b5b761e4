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

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveRequest("recherche_besoin", nil)
	m.ObserveRequest("recherche_besoin", errors.New("boom"))
	m.ObserveCache("semantic", true)
	m.ObserveCache("semantic", false)
	m.ObserveCache("semantic", false)
	m.ObserveRetry("embed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("recherche_besoin", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("recherche_besoin", OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("semantic", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayRetries.WithLabelValues("embed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("x", nil)
		m.ObserveSearch(time.Second, 3)
		m.ObserveIndexJob(nil)
		m.Admitted(1)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveDeactivation()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "yukpo_lifecycle_deactivations_total 1")
}
