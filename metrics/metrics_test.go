package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFunction("get_products", OutcomeSuccess, 10*time.Millisecond)
	m.ObserveFunction("get_products", "validation", time.Millisecond)
	m.ObserveStoreCall("read", nil, time.Millisecond)
	m.ObserveStoreCall("read", errors.New("x"), time.Millisecond)
	m.ObserveRank("keyword", nil)
	m.ObserveRateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FunctionCalls.WithLabelValues("get_products", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FunctionCalls.WithLabelValues("get_products", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreCalls.WithLabelValues("read", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RankCalls.WithLabelValues("keyword", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefn_function_calls_total")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFunction("f", "success", time.Second)
		m.ObserveStoreCall("read", nil, time.Second)
		m.ObserveRank("p", nil)
		m.ObserveRateLimited()
	})
}
