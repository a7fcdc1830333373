package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramCount(t *testing.T, labels ...string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, httpDuration.WithLabelValues(labels...).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestPrometheusMetrics_LabelsByRoute(t *testing.T) {
	const svc = "metrics-route"
	router := productRouter(PrometheusMetrics(svc), http.StatusOK)

	for _, id := range []string{"1", "2", "3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/console/products/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(httpRequests.WithLabelValues(svc, http.MethodGet, "/console/products/{id}", "200")))
	assert.Equal(t, uint64(3), histogramCount(t, svc, http.MethodGet, "/console/products/{id}"))
}

func TestPrometheusMetrics_StatusLabel(t *testing.T) {
	const svc = "metrics-status"
	router := productRouter(PrometheusMetrics(svc), http.StatusServiceUnavailable)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/console/products/9", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues(svc, http.MethodGet, "/console/products/{id}", "503")))
	assert.Zero(t, testutil.ToFloat64(httpRequests.WithLabelValues(svc, http.MethodGet, "/console/products/{id}", "200")))
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	const svc = "metrics-unmatched"
	router := productRouter(PrometheusMetrics(svc), http.StatusOK)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/.env", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(httpRequests.WithLabelValues(svc, http.MethodGet, unmatchedRoute, "404")))
}

func TestPrometheusMetrics_InFlight(t *testing.T) {
	const svc = "metrics-inflight"
	var during float64
	handler := PrometheusMetrics(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(httpInFlight.WithLabelValues(svc))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1.0, during)
	assert.Zero(t, testutil.ToFloat64(httpInFlight.WithLabelValues(svc)))
}

func TestPrometheusMetrics_Exposed(t *testing.T) {
	productRouter(PrometheusMetrics("metrics-exposed"), http.StatusOK).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/console/products/1", nil))

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer,
		"console_http_requests_total",
		"console_http_request_duration_seconds",
		"console_http_requests_in_flight",
	)
	require.NoError(t, err)
	assert.Positive(t, n)
}
