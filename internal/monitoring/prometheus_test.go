package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(m.MetricsMiddleware())
	router.GET("/clients/", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/clients/", "/clients/", "/broken", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/clients/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiErrorsTotal.WithLabelValues("/broken", "server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiErrorsTotal.WithLabelValues("unmatched", "client_error")))
}

func TestRecordOperations(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordStoreOperation("assets", "create", time.Millisecond, nil)
	m.RecordStoreOperation("assets", "get", time.Millisecond, errors.New("boom"))
	m.RecordUpstreamRequest("alpha_vantage", 20*time.Millisecond, nil)
	m.SetDBConnections(5, 2, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("assets", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOperations.WithLabelValues("assets", "get", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamRequests.WithLabelValues("alpha_vantage", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.dbConnections.WithLabelValues("in_use")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordUpstreamRequest("yahoo_finance", time.Millisecond, nil)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `quote_upstream_requests_total{status="ok",upstream="yahoo_finance"} 1`)
}
