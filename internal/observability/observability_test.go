package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceHeaders(t *testing.T) {
	assert.Empty(t, TraceHeaders(context.Background(), ""))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	assert.Equal(t, map[string]string{
		HeaderRequestID: "r1",
		HeaderTraceID:   "4bf92f3577b34da6a3ce929d0e0e4736",
	}, TraceHeaders(ctx, "r1"))
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", IPFromRequest(req))
}

func TestObservePublishCountsResult(t *testing.T) {
	before := testutil.ToFloat64(envelopesPublishedTotal.WithLabelValues("noop", "error"))
	ObservePublish("noop", 2, assert.AnError)
	assert.Equal(t, before+1, testutil.ToFloat64(envelopesPublishedTotal.WithLabelValues("noop", "error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "204"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/ping", "204")))
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "envelope-service", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
