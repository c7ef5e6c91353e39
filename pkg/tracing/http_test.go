package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddleware_SkipsProbesAndUsesRouteNames(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware("relay-service", "/health", "/metrics"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/forwarded/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/health", "/api/v1/forwarded/1234", "/api/v1/forwarded/5678"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "GET /api/v1/forwarded/:id", s.Name())
	}
}

func TestPathFilter(t *testing.T) {
	filter := pathFilter([]string{"/metrics"})

	assert.False(t, filter(httptest.NewRequest(http.MethodGet, "/metrics", nil)))
	assert.True(t, filter(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)))
	assert.True(t, pathFilter(nil)(httptest.NewRequest(http.MethodGet, "/metrics", nil)))
}
