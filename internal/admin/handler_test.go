package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duplicator/internal/config"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/pkg/health"
)

type fakeRelay struct {
	stats     relay.Stats
	forwarded map[string]bool
}

func (f *fakeRelay) Stats() relay.Stats        { return f.stats }
func (f *fakeRelay) Forwarded(id string) bool { return f.forwarded[id] }

func newTestRouter(t *testing.T, registry *health.CheckerRegistry, opts ...Option) *gin.Engine {
	t.Helper()
	r := &fakeRelay{
		stats:     relay.Stats{CacheSize: 2, CacheCapacity: 2000, Recorded: 2, Rejected: 1},
		forwarded: map[string]bool{"m1": true},
	}
	h := NewHandler(r, registry, "discord", logger.NopLogger(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, &config.Config{}, h, logger.NopLogger())
}

func doGet(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		check  func(context.Context) error
		code   int
		status health.Status
	}{
		{"healthy", func(context.Context) error { return nil }, http.StatusOK, health.StatusHealthy},
		{"degraded", func(context.Context) error { return health.ErrDegraded }, http.StatusOK, health.StatusDegraded},
		{"unhealthy", func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable, health.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := health.NewCheckerRegistry()
			registry.Register(health.NewCheckFunc("source", tt.check))

			w := doGet(newTestRouter(t, registry), "/health")
			assert.Equal(t, tt.code, w.Code)

			var body health.Health
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestGetStats(t *testing.T) {
	r := newTestRouter(t, health.NewCheckerRegistry(), WithBreakerState(func() string { return "closed" }))

	w := doGet(r, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "discord", body.Source)
	assert.Equal(t, "closed", body.CircuitBreaker)
	assert.Equal(t, 2000, body.Relay.CacheCapacity)
	assert.Equal(t, int64(2), body.Relay.Recorded)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetForwarded(t *testing.T) {
	r := newTestRouter(t, health.NewCheckerRegistry())

	w := doGet(r, "/api/v1/forwarded/m1")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doGet(r, "/api/v1/forwarded/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error_code"])
}

func TestMetricsEndpoint(t *testing.T) {
	w := doGet(newTestRouter(t, health.NewCheckerRegistry()), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
