package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"duplicator/internal/config"
	"duplicator/internal/constants"
	"duplicator/internal/logger"
	"duplicator/internal/relay"
	"duplicator/pkg/errors"
	"duplicator/pkg/health"
	"duplicator/pkg/middleware"
	"duplicator/pkg/ratelimit"
	"duplicator/pkg/tracing"
)

// Relay is the read-only view of the controller exposed over HTTP.
type Relay interface {
	Stats() relay.Stats
	Forwarded(id string) bool
}

type Handler struct {
	relay   Relay
	health  *health.CheckerRegistry
	source  string
	breaker func() string
	logger  logger.Logger
}

type Option func(*Handler)

// WithBreakerState reports the delivery circuit breaker state in stats.
func WithBreakerState(state func() string) Option {
	return func(h *Handler) {
		h.breaker = state
	}
}

func NewHandler(r Relay, registry *health.CheckerRegistry, sourceName string, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		relay:  r,
		health: registry,
		source: sourceName,
		logger: log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.logger.WarnwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/stats", h.GetStats)
		v1.GET("/forwarded/:id", h.GetForwarded)
	}
}

func (h *Handler) Health(c *gin.Context) {
	result := h.health.Check(c.Request.Context())
	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, result)
}

type statsResponse struct {
	Source         string      `json:"source"`
	Relay          relay.Stats `json:"relay"`
	CircuitBreaker string      `json:"circuit_breaker,omitempty"`
}

func (h *Handler) GetStats(c *gin.Context) {
	resp := statsResponse{
		Source: h.source,
		Relay:  h.relay.Stats(),
	}
	if h.breaker != nil {
		resp.CircuitBreaker = h.breaker()
	}
	c.JSON(http.StatusOK, resp)
}

// GetForwarded answers whether a message id is still in the recency cache.
func (h *Handler) GetForwarded(c *gin.Context) {
	id := c.Param("id")
	if !h.relay.Forwarded(id) {
		h.HandleError(c, errors.ErrNotFound.WithMessage("message id not in recency cache").WithDetail("id", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "forwarded": true})
}

// NewRouter builds the admin engine with the standard middleware chain.
func NewRouter(ctx context.Context, cfg *config.Config, h *Handler, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName, "/health", "/metrics"))
	}

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))

	if cfg.Admin.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(cfg.Admin.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		log.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	h.RegisterRoutes(router)
	return router
}
