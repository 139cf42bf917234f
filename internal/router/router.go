package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"hirenotify/internal/common"
	"hirenotify/internal/config"
	"hirenotify/internal/domain/notification"
	"hirenotify/internal/middleware"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Check is a named readiness probe against a dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps are the components the router serves.
type Deps struct {
	Notifications *notification.Handler
	RateLimiter   *middleware.RateLimiter

	// Metrics may be nil when metrics are disabled.
	Metrics http.Handler

	Checks []Check
}

// New creates and configures the Gin router with all middleware and routes.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	// Public routes
	r.GET("/health", healthCheck)
	r.GET("/ready", readinessCheck(logger, deps.Checks))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// Auth first so the limiter can key on the caller.
	api := r.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Auth.APIKeys))
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware())
	}
	deps.Notifications.RegisterRoutes(api)

	return r
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "hirenotify",
	})
}

// readinessCheck handles GET /ready: 200 when every dependency answers, 503 otherwise.
func readinessCheck(logger *slog.Logger, checks []Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		results := make(gin.H, len(checks))
		ready := true
		for _, chk := range checks {
			if err := chk.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", "dependency", chk.Name, "error", err)
				results[chk.Name] = "unavailable"
				ready = false
				continue
			}
			results[chk.Name] = "ok"
		}

		if !ready {
			c.JSON(http.StatusServiceUnavailable, common.APIResponse{
				Success: false,
				Data:    results,
				Error:   &common.APIError{Code: http.StatusServiceUnavailable, Message: "dependencies unavailable"},
			})
			return
		}
		common.Success(c, http.StatusOK, results)
	}
}
