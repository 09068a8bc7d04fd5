// Package api exposes the HTTP and WebSocket surface of the service.
package api

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/foodlens/foodlens-go/internal/broadcast"
	"github.com/foodlens/foodlens-go/internal/conf"
	"github.com/foodlens/foodlens-go/internal/datastore"
	"github.com/foodlens/foodlens-go/internal/inference"
	"github.com/foodlens/foodlens-go/internal/logging"
	"github.com/foodlens/foodlens-go/internal/observability"
	"github.com/foodlens/foodlens-go/internal/processor"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Settings  *conf.Settings
	Store     datastore.Interface
	Processor *processor.Processor
	Hub       *broadcast.Hub
	Metrics   *observability.Metrics

	apiLogger *slog.Logger
	startTime time.Time
}

// New creates the API controller and registers all routes.
func New(settings *conf.Settings, store datastore.Interface, proc *processor.Processor,
	hub *broadcast.Hub, metrics *observability.Metrics) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Store:     store,
		Processor: proc,
		Hub:       hub,
		Metrics:   metrics,
		apiLogger: logging.ForService("api"),
		startTime: time.Now(),
	}
	c.Group = e.Group("/api/v1")

	c.initRoutes()
	return c
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Echo.GET("/health", c.HealthCheck)
	c.Echo.GET("/ws", c.HandleWebSocket)
	c.Echo.GET("/ws/stats", c.ConnectionStats)
	if c.Metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.Metrics.Handler()))
	}

	c.Group.POST("/predict", c.Predict)
	c.Group.GET("/predictions/recent", c.RecentPredictions)
	c.Group.GET("/statistics", c.GetStatistics)
	c.Group.GET("/trends", c.GetTrends)
}

// Start runs the HTTP server on the configured port.
func (c *Controller) Start() error {
	return c.Echo.Start(":" + c.Settings.WebServer.Port)
}

// Shutdown stops the HTTP server and disconnects all observers.
func (c *Controller) Shutdown(ctx context.Context) error {
	if c.Hub != nil {
		c.Hub.CloseAll()
	}
	return c.Echo.Shutdown(ctx)
}

// HealthCheck reports service status. The service runs degraded when no
// detection backend is available.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	status := "ok"
	mode := inference.ModeNone
	if c.Processor != nil {
		mode = c.Processor.Mode()
	}
	if mode == inference.ModeNone {
		status = "degraded"
	}

	database := "disabled"
	if c.Store != nil {
		database = "connected"
		if _, err := c.Store.GetRecentPredictions(1, 0); err != nil {
			database = "disconnected"
			status = "degraded"
		}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         status,
		"mode":           mode,
		"database":       database,
		"version":        c.Settings.Version,
		"uptime_seconds": time.Since(c.startTime).Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// ErrorResponse is the wire shape of all API errors.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	c.apiLogger.Error("API Error",
		"correlation_id", errorResp.CorrelationID,
		"message", message,
		"error", errorResp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, errorResp)
}
