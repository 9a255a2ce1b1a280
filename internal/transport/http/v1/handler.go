// Package v1 provides the HTTP handlers of the mill run API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/millrun/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.GET("/health", h.Health)

	// Runs
	api.POST("/runs", h.CreateRun)
	api.GET("/runs", h.ListRuns)
	api.GET("/runs/:run_id", h.GetRun)
	api.GET("/runs/:run_id/events", h.GetRunEvents)

	// Charge throw charts
	api.GET("/runs/:run_id/charge-throw.html", h.ChargeThrowHTML)
	api.GET("/runs/:run_id/charge-throw.png", h.ChargeThrowPNG)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
