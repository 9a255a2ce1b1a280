// Package http assembles the HTTP server of the mill run service.
package http

import (
	"log"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/millrun/internal/service"
	v1 "github.com/xiaot623/millrun/internal/transport/http/v1"
	"github.com/xiaot623/millrun/internal/transport/ws"
)

// NewServer creates the echo server with the run API, the event stream and,
// when frontendDir exists, the static frontend at /.
func NewServer(svc *service.Service, wsServer *ws.Server, frontendDir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	if wsServer != nil {
		e.GET("/api/ws", wsServer.HandleWebSocket)
	}

	if frontendDir != "" {
		if info, err := os.Stat(frontendDir); err == nil && info.IsDir() {
			e.Static("/", frontendDir)
		} else {
			log.Printf("WARN: frontend directory %s not found, serving API only", frontendDir)
		}
	}

	return e
}
