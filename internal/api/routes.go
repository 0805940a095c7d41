package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/repositories"
	"github.com/satriahrh/transcribe-relay/internal/config"
	"github.com/satriahrh/transcribe-relay/internal/websocket"
)

const (
	serviceName      = "transcribe-relay"
	defaultListLimit = 20
	maxListLimit     = 100
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, records repositories.ConnectionRepository, cfg config.Config, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:      "ok",
			Service:     serviceName,
			Connections: hub.ConnectionCount(),
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Connection record APIs
	v1.GET("/connections", func(c echo.Context) error {
		return listConnections(c, records, logger)
	})
	v1.GET("/connections/:id", func(c echo.Context) error {
		return getConnection(c, records, logger)
	})

	// Audio streaming endpoint
	e.GET(cfg.WSPath, func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c)
	})

	// Test page and its assets
	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  cfg.StaticDir,
		Index: "index.html",
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == cfg.WSPath || strings.HasPrefix(path, "/api/")
		},
	}))
}

func listConnections(c echo.Context, records repositories.ConnectionRepository, logger *zap.Logger) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = min(n, maxListLimit)
	}

	list, err := records.ListRecent(c.Request().Context(), limit)
	if err != nil {
		logger.Error("Failed to list connection records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list connections",
		})
	}

	return c.JSON(http.StatusOK, ConnectionsResponse{
		Connections: list,
		Count:       len(list),
	})
}

func getConnection(c echo.Context, records repositories.ConnectionRepository, logger *zap.Logger) error {
	id := c.Param("id")
	record, err := records.GetByID(c.Request().Context(), id)
	if errors.Is(err, repositories.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Connection not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get connection record",
			zap.String("connectionID", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get connection",
		})
	}

	return c.JSON(http.StatusOK, record)
}
