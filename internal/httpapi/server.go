// Package httpapi exposes the orchestrator's inspection operations over
// HTTP (echo) and a live-value feed over WebSocket (gorilla/websocket),
// promoting the teacher's unused indirect echo/websocket dependencies to
// direct, exercised use.
package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/industrial-sim/protocol-sim-engine/internal/metrics"
	"github.com/industrial-sim/protocol-sim-engine/internal/orchestrator"
)

// Server wraps an echo instance exposing the orchestrator's read-only and
// restart operations.
type Server struct {
	echo *echo.Echo
	orch *orchestrator.Orchestrator
	hub  *hub
}

// New builds a Server routed against orch. metricsReg may be nil, in
// which case /metrics is not registered.
func New(orch *orchestrator.Orchestrator, metricsReg *metrics.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{echo: e, orch: orch, hub: newHub()}
	s.routes(metricsReg)
	return s
}

func (s *Server) routes(metricsReg *metrics.Registry) {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/api/v1/health", s.handleHealth)
	s.echo.GET("/api/v1/devices", s.handleListDevices)
	s.echo.GET("/api/v1/devices/:id", s.handleDeviceInfo)
	s.echo.GET("/api/v1/devices/:id/data", s.handleDeviceData)
	s.echo.POST("/api/v1/devices/:id/restart", s.handleRestartDevice)
	s.echo.GET("/api/v1/protocols", s.handleProtocolSummary)
	s.echo.GET("/api/v1/protocols/:name/devices", s.handleDevicesByProtocol)
	s.echo.GET("/api/v1/allocation", s.handleAllocationReport)
	s.echo.GET("/api/v1/performance", s.handlePerformanceMetrics)
	s.echo.GET("/api/v1/export", s.handleExport)
	s.echo.GET("/ws/live", s.handleLiveFeed)

	if metricsReg != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metricsReg.Handler()))
	}
}

// Start serves on addr, blocking until the server is shut down.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("starting http inspection api")
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server and the live-feed hub.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.hub.close()
	ctx, cancel := contextWithTimeout(timeout)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.GetHealthStatus())
}

func (s *Server) handleListDevices(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.AllDevices())
}

func (s *Server) handleDeviceInfo(c echo.Context) error {
	info, ok := s.orch.DeviceStatus(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "device not found")
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleDeviceData(c echo.Context) error {
	data, ok := s.orch.DeviceData(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "device not found")
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleRestartDevice(c echo.Context) error {
	if err := s.orch.RestartDevice(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"restarted": true})
}

func (s *Server) handleProtocolSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.ProtocolSummaryReport())
}

func (s *Server) handleDevicesByProtocol(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.DevicesByProtocol(c.Param("name")))
}

func (s *Server) handleAllocationReport(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.AllocationReport())
}

func (s *Server) handlePerformanceMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.GetPerformanceMetrics())
}

func (s *Server) handleExport(c echo.Context) error {
	format := c.QueryParam("format")
	if format == "" {
		format = "json"
	}
	return c.JSON(http.StatusOK, s.orch.ExportAllDeviceData(format))
}

func (s *Server) handleLiveFeed(c echo.Context) error {
	return s.hub.serveWS(c.Response(), c.Request())
}

// Broadcast pushes the orchestrator's current device list to every
// connected live-feed client. Call periodically from cmd/simulator.
func (s *Server) Broadcast() {
	s.hub.broadcast(s.orch.AllDevices())
}
