// Package adminhttp exposes a small echo-based admin surface for the
// orchestration core: room allow-list management, wake/sleep, topic
// changes, and a Prometheus /metrics endpoint. Grounded on the teacher's
// echo wiring (server/router/api/v1) and plugin/chat_apps/metrics's
// event-counter shape, now backed by internal/metrics's real collectors.
package adminhttp

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/swarmchat/gateway"
)

// Server is the admin HTTP surface.
type Server struct {
	echo         *echo.Echo
	orchestrator gateway.Orchestrator
}

// New builds the echo server and registers its routes. gatherer is the
// Prometheus registry the orchestrator's internal/metrics.Sink was
// constructed with (typically prometheus.DefaultGatherer).
func New(orch gateway.Orchestrator, gatherer prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{echo: e, orchestrator: orch}

	e.POST("/rooms/:id/allowed-ais", s.setAllowedAIs)
	e.DELETE("/rooms/:id/allowed-ais", s.clearAllowedAIs)
	e.POST("/topic", s.changeTopic)
	e.POST("/wake", s.wake)
	e.POST("/sleep", s.sleep)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return s
}

// Start serves on addr until the process exits or ListenAndServe errors.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

type allowedAIsRequest struct {
	AIIDs []string `json:"ai_ids"`
}

func (s *Server) setAllowedAIs(c echo.Context) error {
	var req allowedAIsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s.orchestrator.SetRoomAllowedAIs(c.Param("id"), req.AIIDs)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) clearAllowedAIs(c echo.Context) error {
	s.orchestrator.ClearRoomAllowedAIs(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

type changeTopicRequest struct {
	RoomID string `json:"room_id"`
	Topic  string `json:"topic"`
	By     string `json:"by"`
}

func (s *Server) changeTopic(c echo.Context) error {
	var req changeTopicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic is required")
	}
	s.orchestrator.ChangeTopic(req.Topic, req.By, req.RoomID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) wake(c echo.Context) error {
	s.orchestrator.Wake()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) sleep(c echo.Context) error {
	s.orchestrator.Sleep()
	return c.NoContent(http.StatusNoContent)
}
