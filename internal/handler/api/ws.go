package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"CredPulse/internal/service/stream"
	xlogger "CredPulse/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamHandler upgrades dashboard clients onto the live score hub.
type StreamHandler struct {
	logger *xlogger.Logger
	hub    *stream.Hub
}

func NewStreamHandler(logger *xlogger.Logger, hub *stream.Hub) *StreamHandler {
	return &StreamHandler{logger: logger, hub: hub}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/scores", h.Scores)
}

func (h *StreamHandler) Scores(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("stream upgrade failed", xlogger.Error(err))
		return nil
	}
	stream.Serve(h.hub, conn, h.logger)
	return nil
}
