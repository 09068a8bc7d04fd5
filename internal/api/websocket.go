package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Observers are read-only consumers, origin checks add nothing here
		return true
	},
}

// HandleWebSocket upgrades the connection, registers it as an observer
// and relays inbound control messages until the client disconnects.
func (c *Controller) HandleWebSocket(ctx echo.Context) error {
	ws, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.apiLogger.Warn("WebSocket upgrade failed", "ip", ctx.RealIP(), "error", err)
		return err
	}

	clientInfo := fmt.Sprintf("%s %s", ctx.RealIP(), ctx.Request().UserAgent())
	c.Hub.Register(ws, clientInfo)
	if c.Metrics != nil {
		c.Metrics.Broadcast.SetActiveConnections(c.Hub.Count())
	}

	go c.readLoop(ws)

	return nil
}

// readLoop consumes control messages from one observer until the
// connection errors, then unregisters it.
func (c *Controller) readLoop(ws *websocket.Conn) {
	defer func() {
		c.Hub.Unregister(ws)
		_ = ws.Close()
		if c.Metrics != nil {
			c.Metrics.Broadcast.SetActiveConnections(c.Hub.Count())
		}
	}()

	for {
		msgType, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if c.Processor != nil {
			c.Processor.HandleControl(ws, raw)
		}
	}
}

// ConnectionStats returns a snapshot of connected observers.
func (c *Controller) ConnectionStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Hub.Stats())
}
