package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	applogger "CredPulse/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. Clients only listen, so anything
	// larger than a heartbeat is suspect.
	maxMessageSize = 512

	sendBuffer = 256
)

// Client pumps hub broadcasts onto one WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id          string
	connectedAt time.Time

	l *applogger.Logger
}

// Serve registers a freshly upgraded connection with the hub and starts
// its read and write pumps.
func Serve(h *Hub, conn *websocket.Conn, l *applogger.Logger) {
	c := &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          uuid.New().String(),
		connectedAt: time.Now(),
		l:           l,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection. Inbound messages are ignored; the pump
// exists to notice disconnects and keep the read deadline fresh.
func (c *Client) readPump() {
	defer func() {
		c.hub.forget(c)
		c.conn.Close()
		if c.l != nil {
			c.l.Debug("stream read pump stopped",
				applogger.String("client_id", c.id),
				applogger.Duration("connected", time.Since(c.connectedAt)))
		}
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				if c.l != nil {
					c.l.Warn("stream unexpected close", applogger.String("client_id", c.id), applogger.Error(err))
				}
			}
			return
		}
	}
}

// writePump forwards hub payloads to the peer and pings on a ticker.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this client.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if c.l != nil {
					c.l.Warn("stream write failed", applogger.String("client_id", c.id), applogger.Error(err))
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
