package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
)

// Client is one websocket connection bound to an authenticated player.
type Client struct {
	ID     string
	Player coordinator.Player

	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool // guarded by hub.mu

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, player coordinator.Player) *Client {
	id := uuid.New().String()
	player.ConnID = id
	return &Client{
		ID:     id,
		Player: player,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.config.SendBuffer),
		rooms:  make(map[string]bool),
	}
}

// trySend queues data without blocking. Callers hold hub.mu, so send is open.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// writePump handles sending messages to the websocket connection.
func (c *Client) writePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.WithError(err).WithField("conn_id", c.ID).Debug("Write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.WithError(err).WithField("conn_id", c.ID).Debug("Ping failed")
				return
			}
		}
	}
}

// readPump hands every inbound frame to handle until the connection fails.
func (c *Client) readPump(handle func(message []byte)) {
	cfg := c.hub.config
	defer c.close()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("conn_id", c.ID).Warn("Unexpected websocket close")
			}
			return
		}
		handle(message)
		c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
