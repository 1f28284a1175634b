package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/edvart/typeduel/internal/coordinator"
)

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		SendBuffer:      256,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// Hub tracks live connections and the match rooms they joined.
// It is the coordinator's Delivery.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client // match id -> conn id -> client

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

func NewHub(config ConnectionConfig) *Hub {
	d := DefaultConnectionConfig()
	if config.SendBuffer <= 0 {
		config.SendBuffer = d.SendBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = d.PingInterval
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = d.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = d.WriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = d.MaxMessageSize
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

var _ coordinator.Delivery = (*Hub)(nil)

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
}

// unregister removes the client from the hub and every room and closes its
// send channel. It reports whether this call did the removal.
func (h *Hub) unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[c.ID] != c {
		return false
	}
	delete(h.clients, c.ID)
	for matchID := range c.rooms {
		if room := h.rooms[matchID]; room != nil {
			delete(room, c.ID)
			if len(room) == 0 {
				delete(h.rooms, matchID)
			}
		}
	}
	close(c.send)
	return true
}

func (h *Hub) ToConn(connID string, msg coordinator.Message) {
	data, ok := encodeMessage(msg)
	if !ok {
		return
	}

	h.mu.RLock()
	var slow []*Client
	if c := h.clients[connID]; c != nil && !c.trySend(data) {
		slow = append(slow, c)
	}
	h.mu.RUnlock()
	h.evict(slow)
}

func (h *Hub) ToRoom(matchID string, msg coordinator.Message) {
	h.sendToRoom(matchID, "", msg)
}

func (h *Hub) ToRoomMember(matchID, playerID string, msg coordinator.Message) {
	h.sendToRoom(matchID, playerID, msg)
}

// sendToRoom delivers to every room member, or only to playerID's connections when set.
func (h *Hub) sendToRoom(matchID, playerID string, msg coordinator.Message) {
	data, ok := encodeMessage(msg)
	if !ok {
		return
	}

	h.mu.RLock()
	var slow []*Client
	for _, c := range h.rooms[matchID] {
		if playerID != "" && c.Player.ID != playerID {
			continue
		}
		if !c.trySend(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.evict(slow)
}

func (h *Hub) Join(connID, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.clients[connID]
	if c == nil {
		return
	}
	room := h.rooms[matchID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[matchID] = room
	}
	room[connID] = c
	c.rooms[matchID] = true
}

// Release drops a finished match's room.
func (h *Hub) Release(matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.rooms[matchID] {
		delete(c.rooms, matchID)
	}
	delete(h.rooms, matchID)
}

// evict disconnects clients whose send buffer is full.
func (h *Hub) evict(slow []*Client) {
	for _, c := range slow {
		log.WithField("conn_id", c.ID).Warn("Send buffer full, closing slow connection")
		c.close()
	}
}

type HubStats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{Connections: len(h.clients), Rooms: len(h.rooms)}
}
