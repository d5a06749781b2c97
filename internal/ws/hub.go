package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message is the envelope for everything pushed to a websocket client.
// Type is "state" for full-state snapshots and "error" for terminal errors.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Bridge forwards broadcasts to other server instances. Implemented by the
// realtime package; nil means single-instance operation.
type Bridge interface {
	Publish(room string, data []byte) error
}

// Hub tracks websocket connections grouped by room code.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*websocket.Conn]bool
	bridge Bridge
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*websocket.Conn]bool),
		logger: logger,
	}
}

// SetBridge installs the cross-instance fan-out. Call before serving traffic.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

func (h *Hub) AddConnection(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
	h.logger.Debug("ws client connected",
		zap.String("room", room),
		zap.Int("total", len(h.rooms[room])),
	)
}

func (h *Hub) RemoveConnection(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.rooms[room]; ok {
		delete(conns, conn)
		conn.Close()
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
		h.logger.Debug("ws client disconnected", zap.String("room", room))
	}
}

// Broadcast sends a message to every connection in the room, on this
// instance and, when a bridge is installed, on the others too.
func (h *Hub) Broadcast(room string, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("ws marshal failed", zap.Error(err))
		return
	}
	h.broadcastRaw(room, data)
	if h.bridge != nil {
		if err := h.bridge.Publish(room, data); err != nil {
			h.logger.Warn("bridge publish failed", zap.String("room", room), zap.Error(err))
		}
	}
}

// BroadcastLocal delivers a pre-encoded message to local connections only.
// The realtime bridge calls this for messages originating on other instances.
func (h *Hub) BroadcastLocal(room string, data []byte) {
	h.broadcastRaw(room, data)
}

func (h *Hub) broadcastRaw(room string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[room]
	if !ok {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("ws write failed", zap.String("room", room), zap.Error(err))
			conn.Close()
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.rooms, room)
	}
}

// RoomCount reports how many connections a room currently has, for the
// health endpoint.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
