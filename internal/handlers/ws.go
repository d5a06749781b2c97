package handlers

import (
	"net/http"

	"goldenbell-backend/internal/goldenbell"
	"goldenbell-backend/internal/guessleader"
	"goldenbell-backend/internal/store"
	"goldenbell-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler streams room state to connected devices. Dropping the socket is
// the device going away: a host's drop deletes the room, a participant's
// drop removes their record, a display leaves no trace.
type WSHandler struct {
	st       store.Store
	hub      *ws.Hub
	registry *Registry
	logger   *zap.Logger
}

func NewWSHandler(st store.Store, hub *ws.Hub, registry *Registry, logger *zap.Logger) *WSHandler {
	return &WSHandler{st: st, hub: hub, registry: registry, logger: logger}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *WSHandler) HandleGoldenBell(c *gin.Context) {
	code := c.Param("code")
	role := c.DefaultQuery("role", "display")

	state, err := goldenbell.FetchDisplayState(c.Request.Context(), h.st, code)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.AddConnection(code, conn)
	if err := conn.WriteJSON(ws.Message{Type: "state", Data: state}); err != nil {
		h.hub.RemoveConnection(code, conn)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.RemoveConnection(code, conn)

	switch role {
	case "host":
		if sess, err := h.registry.Host(code); err == nil {
			sess.Handle().Disconnect()
			h.registry.RemoveHost(code)
		}
	case "play":
		if id := c.Query("participantId"); id != "" {
			if sess, err := h.registry.Participant(id); err == nil {
				sess.Leave()
				h.registry.RemoveParticipant(id)
			}
		}
	}
}

func (h *WSHandler) HandleGuessLeader(c *gin.Context) {
	code := c.Param("code")
	role := c.DefaultQuery("role", "display")

	room, err := guessleader.FetchRoom(c.Request.Context(), h.st, code)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	hubRoom := RevealHubRoom(code)
	h.hub.AddConnection(hubRoom, conn)
	if err := conn.WriteJSON(ws.Message{Type: "state", Data: room}); err != nil {
		h.hub.RemoveConnection(hubRoom, conn)
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.RemoveConnection(hubRoom, conn)

	if role == "host" {
		if sess, err := h.registry.Reveal(code); err == nil {
			sess.Handle().Disconnect()
			h.registry.RemoveReveal(code)
		}
	}
}
