package handlers

import (
	"net/http"

	"goldenbell-backend/internal/goldenbell"
	"goldenbell-backend/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PlayHandler struct {
	st       store.Store
	registry *Registry
	logger   *zap.Logger
}

func NewPlayHandler(st store.Store, registry *Registry, logger *zap.Logger) *PlayHandler {
	return &PlayHandler{st: st, registry: registry, logger: logger}
}

type PlayJoinRequest struct {
	Code     string `json:"code" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
}

type PlayAnswerRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
	Text          string `json:"text"`
	ChoiceIndex   *int   `json:"choiceIndex"`
}

type PlaySessionRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (h *PlayHandler) Join(c *gin.Context) {
	var req PlayJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	sess, err := goldenbell.JoinRoom(c.Request.Context(), h.st, h.logger, req.Code, req.Nickname)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.Start(); err != nil {
		writeError(c, err)
		return
	}
	h.registry.AddParticipant(sess)

	c.JSON(http.StatusOK, gin.H{
		"participantId": sess.ID(),
		"state":         sess.State(),
	})
}

// Answer records a submission. A second call for the same question is
// rejected until the client re-opens editing explicitly.
func (h *PlayHandler) Answer(c *gin.Context) {
	var req PlayAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sess, err := h.registry.Participant(req.ParticipantID)
	if err != nil {
		writeError(c, err)
		return
	}

	if req.ChoiceIndex != nil {
		err = sess.SubmitChoice(c.Request.Context(), *req.ChoiceIndex)
	} else {
		err = sess.SubmitText(c.Request.Context(), req.Text)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

func (h *PlayHandler) Reopen(c *gin.Context) {
	var req PlaySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sess, err := h.registry.Participant(req.ParticipantID)
	if err != nil {
		writeError(c, err)
		return
	}
	sess.Reopen()
	c.JSON(http.StatusOK, sess.State())
}

func (h *PlayHandler) GetState(c *gin.Context) {
	id := c.Query("participantId")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "participantId required"})
		return
	}
	sess, err := h.registry.Participant(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

func (h *PlayHandler) Leave(c *gin.Context) {
	var req PlaySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sess, err := h.registry.Participant(req.ParticipantID)
	if err != nil {
		writeError(c, err)
		return
	}
	sess.Leave()
	h.registry.RemoveParticipant(req.ParticipantID)
	c.JSON(http.StatusOK, MessageResponse{Message: "left room"})
}
