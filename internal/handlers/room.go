package handlers

import (
	"net/http"

	"goldenbell-backend/internal/goldenbell"
	"goldenbell-backend/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoomHandler exposes the quiz host's operations. There is no host account;
// whoever created the room drives it, the way the projector laptop does.
type RoomHandler struct {
	st       store.Store
	registry *Registry
	logger   *zap.Logger
}

func NewRoomHandler(st store.Store, registry *Registry, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{st: st, registry: registry, logger: logger}
}

type SendQuestionRequest struct {
	Text               string   `json:"text" binding:"required"`
	QuestionType       string   `json:"questionType" binding:"required,oneof=subjective objective"`
	Choices            []string `json:"choices"`
	CorrectAnswer      string   `json:"correctAnswer"`
	CorrectChoiceIndex *int     `json:"correctChoiceIndex"`
	PointValue         int      `json:"pointValue"`
}

type GiveScoreRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
	Nickname      string `json:"nickname"`
	Points        int    `json:"points" binding:"required"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	sess, err := goldenbell.CreateRoom(c.Request.Context(), h.st, h.logger)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.registry.AddHost(sess); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": sess.Code()})
}

func (h *RoomHandler) StartGame(c *gin.Context) {
	sess, err := h.registry.Host(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.StartGame(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "game started"})
}

func (h *RoomHandler) SendQuestion(c *gin.Context) {
	sess, err := h.registry.Host(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req SendQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	question, err := sess.SendQuestion(c.Request.Context(), goldenbell.QuestionInput{
		Text:               req.Text,
		QuestionType:       req.QuestionType,
		Choices:            req.Choices,
		CorrectAnswer:      req.CorrectAnswer,
		CorrectChoiceIndex: req.CorrectChoiceIndex,
		PointValue:         req.PointValue,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

func (h *RoomHandler) RevealAnswer(c *gin.Context) {
	sess, err := h.registry.Host(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.RevealAnswer(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "answer revealed"})
}

func (h *RoomHandler) GiveScore(c *gin.Context) {
	sess, err := h.registry.Host(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req GiveScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := sess.GiveScore(c.Request.Context(), req.ParticipantID, req.Nickname, req.Points); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "score updated"})
}

func (h *RoomHandler) EndGame(c *gin.Context) {
	sess, err := h.registry.Host(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.EndGame(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "game ended"})
}

func (h *RoomHandler) ResetGame(c *gin.Context) {
	code := c.Param("code")
	sess, err := h.registry.Host(code)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.ResetGame(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.registry.RemoveHost(code)
	c.JSON(http.StatusOK, MessageResponse{Message: "room deleted"})
}
