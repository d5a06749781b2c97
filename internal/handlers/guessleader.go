package handlers

import (
	"net/http"

	"goldenbell-backend/internal/guessleader"
	"goldenbell-backend/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GuessLeaderHandler drives the image reveal game.
type GuessLeaderHandler struct {
	st       store.Store
	registry *Registry
	logger   *zap.Logger
}

func NewGuessLeaderHandler(st store.Store, registry *Registry, logger *zap.Logger) *GuessLeaderHandler {
	return &GuessLeaderHandler{st: st, registry: registry, logger: logger}
}

type SetImagesRequest struct {
	Images []guessleader.Image `json:"images" binding:"required,min=1"`
}

type SetFocusRequest struct {
	Index   int     `json:"index"`
	CenterX float64 `json:"centerX"`
	CenterY float64 `json:"centerY"`
}

func (h *GuessLeaderHandler) CreateRoom(c *gin.Context) {
	sess, err := guessleader.CreateRoom(c.Request.Context(), h.st, h.logger)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.registry.AddReveal(sess); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": sess.Code()})
}

func (h *GuessLeaderHandler) SetImages(c *gin.Context) {
	sess, err := h.registry.Reveal(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req SetImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := sess.SetImages(c.Request.Context(), req.Images); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Room())
}

func (h *GuessLeaderHandler) SetFocus(c *gin.Context) {
	sess, err := h.registry.Reveal(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req SetFocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := sess.SetFocus(c.Request.Context(), req.Index, req.CenterX, req.CenterY); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Room())
}

func (h *GuessLeaderHandler) Start(c *gin.Context) {
	h.run(c, func(sess *guessleader.HostSession) error {
		return sess.Start(c.Request.Context())
	})
}

func (h *GuessLeaderHandler) NextStep(c *gin.Context) {
	h.run(c, func(sess *guessleader.HostSession) error {
		return sess.NextStep(c.Request.Context())
	})
}

func (h *GuessLeaderHandler) PrevStep(c *gin.Context) {
	h.run(c, func(sess *guessleader.HostSession) error {
		return sess.PrevStep(c.Request.Context())
	})
}

func (h *GuessLeaderHandler) Reveal(c *gin.Context) {
	h.run(c, func(sess *guessleader.HostSession) error {
		return sess.Reveal(c.Request.Context())
	})
}

func (h *GuessLeaderHandler) NextRound(c *gin.Context) {
	h.run(c, func(sess *guessleader.HostSession) error {
		return sess.NextRound(c.Request.Context())
	})
}

func (h *GuessLeaderHandler) End(c *gin.Context) {
	h.run(c, func(sess *guessleader.HostSession) error {
		return sess.End(c.Request.Context())
	})
}

func (h *GuessLeaderHandler) Reset(c *gin.Context) {
	code := c.Param("code")
	sess, err := h.registry.Reveal(code)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := sess.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.registry.RemoveReveal(code)
	c.JSON(http.StatusOK, MessageResponse{Message: "room deleted"})
}

func (h *GuessLeaderHandler) run(c *gin.Context, op func(*guessleader.HostSession) error) {
	sess, err := h.registry.Reveal(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	if err := op(sess); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Room())
}
