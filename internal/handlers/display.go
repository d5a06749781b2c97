package handlers

import (
	"fmt"
	"net/http"

	"goldenbell-backend/internal/goldenbell"
	"goldenbell-backend/internal/guessleader"
	"goldenbell-backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

// DisplayHandler serves the read-only projector view. Displays never appear
// in the participant list and may watch rooms that already ended.
type DisplayHandler struct {
	st      store.Store
	baseURL string
}

func NewDisplayHandler(st store.Store, baseURL string) *DisplayHandler {
	return &DisplayHandler{st: st, baseURL: baseURL}
}

func (h *DisplayHandler) GetDisplay(c *gin.Context) {
	state, err := goldenbell.FetchDisplayState(c.Request.Context(), h.st, c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetQR renders a QR code of the display auto-connect link, so the projector
// can be pointed at the room without typing the code.
func (h *DisplayHandler) GetQR(c *gin.Context) {
	code := c.Param("code")
	if _, err := goldenbell.FetchDisplayState(c.Request.Context(), h.st, code); err != nil {
		writeError(c, err)
		return
	}

	url := fmt.Sprintf("%s/display?code=%s", h.baseURL, code)
	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "qr generation failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *DisplayHandler) GetRevealDisplay(c *gin.Context) {
	room, err := guessleader.FetchRoom(c.Request.Context(), h.st, c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}
