package handlers

import (
	"errors"
	"net/http"

	"goldenbell-backend/internal/goldenbell"
	"goldenbell-backend/internal/guessleader"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// writeError maps game errors onto HTTP statuses: validation problems are
// 400, missing rooms 404, finished games 409, unreachable store 503.
func writeError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, goldenbell.ErrRoomNotFound),
		errors.Is(err, guessleader.ErrRoomNotFound),
		errors.Is(err, ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, goldenbell.ErrRoomEnded),
		errors.Is(err, goldenbell.ErrGameEnded),
		errors.Is(err, guessleader.ErrGameEnded):
		status = http.StatusConflict
	case errors.Is(err, goldenbell.ErrConnectivity),
		errors.Is(err, guessleader.ErrConnectivity):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
