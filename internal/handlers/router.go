package handlers

import (
	"net/http"
	"strings"

	"goldenbell-backend/internal/config"
	"goldenbell-backend/internal/middleware"
	"goldenbell-backend/internal/store"
	"goldenbell-backend/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter wires the full HTTP and websocket surface.
func NewRouter(cfg *config.Config, st store.Store, hub *ws.Hub, registry *Registry, logger *zap.Logger) *gin.Engine {
	roomHandler := NewRoomHandler(st, registry, logger)
	playHandler := NewPlayHandler(st, registry, logger)
	displayHandler := NewDisplayHandler(st, cfg.PublicBaseURL)
	glHandler := NewGuessLeaderHandler(st, registry, logger)
	wsHandler := NewWSHandler(st, hub, registry, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	allowed := cfg.AllowedOrigins
	if allowed == "" {
		allowed = "*"
	}
	origins := strings.Split(allowed, ",")
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ws/goldenbell/:code", wsHandler.HandleGoldenBell)
	r.GET("/ws/guessleader/:code", wsHandler.HandleGuessLeader)

	limited := middleware.RateLimit(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", limited, roomHandler.CreateRoom)
			rooms.POST("/:code/start", roomHandler.StartGame)
			rooms.POST("/:code/question", roomHandler.SendQuestion)
			rooms.POST("/:code/reveal", roomHandler.RevealAnswer)
			rooms.POST("/:code/score", roomHandler.GiveScore)
			rooms.POST("/:code/end", roomHandler.EndGame)
			rooms.DELETE("/:code", roomHandler.ResetGame)
		}

		play := api.Group("/play")
		{
			play.POST("/join", limited, playHandler.Join)
			play.POST("/answer", playHandler.Answer)
			play.POST("/reopen", playHandler.Reopen)
			play.GET("/state", playHandler.GetState)
			play.POST("/leave", playHandler.Leave)
		}

		display := api.Group("/display")
		{
			display.GET("/:code", displayHandler.GetDisplay)
			display.GET("/:code/qr", displayHandler.GetQR)
		}

		gl := api.Group("/guessleader")
		{
			gl.POST("", limited, glHandler.CreateRoom)
			gl.POST("/:code/images", glHandler.SetImages)
			gl.POST("/:code/focus", glHandler.SetFocus)
			gl.POST("/:code/start", glHandler.Start)
			gl.POST("/:code/next-step", glHandler.NextStep)
			gl.POST("/:code/prev-step", glHandler.PrevStep)
			gl.POST("/:code/reveal", glHandler.Reveal)
			gl.POST("/:code/next-round", glHandler.NextRound)
			gl.POST("/:code/end", glHandler.End)
			gl.DELETE("/:code", glHandler.Reset)
			gl.GET("/:code", displayHandler.GetRevealDisplay)
		}
	}

	return r
}
