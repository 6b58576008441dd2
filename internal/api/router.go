package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"pokerhall/internal/coordinator"
)

// NewRouter wires spec.md §6's request contracts onto gin routes, plus
// the websocket endpoint for push updates.
func NewRouter(coord *coordinator.Coordinator, logger *slog.Logger) *gin.Engine {
	h := NewHandlers(coord)
	ws := NewWSHandler(coord, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	games := r.Group("/games")
	games.POST("", h.CreateGame)
	games.POST("/:code/join", h.JoinGame)
	games.GET("/:code/state", h.GetState)
	games.POST("/:code/action", h.ProcessAction)
	games.POST("/:code/deal", h.StartHand)
	games.POST("/:code/rebuy", h.RequestRebuy)
	games.POST("/:code/cancel_rebuy", h.CancelRebuy)
	games.POST("/:code/show_cards", h.ShowCards)
	games.POST("/:code/pause", h.Pause)
	games.POST("/:code/resume", h.Resume)
	games.POST("/:code/leave", h.Leave)

	r.GET("/ws/:code", ws.Serve)

	return r
}
