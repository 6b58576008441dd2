// Package api is the thin HTTP boundary over the Session Coordinator: it
// decodes requests, calls the one coordinator method the route maps to,
// and renders the result or its error. No game logic lives here.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pokerhall/internal/coordinator"
	"pokerhall/internal/engine"
)

// Handlers holds the coordinator every route calls into.
type Handlers struct {
	coord *coordinator.Coordinator
}

func NewHandlers(coord *coordinator.Coordinator) *Handlers {
	return &Handlers{coord: coord}
}

type createRequest struct {
	Settings    engine.Settings `json:"settings"`
	CreatorName string          `json:"creator_name" binding:"required"`
	CreatorPin  string          `json:"creator_pin" binding:"required"`
}

func (h *Handlers) CreateGame(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid_argument", "message": err.Error()}})
		return
	}
	code, playerID, lobby, err := h.coord.CreateGame(c.Request.Context(), req.Settings, req.CreatorName, req.CreatorPin, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":      code,
		"player_id": playerID,
		"lobby":     lobby,
	})
}

type joinRequest struct {
	Name string `json:"name" binding:"required"`
	Pin  string `json:"pin" binding:"required"`
}

func (h *Handlers) JoinGame(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid_argument", "message": err.Error()}})
		return
	}
	code := c.Param("code")
	playerID, lobby, err := h.coord.JoinGame(c.Request.Context(), code, req.Name, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": playerID, "lobby": lobby})
}

func (h *Handlers) GetState(c *gin.Context) {
	code := c.Param("code")
	playerID := c.Query("player_id")
	spectator := playerID == ""
	view, err := h.coord.GetView(c.Request.Context(), code, engine.Viewer{PlayerID: playerID, Spectator: spectator})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type actionRequest struct {
	PlayerID string            `json:"player_id" binding:"required"`
	Pin      string            `json:"pin" binding:"required"`
	Action   engine.ActionKind `json:"action" binding:"required"`
	Amount   int64             `json:"amount"`
}

func (h *Handlers) ProcessAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid_argument", "message": err.Error()}})
		return
	}
	code := c.Param("code")
	view, err := h.coord.ProcessAction(c.Request.Context(), code, req.PlayerID, req.Pin, engine.Action{Kind: req.Action, Amount: req.Amount})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// seatRequest is the shared body for the seat-scoped operations below
// that only need (player_id, pin): deal, rebuy, cancel_rebuy, show_cards,
// pause, resume, leave.
type seatRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Pin      string `json:"pin" binding:"required"`
}

func (h *Handlers) bindSeatRequest(c *gin.Context) (seatRequest, bool) {
	var req seatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid_argument", "message": err.Error()}})
		return seatRequest{}, false
	}
	return req, true
}

func (h *Handlers) StartHand(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	view, err := h.coord.StartHand(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) RequestRebuy(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	view, err := h.coord.RequestRebuy(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) CancelRebuy(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	view, err := h.coord.CancelRebuy(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) ShowCards(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	view, err := h.coord.ShowCards(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) Pause(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	view, err := h.coord.Pause(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) Resume(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	view, err := h.coord.Resume(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handlers) Leave(c *gin.Context) {
	req, ok := h.bindSeatRequest(c)
	if !ok {
		return
	}
	if err := h.coord.Leave(c.Request.Context(), c.Param("code"), req.PlayerID, req.Pin); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
