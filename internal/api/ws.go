package api

import (
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"

	"pokerhall/internal/coordinator"
	"pokerhall/internal/engine"
	"pokerhall/internal/registry"
	"pokerhall/internal/wsconn"
)

// WSHandler upgrades a request to a websocket and registers it with the
// Connection Registry. Clients submit actions over the HTTP routes; this
// socket is push-only (game_state, lobby_state, connection_info, ping)
// per spec.md §6's wire message list.
type WSHandler struct {
	coord    *coordinator.Coordinator
	registry *registry.Registry
	logger   *slog.Logger
}

func NewWSHandler(coord *coordinator.Coordinator, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{coord: coord, registry: registry.Get(), logger: logger}
}

type inboundMessage struct {
	Type string `json:"type"`
}

func (h *WSHandler) Serve(c *gin.Context) {
	code := c.Param("code")
	playerID := c.Query("player_id")
	spectator := playerID == ""

	conn, err := wsconn.Upgrade(c.Writer, c.Request)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "game_code", code, "error", err)
		return
	}
	defer conn.Close()

	if spectator {
		h.registry.RegisterSpectator(code, conn)
	} else {
		h.registry.Register(code, playerID, conn)
		defer h.registry.Unregister(code, playerID, conn)
	}

	h.sendInitialState(c, conn, code, playerID, spectator)

	for {
		data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "pong":
			if !spectator {
				h.registry.Heartbeat(code, playerID)
			}
		default:
			// Every other client request travels over the HTTP routes;
			// an unrecognized frame here is simply ignored.
		}
	}
}

func (h *WSHandler) sendInitialState(c *gin.Context, conn *wsconn.Conn, code, playerID string, spectator bool) {
	view, err := h.coord.GetView(c.Request.Context(), code, engine.Viewer{PlayerID: playerID, Spectator: spectator})
	if err != nil {
		data, merr := json.Marshal(gin.H{"type": "error", "error": gin.H{"kind": string(err.Kind), "message": err.Message}})
		if merr == nil {
			conn.SendBytes(data)
		}
		return
	}
	data, merr := json.Marshal(gin.H{"type": "game_state", "data": view})
	if merr != nil {
		return
	}
	if serr := conn.SendBytes(data); serr != nil {
		h.logger.Debug("send initial state failed", "game_code", code, "error", serr)
	}
}
