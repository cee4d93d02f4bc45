package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origins are already filtered by the CORS layer; the upgrade
	// itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConnectEvents upgrades the request to a WebSocket and registers the
// connection as the player's live push session. The read loop only watches
// for the peer closing; all outbound traffic goes through the hub.
func (h *Handler) ConnectEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playerID := strings.TrimSpace(r.PathValue("playerID"))
	if playerID == "" {
		writeError(ctx, w, fmt.Errorf("%w: player id is required", usecase.ErrInvalidInput))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.WarnContext(ctx, "websocket upgrade failed", "player_id", playerID, "error", err)
		return
	}

	session := h.hub.Connect(playerID, conn)
	h.logger.InfoContext(ctx, "push session connected", "player_id", playerID)

	go session.WritePump()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Disconnect(session)
	h.logger.InfoContext(ctx, "push session disconnected", "player_id", playerID)
}
