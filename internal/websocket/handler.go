package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/zenith/internal/auth"
	"github.com/dukerupert/zenith/internal/planner"
)

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// connections and streams the user's workspace to them.
func HandleWebSocket(hub *Hub, workspaces *planner.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UserID(r.Context())
		if uid == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // token auth, not cookies; any origin may connect
		})
		if err != nil {
			logger.Warn("websocket accept", "user_id", uid, "error", err)
			return
		}
		defer conn.CloseNow()

		workspace, release := workspaces.Acquire(uid)
		defer release()

		logger.Debug("websocket connected", "user_id", uid)
		NewClient(hub, conn, uid).Run(r.Context(), workspace)
		logger.Debug("websocket disconnected", "user_id", uid)
	}
}
