package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// Handle returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients. familyID resolves the authenticated
// family from the request so broadcasts stay scoped.
func Handle(hub *Hub, familyID func(r *http.Request) int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fid := familyID(r)
		if fid == 0 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Allow connections from any origin (household LAN)
		})
		if err != nil {
			hub.logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, fid)
		client.Run(r.Context())
	}
}
