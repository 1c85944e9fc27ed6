package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the websocket upgrade endpoints.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	commands          *CommandHandler
}

func NewWebSocketHandler(cm *ConnectionManager, commands *CommandHandler) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, commands: commands}
}

// HandleQuizConnection joins a client to one competition's event stream.
// user_id is optional; spectators can watch without answering.
func (h *WebSocketHandler) HandleQuizConnection(w http.ResponseWriter, r *http.Request) {
	competitionIDStr := r.URL.Query().Get("competition_id")
	if competitionIDStr == "" {
		http.Error(w, "competition_id is required", http.StatusBadRequest)
		return
	}
	competitionID, err := uuid.Parse(competitionIDStr)
	if err != nil {
		http.Error(w, "invalid competition_id format", http.StatusBadRequest)
		return
	}

	// In production the user id comes from the session token.
	userID := uuid.Nil
	if userIDStr := r.URL.Query().Get("user_id"); userIDStr != "" {
		userID, err = uuid.Parse(userIDStr)
		if err != nil {
			http.Error(w, "invalid user_id format", http.StatusBadRequest)
			return
		}
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, userID, competitionID)
	if err != nil {
		log.Error().Err(err).Str("competition_id", competitionID.String()).Msg("websocket upgrade failed")
		return
	}

	// Catch the client up before live events start flowing to it. The
	// request context dies with the handler, so the snapshot runs on its
	// own.
	go func() {
		for _, message := range h.commands.Snapshot(context.Background(), userID, competitionID) {
			select {
			case conn.Send <- message:
			default:
				return
			}
		}
	}()
}

// HandleListConnection joins a client to the competition list stream.
func (h *WebSocketHandler) HandleListConnection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.connectionManager.UpgradeConnection(w, r, uuid.Nil, uuid.Nil); err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
	}
}

// HandleConnectionStats reports the live pool sizes.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes mounts the websocket endpoints on a mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/quiz", h.HandleQuizConnection)
	mux.HandleFunc("/ws/list", h.HandleListConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
