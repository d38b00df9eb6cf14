package session

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/visualgpt/visualgpt/compositor/internal/typeid"
	"github.com/visualgpt/visualgpt/compositor/internal/visual"
)

type Handler struct {
	hub            *Hub
	originPatterns []string
}

// NewHandler accepts websocket connections from allowedOrigins, given as
// full origins ("http://localhost:5173") or "*".
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{hub: hub, originPatterns: originPatterns(allowedOrigins)}
}

// ServeWS handles GET /ws/visual/{visualId}.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	visualID := mux.Vars(r)["visualId"]
	if err := typeid.Validate(visualID, typeid.PrefixVisual); err != nil {
		http.Error(w, "visual not found", http.StatusNotFound)
		return
	}

	room, err := h.hub.Open(r.Context(), visualID)
	if err != nil {
		if errors.Is(err, visual.ErrNotFound) {
			http.Error(w, "visual not found", http.StatusNotFound)
			return
		}
		slog.Error("open session", "error", err, "visual", visualID)
		http.Error(w, "could not open visual", http.StatusUnprocessableEntity)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.hub.Abandon(room)
		slog.Error("websocket accept", "error", err)
		return
	}

	client := NewClient(h.hub, room, conn, uuid.New().String())
	h.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns reduces origins to the host patterns websocket.Accept
// matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
