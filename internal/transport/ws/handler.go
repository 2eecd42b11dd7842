package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"coherence/internal/model"
	"coherence/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StatusSource looks up the current status of a video
type StatusSource interface {
	Status(ctx context.Context, videoID string) (*model.ProcessingStatus, error)
}

// Handler handles WebSocket connections
type Handler struct {
	hub      *Hub
	statuses StatusSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new WebSocket handler. allowedOrigins is the CORS
// origin list; "*" or empty accepts any origin.
func NewHandler(hub *Hub, statuses StatusSource, allowedOrigins string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:      hub,
		statuses: statuses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With("component", "ws"),
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return func(r *http.Request) bool { return true }
	}
	origins := make(map[string]struct{})
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}

// StatusWS handles GET /api/ws/videos/{id}
func (h *Handler) StatusWS(w http.ResponseWriter, r *http.Request) {
	videoID := mux.Vars(r)["id"]

	status, err := h.statuses.Status(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		h.logger.Error("status lookup failed", "video", videoID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// Subscribe before reading the status to send, so an update published
	// in between is either broadcast to us or already visible in the read.
	conn := NewConnection(videoID)
	h.hub.Register(conn)

	current, err := h.statuses.Status(r.Context(), videoID)
	if err != nil {
		h.logger.Warn("status re-read failed, sending earlier status", "video", videoID, "error", err)
		current = status
	}
	h.hub.Deliver(conn, current)
	h.logger.Debug("status stream opened", "video", videoID)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "video", conn.VideoID, "error", err)
			}
			return
		}
		// Clients only listen
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
