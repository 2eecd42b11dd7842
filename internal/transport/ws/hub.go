package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"coherence/internal/model"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MsgStatus MessageType = "status"
	MsgError  MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one client subscribed to a single video's progress
type Connection struct {
	VideoID string
	Send    chan []byte
}

// NewConnection creates a connection with a buffered send queue
func NewConnection(videoID string) *Connection {
	return &Connection{VideoID: videoID, Send: make(chan []byte, 256)}
}

type broadcastMessage struct {
	videoID  string
	data     []byte
	terminal bool
}

type delivery struct {
	conn     *Connection
	data     []byte
	terminal bool
}

// Hub fans status updates out to the connections watching each video
type Hub struct {
	// video -> connections
	subscribers map[string]map[*Connection]struct{}
	mu          sync.RWMutex

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *broadcastMessage
	deliver    chan *delivery
	done       chan struct{}
	closeOnce  sync.Once

	logger *slog.Logger
}

// NewHub creates and starts a WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		subscribers: make(map[string]map[*Connection]struct{}),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *broadcastMessage, 256),
		deliver:     make(chan *delivery),
		done:        make(chan struct{}),
		logger:      logger.With("component", "ws_hub"),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for videoID, conns := range h.subscribers {
				for conn := range conns {
					close(conn.Send)
				}
				delete(h.subscribers, videoID)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.subscribers[conn.VideoID] == nil {
				h.subscribers[conn.VideoID] = make(map[*Connection]struct{})
			}
			h.subscribers[conn.VideoID][conn] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "video", conn.VideoID)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			h.mu.Unlock()

		case d := <-h.deliver:
			h.mu.Lock()
			if _, ok := h.subscribers[d.conn.VideoID][d.conn]; ok {
				select {
				case d.conn.Send <- d.data:
				default:
				}
				if d.terminal {
					h.remove(d.conn)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.subscribers[msg.videoID] {
				select {
				case conn.Send <- msg.data:
				default:
					// Drop message if buffer full
				}
				if msg.terminal {
					h.remove(conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(conn *Connection) {
	conns, ok := h.subscribers[conn.VideoID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	close(conn.Send)
	if len(conns) == 0 {
		delete(h.subscribers, conn.VideoID)
	}
	h.logger.Debug("client unsubscribed", "video", conn.VideoID)
}

// Register subscribes a connection to its video
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection. Removing twice is a no-op.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Deliver sends a status to one registered connection, in order with the
// registrations and broadcasts the hub has already accepted. It is a no-op
// once the connection has been dropped, and drops it after a terminal
// status.
func (h *Hub) Deliver(conn *Connection, status *model.ProcessingStatus) {
	if status == nil {
		return
	}
	data, err := EncodeStatus(status)
	if err != nil {
		h.logger.Error("encode status failed", "video", conn.VideoID, "error", err)
		return
	}
	select {
	case h.deliver <- &delivery{conn: conn, data: data, terminal: status.Status.IsTerminal()}:
	case <-h.done:
	}
}

// Subscribers returns the number of connections watching a video
func (h *Hub) Subscribers(videoID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[videoID])
}

// PublishStatus sends a status update to every subscriber of the video
// (implements service.StatusBroadcaster). Subscribers are dropped after a
// terminal status.
func (h *Hub) PublishStatus(status *model.ProcessingStatus) {
	if status == nil {
		return
	}
	data, err := EncodeStatus(status)
	if err != nil {
		h.logger.Error("encode status failed", "video", status.VideoID, "error", err)
		return
	}
	msg := &broadcastMessage{videoID: status.VideoID, data: data, terminal: status.Status.IsTerminal()}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn("status broadcast queue full, dropping update", "video", status.VideoID)
	}
}

// Close stops the hub and closes every connection's send queue
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// EncodeStatus wraps a status in the message envelope
func EncodeStatus(status *model.ProcessingStatus) ([]byte, error) {
	payload, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Message{Type: MsgStatus, Payload: payload})
}
