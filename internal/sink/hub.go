package sink

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andresmejia3/oculus/internal/types"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 32
)

// Event is the JSON message pushed to WebSocket clients.
type Event struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id"`
	Status    *types.StatusUpdate `json:"status,omitempty"`
	Capture   *CaptureInfo        `json:"capture,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// CaptureInfo describes a captured frame without its pixels; the JPEG is served separately.
type CaptureInfo struct {
	Seq    uint64    `json:"seq"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Bytes  int       `json:"bytes"`
	At     time.Time `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub remembers the latest status, capture and error, and broadcasts every event to
// connected WebSocket clients. Slow clients lose messages rather than stall the scheduler.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	status  types.StatusUpdate
	capture *types.CaptureEvent
	lastErr *Event
	clients map[*client]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:     logger.With("component", "hub"),
		status:  types.StatusUpdate{Status: types.Idle, Instruction: types.Idle.Instruction()},
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Hub) Status(update types.StatusUpdate) {
	h.mu.Lock()
	h.status = update
	if update.Status == types.Loading {
		h.lastErr = nil
	}
	h.mu.Unlock()
	h.broadcast(Event{Type: "status", SessionID: update.SessionID, Status: &update})
}

func (h *Hub) Capture(event types.CaptureEvent) {
	h.mu.Lock()
	h.capture = &event
	h.mu.Unlock()
	h.broadcast(Event{Type: "capture", SessionID: event.SessionID, Capture: &CaptureInfo{
		Seq:    event.Frame.Seq,
		Width:  event.Frame.Width,
		Height: event.Frame.Height,
		Bytes:  len(event.Frame.Data),
		At:     event.At,
	}})
}

func (h *Hub) Error(sessionID string, err error) {
	ev := Event{Type: "error", SessionID: sessionID, Error: err.Error()}
	h.mu.Lock()
	h.lastErr = &ev
	h.mu.Unlock()
	h.broadcast(ev)
}

// Latest returns the most recent status update.
func (h *Hub) Latest() types.StatusUpdate {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// LastCapture returns the most recent capture, if any.
func (h *Hub) LastCapture() (types.CaptureEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.capture == nil {
		return types.CaptureEvent{}, false
	}
	return *h.capture, true
}

// LastError returns the error that ended the most recent session, cleared when a new one starts loading.
func (h *Hub) LastError() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastErr == nil {
		return ""
	}
	return h.lastErr.Error
}

// Clients is the number of connected WebSocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to encode event", "type", ev.Type, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("dropping event for slow client", "type", ev.Type)
		}
	}
}

// ServeWS upgrades the request and streams events until the client goes away.
// The current status is sent first so late joiners are in sync.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	current := h.status
	if msg, err := json.Marshal(Event{Type: "status", SessionID: current.SessionID, Status: &current}); err == nil {
		c.send <- msg
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and unregisters the client once the connection fails.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket closed unexpectedly", "err", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
