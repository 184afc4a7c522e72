package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// statusInterval is how often the hub pushes a status frame to
// connected clients.
const statusInterval = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST surface is already wide open behind CORS; the socket
	// carries the same read-only status payload.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusHub fans periodic status snapshots out to websocket clients.
type statusHub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newStatusHub(logger *slog.Logger) *statusHub {
	return &statusHub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *statusHub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *statusHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	c.Close()
}

// run broadcasts snapshots every interval until the context ends. A
// write failure drops that client only.
func (h *statusHub) run(ctx context.Context, interval time.Duration, snapshot func() map[string]any) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.broadcast(snapshot())
		}
	}
}

func (h *statusHub) broadcast(payload map[string]any) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteJSON(payload); err != nil {
			h.logger.Debug("websocket write failed, dropping client", "error", err)
			h.remove(c)
		}
	}
}

func (h *statusHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.Close()
	}
	h.conns = make(map[*websocket.Conn]struct{})
}

// handleStatusSocket upgrades the connection and streams status
// frames. The first frame is sent immediately so clients do not wait a
// full interval for data.
func (s *Server) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// The first frame goes out before the hub learns about this
	// connection: once added, the broadcast goroutine may write at any
	// tick, and a websocket conn allows only one writer at a time.
	if err := conn.WriteJSON(s.statusSnapshot()); err != nil {
		conn.Close()
		return
	}

	s.hub.add(conn)
	s.logger.Debug("websocket client connected", "remote", conn.RemoteAddr())

	// Reader loop detects client disconnects; inbound frames are
	// ignored.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
