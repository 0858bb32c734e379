package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
)

const wsWriteTimeout = 5 * time.Second

type snapshotMessage struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Hosts       []domain.HostSnapshot `json:"hosts"`
}

type wsClient struct {
	send chan []byte
}

// Hub relays round snapshots to WebSocket clients. Each client holds at most
// one pending frame; a slow client only ever sees the newest snapshot.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	latest  []byte
	quit    chan struct{}
	closed  bool
}

// NewHub accepts same-host origins plus any listed in origins ("*" allows all).
func NewHub(log *zap.Logger, origins []string) *Hub {
	h := &Hub{
		log:     log,
		clients: make(map[*wsClient]struct{}),
		quit:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		return originAllowed(r, origins)
	}}
	return h
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Host), u.Host)
}

// OnSnapshot implements scheduler.SnapshotSink.
func (h *Hub) OnSnapshot(hosts []domain.HostSnapshot) {
	b, err := json.Marshal(snapshotMessage{GeneratedAt: time.Now().UTC(), Hosts: hosts})
	if err != nil {
		h.log.Warn("ws_encode_error", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = b
	for c := range h.clients {
		offer(c, b)
	}
}

// offer replaces any frame the client has not picked up yet.
func offer(c *wsClient, b []byte) {
	select {
	case c.send <- b:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- b:
	default:
	}
}

// Latest returns the most recent encoded snapshot, or nil before the first round.
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		offer(c, h.latest)
	}
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Close ends every client connection. The hub accepts no new clients afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.quit)
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &wsClient{send: make(chan []byte, 1)}
	if !h.register(c) {
		return
	}
	defer h.unregister(c)
	h.log.Debug("ws_connected", zap.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case b := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-done:
			return
		case <-h.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
