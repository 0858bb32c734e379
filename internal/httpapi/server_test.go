package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	apimw "github.com/hamed0406/pingmonitor/internal/httpapi/middleware"
)

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", nil, true},
		{"http://monitor.local:8080", nil, true},
		{"http://evil.example", nil, false},
		{"http://evil.example", []string{"*"}, true},
		{"https://dash.example", []string{"https://dash.example"}, true},
		{"::bad", nil, false},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "http://monitor.local:8080/api/ws", nil)
		if c.origin != "" {
			r.Header.Set("Origin", c.origin)
		}
		if got := originAllowed(r, c.allowed); got != c.want {
			t.Fatalf("originAllowed(%q, %v)=%v want %v", c.origin, c.allowed, got, c.want)
		}
	}
}

func TestOffer_KeepsNewestFrame(t *testing.T) {
	c := &wsClient{send: make(chan []byte, 1)}
	offer(c, []byte("old"))
	offer(c, []byte("new"))
	if got := string(<-c.send); got != "new" {
		t.Fatalf("got %q want new", got)
	}
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
}

func readSnapshot(t *testing.T, conn *websocket.Conn) snapshotMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m snapshotMessage
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestHub_StreamsSnapshots(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	srv := &Server{Logger: zap.NewNop(), Hub: hub}
	ts := httptest.NewServer(srv.Router(apimw.Keys{Public: []string{"k"}}, nil, 0, 0))
	defer ts.Close()
	defer hub.Close()

	hub.OnSnapshot([]domain.HostSnapshot{{ID: "a", Active: true, History: []float64{1}}})

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, err=%v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts)+"?key=k", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// latest snapshot is replayed on connect
	if m := readSnapshot(t, conn); len(m.Hosts) != 1 || m.Hosts[0].ID != "a" {
		t.Fatalf("unexpected first frame: %+v", m)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.OnSnapshot([]domain.HostSnapshot{{ID: "a", Active: true, History: []float64{1, 0}}})
	if m := readSnapshot(t, conn); len(m.Hosts[0].History) != 2 {
		t.Fatalf("unexpected second frame: %+v", m)
	}

	hub.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
}

func TestHub_LatestBeforeFirstRound(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	if hub.Latest() != nil {
		t.Fatal("expected no snapshot yet")
	}
	hub.OnSnapshot(nil)
	if hub.Latest() == nil {
		t.Fatal("expected encoded snapshot")
	}
}
