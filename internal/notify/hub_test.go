// README: Hub tests over a real WebSocket connection.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fooddash/internal/modules/order"
	"fooddash/internal/types"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestHub(t *testing.T, opts HubOptions) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(opts, quietLogger())
	hub.Initialize()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, r.URL.Query().Get("uid")); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEnvelope(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env received
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestHubBroadcastsToEveryClient(t *testing.T) {
	hub, srv := newTestHub(t, HubOptions{ClientBuffer: 8})
	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	info := order.TrackingInfo{
		OrderRef:         "abc",
		CurrentLocation:  types.Location{Lat: 1, Lng: 2},
		EstimatedArrival: ts.Add(10 * time.Minute),
		Status:           order.TrackingInTransit,
		LastUpdated:      ts,
	}
	if err := hub.BroadcastTracking(context.Background(), info); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if err := hub.BroadcastOrderStatus(context.Background(), order.StatusEvent{OrderID: "abc", Status: order.StatusReady, Timestamp: ts}); err != nil {
		t.Fatalf("broadcast status: %v", err)
	}

	for _, conn := range []*websocket.Conn{a, b} {
		env := readEnvelope(t, conn)
		if env.Event != "tracking:abc" {
			t.Fatalf("event = %q", env.Event)
		}
		var got order.TrackingInfo
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("decode tracking: %v", err)
		}
		if got.Status != order.TrackingInTransit || !got.EstimatedArrival.Equal(info.EstimatedArrival) {
			t.Fatalf("tracking payload = %+v", got)
		}

		env = readEnvelope(t, conn)
		if env.Event != "order:abc:status" {
			t.Fatalf("event = %q", env.Event)
		}
		var st order.StatusEvent
		if err := json.Unmarshal(env.Data, &st); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if st.OrderID != "abc" || st.Status != order.StatusReady {
			t.Fatalf("status payload = %+v", st)
		}
	}
}

func TestHubNotInitialized(t *testing.T) {
	hub := NewHub(HubOptions{}, quietLogger())
	err := hub.Broadcast(Event{Name: "tracking:x", Kind: KindTracking, OrderID: "x"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	rec := httptest.NewRecorder()
	if err := hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil), ""); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from ServeWS, got %v", err)
	}
	// Shutdown before Initialize only warns.
	hub.Shutdown()
}

func TestHubLifecycleIsIdempotent(t *testing.T) {
	hub, srv := newTestHub(t, HubOptions{})
	hub.Initialize()
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Shutdown()
	hub.Shutdown()
	if hub.ClientCount() != 0 {
		t.Fatalf("clients left after shutdown: %d", hub.ClientCount())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed by shutdown")
	}
	if err := hub.Broadcast(Event{Name: "tracking:x"}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("broadcast after shutdown: expected ErrNotInitialized, got %v", err)
	}
}

func TestHubClientCap(t *testing.T) {
	hub, srv := newTestHub(t, HubOptions{MaxClients: 1})
	dial(t, srv)
	waitForClients(t, hub, 1)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected second connection to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(HubOptions{ClientBuffer: 1}, quietLogger())
	hub.Initialize()
	slow := &client{hub: hub, send: make(chan []byte, 1), uid: "slow"}
	hub.mu.Lock()
	hub.clients[slow] = struct{}{}
	hub.mu.Unlock()

	ev := Event{Name: "tracking:x", Kind: KindTracking, OrderID: "x", Data: map[string]string{}}
	if err := hub.Broadcast(ev); err != nil {
		t.Fatalf("first broadcast: %v", err)
	}
	if err := hub.Broadcast(ev); err != nil {
		t.Fatalf("second broadcast: %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Fatal("slow client should have been disconnected")
	}
	if _, ok := <-slow.send; !ok {
		t.Fatal("first message should still be queued")
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("send queue should be closed")
	}
}
