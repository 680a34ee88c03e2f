// README: WebSocket hub that broadcasts order events to every connected client.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fooddash/internal/apperr"
	"fooddash/internal/metrics"
	"fooddash/internal/modules/order"
)

var (
	ErrNotInitialized = apperr.New(apperr.KindServiceUnavailable, "notifier not initialized")
	ErrTooManyClients = apperr.New(apperr.KindServiceUnavailable, "too many real-time clients")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type HubOptions struct {
	// ClientBuffer is the per-client send queue length.
	ClientBuffer int
	// MaxClients caps concurrent connections; zero means unbounded.
	MaxClients int
}

type Hub struct {
	opts HubOptions
	log  logrus.FieldLogger

	mu          sync.RWMutex
	clients     map[*client]struct{}
	initialized bool
	closed      bool
	upgrader    websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	uid  string
}

func NewHub(opts HubOptions, log logrus.FieldLogger) *Hub {
	if opts.ClientBuffer < 1 {
		opts.ClientBuffer = 64
	}
	return &Hub{
		opts:    opts,
		log:     log.WithField("component", "notify.hub"),
		clients: map[*client]struct{}{},
	}
}

// Initialize binds the hub to its transport. Browser origins outside
// allowedOrigins are refused; no origins means any origin is accepted.
// Calling it again is a no-op.
func (h *Hub) Initialize(allowedOrigins ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		h.log.Warn("notifier already initialized")
		return
	}
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		if o != "" {
			allowed[o] = true
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed[origin]
		},
	}
	h.initialized = true
	h.closed = false
	h.log.Info("notifier initialized")
}

// Shutdown disconnects every client. Calling it on a hub that is not
// running is a no-op.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.initialized || h.closed {
		h.log.Warn("notifier not running, nothing to shut down")
		return
	}
	h.closed = true
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
			_ = c.conn.Close()
		}
	}
	metrics.WSClients.Set(0)
	h.log.Info("notifier shut down")
}

func (h *Hub) running() bool {
	return h.initialized && !h.closed
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection. uid may be
// empty for anonymous listeners.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, uid string) error {
	h.mu.RLock()
	live := h.running()
	full := h.opts.MaxClients > 0 && len(h.clients) >= h.opts.MaxClients
	upgrader := h.upgrader
	h.mu.RUnlock()
	if !live {
		return ErrNotInitialized
	}
	if full {
		return ErrTooManyClients
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.WithError(err).Debug("websocket upgrade failed")
		return nil
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, h.opts.ClientBuffer), uid: uid}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"), time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}
	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running() {
		return false
	}
	if h.opts.MaxClients > 0 && len(h.clients) >= h.opts.MaxClients {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WSClients.Inc()
	h.log.WithFields(logrus.Fields{"uid": c.uid, "clients": len(h.clients)}).Debug("client connected")
	return true
}

// remove unregisters c and closes its send queue, which ends its write pump.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WSClients.Dec()
}

// Broadcast sends the event to every connected client. A client whose
// queue is full is disconnected rather than waited on.
func (h *Hub) Broadcast(ev Event) error {
	payload, err := ev.encode()
	if err != nil {
		return err
	}

	h.mu.RLock()
	if !h.running() {
		h.mu.RUnlock()
		return ErrNotInitialized
	}
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithFields(logrus.Fields{"uid": c.uid, "event": ev.Name}).Warn("client too slow, disconnecting")
		h.remove(c)
	}
	return nil
}

func (h *Hub) BroadcastTracking(ctx context.Context, info order.TrackingInfo) error {
	return h.Broadcast(NewTrackingEvent(ctx, info))
}

func (h *Hub) BroadcastOrderStatus(ctx context.Context, ev order.StatusEvent) error {
	return h.Broadcast(NewStatusEvent(ctx, ev))
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) Deliver(_ context.Context, ev Event) error {
	return h.Broadcast(ev)
}

// readPump only services control frames; clients do not send commands.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
