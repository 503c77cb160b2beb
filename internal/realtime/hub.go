// Package realtime streams two-tier customer search over WebSocket: each
// connection owns one search session.
package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/models"
	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/internal/search"
	"github.com/smartsupply/agent/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 10
	lookupTimeout  = 5 * time.Second

	defaultBufferSize = 64
)

// SessionFactory opens search sessions.
type SessionFactory interface {
	NewSession(onUpdate func(search.Update)) *search.Session
}

// CustomerLookup resolves a selected customer id.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, id string) (models.CachedCustomer, bool, error)
}

// Hub tracks the open search connections.
type Hub struct {
	sessions  SessionFactory
	customers CustomerLookup
	upgrader  websocket.Upgrader
	log       *zap.Logger

	mu    sync.Mutex
	conns map[*connection]struct{}
}

// NewHub constructs a hub. With no allowed origins, same-host and loopback
// origins are accepted.
func NewHub(sessions SessionFactory, customers CustomerLookup, allowedOrigins []string) *Hub {
	origins := make(map[string]struct{}, len(allowedOrigins))
	allowAny := false
	for _, origin := range allowedOrigins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		switch origin {
		case "":
		case "*":
			allowAny = true
		default:
			origins[origin] = struct{}{}
		}
	}

	return &Hub{
		sessions:  sessions,
		customers: customers,
		log:       logger.WithModule("realtime"),
		conns:     make(map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAny {
					return true
				}
				if len(origins) > 0 {
					_, ok := origins[strings.ToLower(strings.TrimRight(origin, "/"))]
					return ok
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
}

// Serve upgrades the HTTP connection to a WebSocket and runs a search session
// on it until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		monitoring.RecordRealtimeFailure("upgrade", err.Error())
		return
	}

	client := newConnection(h, conn)
	client.session = h.sessions.NewSession(func(u search.Update) {
		client.enqueue(Message{Event: EventResults, Data: u})
	})

	if !h.register(client) {
		client.close()
		return
	}
	monitoring.RecordRealtimeConnection(1)
	h.log.Debug("search stream opened", zap.String("session", client.session.ID()))

	go client.writeLoop()
	client.readLoop()
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.mu.Unlock()

	for client := range conns {
		client.close()
	}
}

func (h *Hub) register(client *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns == nil {
		return false
	}
	h.conns[client] = struct{}{}
	return true
}

func (h *Hub) unregister(client *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[client]; !ok {
		return false
	}
	delete(h.conns, client)
	return true
}

type connection struct {
	hub     *Hub
	socket  *websocket.Conn
	session *search.Session
	send    chan Message
	done    chan struct{}
	once    sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn) *connection {
	return &connection{
		hub:    hub,
		socket: conn,
		send:   make(chan Message, defaultBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks. A client that cannot keep up is disconnected.
func (c *connection) enqueue(message Message) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- message:
	case <-c.done:
	default:
		monitoring.RecordRealtimeFailure("backpressure", "send buffer full")
		c.hub.log.Warn("dropping slow search client")
		go c.close()
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("unexpected close", zap.Error(err))
			}
			return
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			monitoring.RecordRealtimeFailure("protocol", err.Error())
			c.enqueue(Message{Event: EventError, Data: errorData{Message: "invalid message"}})
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case ActionQuery:
			c.session.SetQuery(ctrl.Query)
		case ActionSelect:
			c.selectCustomer(ctrl.CustomerID)
		case ActionPing:
			c.enqueue(Message{Event: EventPong})
		default:
			c.enqueue(Message{Event: EventError, Data: errorData{Message: "unsupported action " + ctrl.Action}})
		}
	}
}

func (c *connection) selectCustomer(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		c.enqueue(Message{Event: EventError, Data: errorData{Message: "customerId is required"}})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	customer, ok, err := c.hub.customers.GetCustomer(ctx, id)
	if err != nil {
		c.hub.log.Warn("selected customer lookup failed", zap.String("customer", id), zap.Error(err))
	}
	if !ok {
		// Remote results are cached on arrival, but the cache may be unavailable.
		customer = models.CachedCustomer{ID: id}
	}

	c.session.Select(customer)
	c.enqueue(Message{Event: EventSelected, Data: customer})
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		if c.session != nil {
			c.session.Close()
		}
		close(c.done)
		if c.hub.unregister(c) {
			monitoring.RecordRealtimeConnection(-1)
		}
		// Let the write loop send the close frame before the socket goes.
		time.AfterFunc(writeWait, func() { _ = c.socket.Close() })
		_ = c.socket.SetReadDeadline(time.Now())
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
