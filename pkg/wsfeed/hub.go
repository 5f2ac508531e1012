// Package wsfeed pushes every trade record to connected dashboard clients
// over WebSocket. The feed is a sink like any other, but it carries no
// durability promise: nothing in the execution path ever waits for a slow
// dashboard.
package wsfeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

// Config holds hub configuration.
type Config struct {
	// SendBufferSize is the per-client outbound queue. A client that lets it
	// fill up is disconnected rather than allowed to apply backpressure.
	SendBufferSize int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	Logger         *zap.Logger
}

// Hub fans trade records out to every connected client.
type Hub struct {
	config   Config
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	wg sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	done chan struct{}
}

// shutdown asks both pumps to stop. Safe to call from any goroutine, any
// number of times.
func (c *client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

// New creates a hub.
func New(cfg Config) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 64
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	return &Hub{
		config: cfg,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from a different origin than the API.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and streams records until the client goes
// away. Mountable directly on a router.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws-upgrade-failed", zap.Error(err))
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()

		return
	}

	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	ClientsGauge.Set(float64(count))
	h.logger.Info("ws-client-connected",
		zap.String("remote", conn.RemoteAddr().String()),
		zap.Int("clients", count))

	h.wg.Add(2)
	go h.writePump(cl)
	go h.readPump(cl)
}

// StoreTrade implements the recorder sink: marshal once, fan out without
// blocking. It always reports success; losing a dashboard frame must never
// look like a recording failure.
func (h *Hub) StoreTrade(_ context.Context, rec *types.TradeRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("ws-marshal-failed", zap.String("trade-id", rec.TradeID), zap.Error(err))
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients {
		select {
		case cl.send <- payload:
			BroadcastsTotal.Inc()
		default:
			DroppedTotal.WithLabelValues("slow_client").Inc()
			h.logger.Warn("ws-client-dropped-slow")
			cl.shutdown()
		}
	}

	return nil
}

// ClientCount reports connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}

	h.closed = true

	for cl := range h.clients {
		cl.shutdown()
	}
	h.mu.Unlock()

	h.wg.Wait()

	ClientsGauge.Set(0)
	h.logger.Info("ws-feed-closed")

	return nil
}

// writePump drains the client queue under the write deadline and keeps the
// connection alive with pings. It owns teardown: when it exits, the client
// is unregistered and the socket closed.
func (h *Hub) writePump(cl *client) {
	defer h.wg.Done()
	defer h.drop(cl)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case payload := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))

			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("ws-write-failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			err := cl.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				h.logger.Debug("ws-ping-failed", zap.Error(err))
				return
			}
		}
	}
}

// readPump discards inbound frames. The feed is one-way, but reading is what
// surfaces close frames from the peer.
func (h *Hub) readPump(cl *client) {
	defer h.wg.Done()
	defer cl.shutdown()

	cl.conn.SetReadLimit(512)

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(cl *client) {
	cl.shutdown()
	_ = cl.conn.Close()

	h.mu.Lock()
	_, present := h.clients[cl]
	delete(h.clients, cl)
	count := len(h.clients)
	h.mu.Unlock()

	if present {
		ClientsGauge.Set(float64(count))
		h.logger.Info("ws-client-disconnected", zap.Int("clients", count))
	}
}
