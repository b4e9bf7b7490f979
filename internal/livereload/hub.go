// Package livereload implements the push channel that tells open browser
// tabs to reload after a successful rebuild.
package livereload

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	ssgerrors "github.com/conneroisu/ssg/internal/errors"
	"github.com/conneroisu/ssg/internal/logging"
)

const (
	// Path is where browsers open the push connection.
	Path = "/livereload"

	// ReloadMessage is the only payload ever sent.
	ReloadMessage = "reload"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Client is a registered push connection.
type Client struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time

	conn   *websocket.Conn
	cancel context.CancelFunc
}

// HubOptions configures a Hub.
type HubOptions struct {
	Logger logging.Logger

	// UpgradeRate and UpgradeBurst bound how fast new connections are
	// accepted across all clients.
	UpgradeRate  rate.Limit
	UpgradeBurst int

	PingPeriod   time.Duration
	WriteTimeout time.Duration
}

// Hub owns the registry of open push connections.
type Hub struct {
	logger       logging.Logger
	limiter      *rate.Limiter
	pingPeriod   time.Duration
	writeTimeout time.Duration

	mutex   sync.RWMutex
	clients map[*websocket.Conn]*Client
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if opts.UpgradeRate == 0 {
		opts.UpgradeRate = 10
	}
	if opts.UpgradeBurst == 0 {
		opts.UpgradeBurst = 20
	}
	if opts.PingPeriod == 0 {
		opts.PingPeriod = pingPeriod
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = writeWait
	}

	return &Hub{
		logger:       logger.WithComponent("livereload"),
		limiter:      rate.NewLimiter(opts.UpgradeRate, opts.UpgradeBurst),
		pingPeriod:   opts.PingPeriod,
		writeTimeout: opts.WriteTimeout,
		clients:      make(map[*websocket.Conn]*Client),
	}
}

func isUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}

	for _, v := range strings.Split(r.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(v), "upgrade") {
			return true
		}
	}

	return false
}

// HandleWebSocket upgrades the request and serves the connection until the
// client goes away or the hub is closed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	if !isUpgrade(r) {
		http.Error(w, "Expected WebSocket upgrade", http.StatusBadRequest)
		return
	}

	if !h.limiter.Allow() {
		http.Error(w, "Too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:          uuid.NewString(),
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
		cancel:      cancel,
	}

	if !h.register(client) {
		cancel()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go h.pingLoop(ctx, client)
	h.readLoop(ctx, client)
}

func (h *Hub) register(c *Client) bool {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return false
	}
	h.clients[c.conn] = c
	count := len(h.clients)
	h.mutex.Unlock()

	h.logger.Info(context.Background(), "Client connected", "id", c.ID, "remote", c.RemoteAddr, "total", count)

	return true
}

// remove unregisters c and closes its connection. It reports whether c was
// still registered.
func (h *Hub) remove(c *Client) bool {
	h.mutex.Lock()
	_, ok := h.clients[c.conn]
	if ok {
		delete(h.clients, c.conn)
	}
	count := len(h.clients)
	h.mutex.Unlock()

	c.cancel()
	if ok {
		_ = c.conn.CloseNow()
		h.logger.Info(context.Background(), "Client disconnected", "id", c.ID, "total", count)
	}

	return ok
}

// readLoop discards client messages; it exists to process control frames
// and notice when the client goes away.
func (h *Hub) readLoop(ctx context.Context, c *Client) {
	defer h.remove(c)

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				h.logger.Debug(ctx, "WebSocket read ended", "id", c.ID, "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) pingLoop(ctx context.Context, c *Client) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Debug(ctx, "Ping failed", "id", c.ID, "error", err.Error())
				}
				h.remove(c)
				return
			}
		}
	}
}

// Broadcast sends msg to every registered connection concurrently and
// returns how many sends succeeded. A failed send removes that connection
// without affecting the others.
func (h *Hub) Broadcast(ctx context.Context, msg string) int {
	h.mutex.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mutex.RUnlock()

	if len(snapshot) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
		payload   = []byte(msg)
	)

	for _, c := range snapshot {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()

			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()

			if err != nil {
				h.logger.Warn(ctx, ssgerrors.NewBroadcastError(c.ID, err), "Removing client after failed send")
				h.remove(c)
				return
			}
			delivered.Add(1)
		}(c)
	}
	wg.Wait()

	n := int(delivered.Load())
	h.logger.Info(ctx, "Reload sent", "clients", n)

	return n
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

func (h *Hub) isClosed() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.closed
}

// Close closes every connection with a normal closure and rejects further
// registrations. It is safe to call more than once.
func (h *Hub) Close() error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil
	}
	h.closed = true
	snapshot := make([]*Client, 0, len(h.clients))
	for conn, c := range h.clients {
		snapshot = append(snapshot, c)
		delete(h.clients, conn)
	}
	h.mutex.Unlock()

	var wg sync.WaitGroup
	for _, c := range snapshot {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			_ = c.conn.Close(websocket.StatusNormalClosure, "server shutting down")
			c.cancel()
		}(c)
	}
	wg.Wait()

	return nil
}
