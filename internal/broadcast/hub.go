package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/foodlens/foodlens-go/internal/errors"
	"github.com/foodlens/foodlens-go/internal/logging"
	"github.com/foodlens/foodlens-go/internal/observability/metrics"
)

// writeDeadline bounds how long a single observer write may block.
const writeDeadline = 5 * time.Second

// Conn is the subset of a WebSocket connection the hub needs. Gorilla
// connections satisfy it directly.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// deadlineSetter is implemented by real network connections.
type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

type connInfo struct {
	ConnectedAt time.Time
	ClientInfo  string
}

// ClientStat describes one active connection for the stats endpoint.
type ClientStat struct {
	ClientInfo      string  `json:"client_info"`
	ConnectedAt     string  `json:"connected_at"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Stats is a point-in-time snapshot of hub membership.
type Stats struct {
	TotalConnections int          `json:"total_connections"`
	Clients          []ClientStat `json:"clients"`
}

// Hub tracks active observer connections and delivers messages to them.
// All methods are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[Conn]connInfo
	metrics *metrics.BroadcastMetrics
	log     *slog.Logger
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[Conn]connInfo),
		log:     logging.ForService("broadcast"),
	}
}

// SetMetrics attaches broadcast metrics to the hub. Call before serving,
// the field is not guarded by the hub mutex.
func (h *Hub) SetMetrics(m *metrics.BroadcastMetrics) {
	h.metrics = m
}

// dropObserver removes a failed connection and records the drop.
func (h *Hub) dropObserver(conn Conn) {
	h.Unregister(conn)
	_ = conn.Close()
	if h.metrics != nil {
		h.metrics.IncrementDroppedObservers()
	}
}

// Register adds a connection to the hub. Registering an already present
// connection updates its client info without changing the count.
func (h *Hub) Register(conn Conn, clientInfo string) {
	if conn == nil {
		return
	}

	h.mu.Lock()
	info, exists := h.clients[conn]
	if !exists {
		info.ConnectedAt = time.Now()
	}
	info.ClientInfo = clientInfo
	h.clients[conn] = info
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("Observer connected", "client", clientInfo, "total_connections", count)
}

// Unregister removes a connection from the hub. Unknown connections are
// ignored, so callers may unregister on every disconnect path.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	info, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if exists {
		h.log.Info("Observer disconnected", "client", info.ClientInfo, "total_connections", count)
	}
}

// Count returns the number of active connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendTo delivers a message to a single connection. On write failure the
// connection is dropped from the hub and closed.
func (h *Hub) SendTo(conn Conn, msg Message) error {
	if conn == nil {
		return errors.Newf("send to nil connection").
			Category(errors.CategoryBroadcast).
			Component("broadcast").
			Build()
	}

	if err := h.write(conn, newEnvelope(msg, h.Count())); err != nil {
		h.dropObserver(conn)
		return errors.New(err).
			Category(errors.CategoryBroadcast).
			Component("broadcast").
			Context("message_type", msg.Type).
			Build()
	}
	return nil
}

// Broadcast delivers a message to every connection. Failed observers are
// dropped after the sweep so one bad connection never blocks the rest.
// Returns the number of successful deliveries.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return 0
	}

	env := newEnvelope(msg, len(conns))

	var dead []Conn
	delivered := 0
	for _, conn := range conns {
		if err := h.write(conn, env); err != nil {
			h.log.Warn("Dropping unresponsive observer",
				"message_type", msg.Type, "error", err)
			dead = append(dead, conn)
			continue
		}
		delivered++
	}

	for _, conn := range dead {
		h.dropObserver(conn)
	}

	return delivered
}

// write sends one envelope, bounding the write on real connections.
func (h *Hub) write(conn Conn, env envelope) error {
	if d, ok := conn.(deadlineSetter); ok {
		if err := d.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
			return err
		}
	}
	return conn.WriteJSON(env)
}

// Stats returns a snapshot of the current hub membership.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	stats := Stats{
		TotalConnections: len(h.clients),
		Clients:          make([]ClientStat, 0, len(h.clients)),
	}
	for _, info := range h.clients {
		stats.Clients = append(stats.Clients, ClientStat{
			ClientInfo:      info.ClientInfo,
			ConnectedAt:     info.ConnectedAt.Format(time.RFC3339),
			DurationSeconds: now.Sub(info.ConnectedAt).Seconds(),
		})
	}
	return stats
}

// CloseAll disconnects every observer, typically during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[Conn]connInfo)
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
