package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/surfacehq/surface/finding"
)

// Event types pushed to dashboard clients.
const (
	EventFindingCreated  = "finding.created"
	EventStatusChanged   = "finding.status_changed"
	EventSeverityChanged = "finding.severity_changed"
	EventAssigneeChanged = "finding.assignee_changed"
)

// Event is one message on the websocket feed.
type Event struct {
	Type      string           `json:"type"`
	TenantID  string           `json:"tenant_id"`
	Finding   *finding.Finding `json:"finding"`
	Timestamp time.Time        `json:"timestamp"`
}

// hub fans events out to the websocket subscribers of each tenant. Slow
// or dead connections are dropped rather than blocking the publisher.
type hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]string // conn -> tenant
}

func newHub(logger *slog.Logger) *hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &hub{
		logger: logger.With("component", "events"),
		conns:  make(map[*websocket.Conn]string),
	}
}

// upgradeWebsocket rejects non-websocket requests on the /ws route. The
// auth middleware has already run, so the locals carry the tenant.
func (s *Server) upgradeWebsocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("allowed", true)
	return c.Next()
}

// serve registers the connection and blocks reading until the client
// disconnects. Clients only receive; inbound messages are discarded.
func (h *hub) serve(conn *websocket.Conn) {
	tenant, _ := conn.Locals(localTenantID).(string)
	if tenant == "" {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.conns[conn] = tenant
	h.mu.Unlock()
	h.logger.Debug("websocket subscribed", "tenant", tenant)

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// publish sends the event to every subscriber of its tenant.
func (h *hub) publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, tenant := range h.conns {
		if tenant != event.TenantID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("dropping websocket subscriber", "tenant", tenant, "error", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

// closeAll terminates every subscriber, used during shutdown.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]string)
}

// publishFinding emits a finding event on the feed.
func (s *Server) publishFinding(eventType, tenant string, f *finding.Finding) {
	s.hub.publish(Event{
		Type:      eventType,
		TenantID:  tenant,
		Finding:   f,
		Timestamp: time.Now(),
	})
}
