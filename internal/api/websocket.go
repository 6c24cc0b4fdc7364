package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/input-dock-core/internal/controller"
	"github.com/nerrad567/input-dock-core/internal/focus"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/config"
	"github.com/nerrad567/input-dock-core/internal/infrastructure/logging"
)

// Client-facing message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// sessionBuffer is the per-session outbound queue. A session that falls this
// far behind starts losing events rather than stalling the broadcast.
const sessionBuffer = 256

// WSMessage is the frame exchanged with WebSocket clients in both
// directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload carries the channel list for subscribe and unsubscribe
// requests.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware in front of the upgrade.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub tracks live WebSocket sessions and fans events out to them. Sessions
// choose what they receive by subscribing to named channels such as
// "device.connected" or "focus.changed".
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[*wsSession]struct{}
}

// wsSession is one upgraded connection plus its channel subscriptions.
type wsSession struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[*wsSession]struct{}),
	}
}

// Run blocks until ctx is cancelled, then tears down every session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for sess := range h.sessions {
		close(sess.send)
		if sess.conn != nil {
			sess.conn.Close()
		}
		delete(h.sessions, sess)
	}
}

func (h *Hub) attach(sess *wsSession) {
	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// detach removes the session. The send channel is closed exactly once: only
// the caller that actually deleted the map entry closes it, which keeps a
// concurrent Run shutdown from double-closing.
func (h *Hub) detach(sess *wsSession) {
	h.mu.Lock()
	_, present := h.sessions[sess]
	delete(h.sessions, sess)
	h.mu.Unlock()

	if present {
		close(sess.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// ClientCount returns the number of live sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast delivers payload to every session subscribed to channel. The
// session list is snapshotted first so no session lock is taken while the
// hub lock is held.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	recipients := make([]*wsSession, 0, len(h.sessions))
	for sess := range h.sessions {
		recipients = append(recipients, sess)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sess := range recipients {
		if sess.subscribedTo(channel) {
			sess.enqueue(data)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", delivered)
	}
}

// subscribeBusEvents relays in-process device and focus events into the hub.
func (s *Server) subscribeBusEvents() {
	if s.bus == nil {
		return
	}

	s.busSubs = append(s.busSubs,
		s.bus.Subscribe(controller.EventDeviceConnected, "", func(_ string, payload any) {
			if dev, ok := payload.(controller.Device); ok {
				s.hub.Broadcast("device.connected", dev)
			}
		}),
		s.bus.Subscribe(controller.EventDeviceDisconnected, "", func(_ string, payload any) {
			if dev, ok := payload.(controller.Device); ok {
				s.hub.Broadcast("device.disconnected", dev)
			}
		}),
		s.bus.Subscribe(focus.EventFocusChanged, "", func(surface string, _ any) {
			s.hub.Broadcast("focus.changed", map[string]any{
				"surface":   surface,
				"has_focus": s.tracker != nil && s.tracker.HasFocus(surface),
			})
		}),
	)
}

// handleWebSocket upgrades the connection. Auth is a single-use ticket from
// POST /auth/ws-ticket, passed as a query parameter because browsers cannot
// set headers on WebSocket dials.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	if !s.tickets.redeem(ticket) {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := &wsSession{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, sessionBuffer),
		channels: make(map[string]struct{}),
	}
	s.hub.attach(sess)

	go sess.writeLoop(s.wsCfg)
	go sess.readLoop(s.wsCfg)
}

// readLoop consumes inbound frames until the connection dies, then detaches
// the session.
func (c *wsSession) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any inbound frame proves the peer is alive, protocol pong or not.
		c.conn.SetReadDeadline(time.Now().Add(deadline)) //nolint:errcheck
		c.handleFrame(frame)
	}
}

// writeLoop drains the send queue and keeps the connection alive with
// protocol pings.
func (c *wsSession) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case frame, open := <-c.send:
			if !open {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsSession) handleFrame(frame []byte) {
	var msg WSMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.updateChannels(msg, true)
	case WSTypeUnsubscribe:
		c.updateChannels(msg, false)
	case WSTypePing:
		c.reply(msg.ID, WSTypePong, nil)
	default:
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// updateChannels applies a subscribe or unsubscribe request and confirms it.
func (c *wsSession) updateChannels(msg WSMessage, add bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid payload"})
		return
	}
	var req WSSubscribePayload
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(msg.ID, WSTypeError, map[string]string{"message": "invalid channel payload"})
		return
	}

	c.mu.Lock()
	for _, ch := range req.Channels {
		if add {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	if add {
		c.hub.logger.Info("websocket client subscribed", "channels", req.Channels)
		c.reply(msg.ID, WSTypeResponse, map[string]any{"subscribed": req.Channels})
		return
	}
	c.reply(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": req.Channels})
}

func (c *wsSession) subscribedTo(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue queues a frame without blocking. A full buffer drops the frame; a
// channel closed by a concurrent detach is absorbed by the recover.
func (c *wsSession) enqueue(frame []byte) {
	defer func() {
		recover() //nolint:errcheck
	}()

	select {
	case c.send <- frame:
	default:
	}
}

// reply sends a direct response frame to this session only.
func (c *wsSession) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}
