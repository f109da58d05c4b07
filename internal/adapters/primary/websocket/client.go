package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// ClientConfig holds per-connection transport configuration.
type ClientConfig struct {
	// SendQueueSize bounds the outbound queue. An overflowing client is
	// disconnected rather than allowed to exhaust memory.
	SendQueueSize int

	// PongWait is how long to wait for a pong (or any read) before the
	// read pump gives up.
	PongWait time.Duration

	// PingPeriod is how often pings are sent. Must be less than PongWait.
	PingPeriod time.Duration
}

// DefaultClientConfig returns a sensible default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendQueueSize: 256,
		PongWait:      60 * time.Second,
		PingPeriod:    54 * time.Second,
	}
}

// Client adapts a gorilla websocket connection to ports.Connection. It owns
// the read and write pumps; the presence registry owns the client for its
// registered lifetime.
type Client struct {
	conn   *websocket.Conn
	id     uuid.UUID
	userID uuid.UUID

	// send is the bounded outbound queue. The write pump is its only
	// consumer.
	send chan domain.Event

	// done is closed exactly once on termination; it cancels pending sends.
	done      chan struct{}
	closeOnce sync.Once

	// lastBeat is the unix-nano time the peer was last heard from.
	lastBeat atomic.Int64

	presence ports.PresenceRegistry
	rooms    ports.RoomRegistry
	cfg      ClientConfig
	logger   *slog.Logger
}

// Ensure Client implements the Connection interface.
var _ ports.Connection = (*Client)(nil)

// NewClient creates a client for an upgraded websocket connection.
func NewClient(
	conn *websocket.Conn,
	userID uuid.UUID,
	presence ports.PresenceRegistry,
	rooms ports.RoomRegistry,
	cfg ClientConfig,
	logger *slog.Logger,
) *Client {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = DefaultClientConfig().SendQueueSize
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultClientConfig().PongWait
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = (cfg.PongWait * 9) / 10
	}

	c := &Client{
		conn:     conn,
		id:       uuid.New(),
		userID:   userID,
		send:     make(chan domain.Event, cfg.SendQueueSize),
		done:     make(chan struct{}),
		presence: presence,
		rooms:    rooms,
		cfg:      cfg,
		logger:   logger.With("user_id", userID.String()),
	}
	c.Touch()
	return c
}

func (c *Client) ID() uuid.UUID     { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// Enqueue places an event on the outbound queue without blocking.
func (c *Client) Enqueue(event domain.Event) error {
	select {
	case <-c.done:
		return apperrors.ErrAlreadyClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.done:
		return apperrors.ErrAlreadyClosed
	default:
		return apperrors.ErrQueueOverflow
	}
}

// Close terminates the connection and cancels pending sends. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Closed reports whether the connection has been terminated.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Touch records that the peer was just heard from.
func (c *Client) Touch() {
	c.lastBeat.Store(time.Now().UnixNano())
}

// LastHeartbeat returns the time the peer was last heard from.
func (c *Client) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastBeat.Load())
}

// ReadPump pumps messages from the websocket connection into the registries.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.presence.Unregister(c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		c.Touch()
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.Touch()
		c.handleIncomingMessage(message)
	}
}

// WritePump pumps events from the outbound queue to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case event := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}
			if err := c.writeJSON(event); err != nil {
				c.logger.Error("failed to write event", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// writeJSON writes a JSON event to the websocket connection
func (c *Client) writeJSON(event domain.Event) error {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(event); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload is the payload for subscribe/unsubscribe messages
type SubscribePayload struct {
	RoomKey string `json:"roomKey"`
}

// handleIncomingMessage processes messages received from the client
func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case "SUBSCRIBE_TO_ROOM":
		c.handleSubscribe(msg.Payload)

	case "UNSUBSCRIBE_FROM_ROOM":
		c.handleUnsubscribe(msg.Payload)

	case "PING":
		// Client-side keep-alive counts as a heartbeat.
		c.presence.Heartbeat(c.id)

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

func (c *Client) handleSubscribe(payload json.RawMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal subscribe payload", "error", err)
		return
	}

	if p.RoomKey == "" {
		c.logger.Warn("empty room key in subscribe request")
		return
	}

	c.rooms.Subscribe(p.RoomKey, c.userID)
}

func (c *Client) handleUnsubscribe(payload json.RawMessage) {
	var p SubscribePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.Warn("failed to unmarshal unsubscribe payload", "error", err)
		return
	}

	if p.RoomKey == "" {
		return
	}

	c.rooms.Unsubscribe(p.RoomKey, c.userID)
}
