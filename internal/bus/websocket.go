package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/inkotake/ojoagent/internal/models"
)

// TaskChannel is the per-task channel name a WebSocket client subscribes to
// to observe that task's progress (spec §6.2).
func TaskChannel(taskID int64) string {
	return "task:" + strconv.FormatInt(taskID, 10)
}

// clientMessage is the JSON shape of a client -> server WebSocket message.
type clientMessage struct {
	Action  string `json:"action"` // "subscribe", "unsubscribe"
	Channel string `json:"channel,omitempty"`
}

// connection is one WebSocket client. subscriptions is owned exclusively by
// the read loop goroutine in HandleConnection and its deferred cleanup, so
// it is deliberately unguarded by a mutex — mirroring the single-owner
// rationale tarsy's ConnectionManager documents for the same field.
type connection struct {
	id            string
	conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// Fanout bridges the Bus to WebSocket clients: it subscribes to every topic
// on the Bus and re-publishes each event as JSON to whichever connections
// are subscribed to that event's task channel.
type Fanout struct {
	writeTimeout time.Duration

	mu          sync.RWMutex
	connections map[string]*connection

	channelMu sync.RWMutex
	channels  map[string]map[string]bool // channel -> set of connection IDs
}

// NewFanout builds a Fanout and wires it to bus so every published event is
// automatically broadcast to subscribed connections.
func NewFanout(b *Bus, writeTimeout time.Duration) *Fanout {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	f := &Fanout{
		writeTimeout: writeTimeout,
		connections:  make(map[string]*connection),
		channels:     make(map[string]map[string]bool),
	}
	b.Subscribe(WildcardAll, f.onEvent)
	return f
}

func (f *Fanout) onEvent(ctx context.Context, topic string, event models.ProgressEvent) {
	channel := TaskChannel(event.TaskID)
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("bus: failed to marshal event for websocket fan-out", "topic", topic, "error", err)
		return
	}
	f.broadcast(channel, payload)
}

// HandleConnection manages one WebSocket client end to end, blocking until
// it disconnects. Call from the HTTP handler after upgrading the request.
func (f *Fanout) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{
		id:            uuid.New().String(),
		conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	f.register(c)
	defer f.unregister(c)

	f.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": c.id})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("bus: invalid websocket client message", "connection_id", c.id, "error", err)
			continue
		}
		f.handleClientMessage(c, msg)
	}
}

func (f *Fanout) handleClientMessage(c *connection, msg clientMessage) {
	if msg.Channel == "" {
		f.sendJSON(c, map[string]string{"type": "error", "message": "channel is required"})
		return
	}

	switch msg.Action {
	case "subscribe":
		f.subscribe(c, msg.Channel)
		f.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
	case "unsubscribe":
		f.unsubscribe(c, msg.Channel)
	default:
		f.sendJSON(c, map[string]string{"type": "error", "message": "unknown action"})
	}
}

func (f *Fanout) register(c *connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections[c.id] = c
}

func (f *Fanout) unregister(c *connection) {
	for ch := range c.subscriptions {
		f.unsubscribe(c, ch)
	}

	f.mu.Lock()
	delete(f.connections, c.id)
	f.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (f *Fanout) subscribe(c *connection, channel string) {
	c.subscriptions[channel] = true

	f.channelMu.Lock()
	defer f.channelMu.Unlock()
	if f.channels[channel] == nil {
		f.channels[channel] = make(map[string]bool)
	}
	f.channels[channel][c.id] = true
}

func (f *Fanout) unsubscribe(c *connection, channel string) {
	delete(c.subscriptions, channel)

	f.channelMu.Lock()
	defer f.channelMu.Unlock()
	if subs, ok := f.channels[channel]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(f.channels, channel)
		}
	}
}

// broadcast sends payload to every connection subscribed to channel.
// Subscriber IDs and connection pointers are snapshotted under their
// respective locks, then released before any (potentially slow) writes —
// so one stalled client can't stall register/unregister of every other
// connection.
func (f *Fanout) broadcast(channel string, payload []byte) {
	f.channelMu.RLock()
	subs, ok := f.channels[channel]
	if !ok {
		f.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	f.channelMu.RUnlock()

	f.mu.RLock()
	conns := make([]*connection, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	f.mu.RUnlock()

	for _, c := range conns {
		if err := f.sendRaw(c, payload); err != nil {
			slog.Warn("bus: failed to send websocket message", "connection_id", c.id, "error", err)
		}
	}
}

func (f *Fanout) sendJSON(c *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("bus: failed to marshal websocket message", "connection_id", c.id, "error", err)
		return
	}
	if err := f.sendRaw(c, data); err != nil {
		slog.Warn("bus: failed to send websocket message", "connection_id", c.id, "error", err)
	}
}

func (f *Fanout) sendRaw(c *connection, data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, f.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// ActiveConnections reports the current connection count, for health/metrics.
func (f *Fanout) ActiveConnections() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.connections)
}
