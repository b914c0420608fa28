package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/pkg/metrics"
)

// ErrHubStopped is returned by calls made after the hub loop exited.
var ErrHubStopped = errors.New("websocket hub is not running")

// Socket is the write side of a live client connection.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// PubSub propagates events between nodes. *valkey.Client implements it.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, fn func(payload []byte)) error
}

// Envelope is the JSON frame pushed to chat UIs.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// BroadcastReport summarizes one broadcast pass.
type BroadcastReport struct {
	Delivered int `json:"delivered"`
	Removed   int `json:"removed"`
}

type remoteEvent struct {
	SenderID string          `json:"sender_id"`
	TenantID string          `json:"tenant_id"`
	Payload  json.RawMessage `json:"payload"`
}

type registration struct {
	tenantID string
	socket   Socket
	done     chan struct{}
}

type broadcastRequest struct {
	tenantID string
	payload  []byte
	reply    chan BroadcastReport
}

type countRequest struct {
	tenantID string
	reply    chan map[string]int
}

type notification struct {
	tenantID string
	payload  []byte
	remote   bool
}

// Hub owns the tenant -> sockets registry. Only the Run goroutine touches the
// map; every other method talks to it through channels.
type Hub struct {
	clients map[string]map[Socket]struct{}

	register   chan registration
	unregister chan registration
	broadcast  chan broadcastRequest
	counts     chan countRequest
	notify     chan notification

	pubsub   PubSub
	channel  string
	serverID string

	running atomic.Bool
	stopped chan struct{}
}

type HubConfig struct {
	QueueSize int
	PubSub    PubSub // nil desactiva el fan-out entre nodos
	Channel   string
	ServerID  string
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Channel == "" {
		cfg.Channel = "whatspy:ws_events"
	}
	return &Hub{
		clients:    make(map[string]map[Socket]struct{}),
		register:   make(chan registration),
		unregister: make(chan registration),
		broadcast:  make(chan broadcastRequest),
		counts:     make(chan countRequest),
		notify:     make(chan notification, cfg.QueueSize),
		pubsub:     cfg.PubSub,
		channel:    cfg.Channel,
		serverID:   cfg.ServerID,
		stopped:    make(chan struct{}),
	}
}

// Run processes hub requests until ctx is cancelled. All registered sockets
// are closed on exit. Run must be called exactly once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.closeAll()
		close(h.stopped)
		logrus.Info("[WS] Hub stopped")
	}()

	if h.pubsub != nil {
		go h.subscribe(ctx)
	}

	logrus.Info("[WS] Hub started")
	for {
		select {
		case <-ctx.Done():
			return

		case reg := <-h.register:
			h.add(reg.tenantID, reg.socket)
			close(reg.done)

		case reg := <-h.unregister:
			h.remove(reg.tenantID, reg.socket, false)
			close(reg.done)

		case req := <-h.broadcast:
			req.reply <- h.deliver(req.tenantID, req.payload)

		case req := <-h.counts:
			req.reply <- h.snapshot(req.tenantID)

		case n := <-h.notify:
			h.deliver(n.tenantID, n.payload)
			if h.pubsub != nil && !n.remote {
				h.publish(ctx, n.tenantID, n.payload)
			}
		}
	}
}

// Connect registers socket under tenantID. It returns once the socket is
// visible to subsequent broadcasts.
func (h *Hub) Connect(tenantID string, socket Socket) error {
	reg := registration{tenantID: tenantID, socket: socket, done: make(chan struct{})}
	select {
	case h.register <- reg:
	case <-h.stopped:
		return ErrHubStopped
	}
	<-reg.done
	return nil
}

// Disconnect removes socket from tenantID. Unknown sockets are ignored.
func (h *Hub) Disconnect(tenantID string, socket Socket) {
	reg := registration{tenantID: tenantID, socket: socket, done: make(chan struct{})}
	select {
	case h.unregister <- reg:
		<-reg.done
	case <-h.stopped:
	}
}

// Broadcast sends payload to every socket of tenantID and waits for the pass
// to finish. Sockets that fail are removed after the pass.
func (h *Hub) Broadcast(ctx context.Context, tenantID string, payload []byte) (BroadcastReport, error) {
	req := broadcastRequest{tenantID: tenantID, payload: payload, reply: make(chan BroadcastReport, 1)}
	select {
	case h.broadcast <- req:
	case <-h.stopped:
		return BroadcastReport{}, ErrHubStopped
	case <-ctx.Done():
		return BroadcastReport{}, ctx.Err()
	}
	return <-req.reply, nil
}

// Notify queues an event for tenantID without blocking. The event is dropped
// when the queue is full or the hub is not running.
func (h *Hub) Notify(tenantID, event string, data any) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		logrus.WithField("event", event).WithError(err).Error("[WS] Marshal error")
		return
	}
	h.enqueue(notification{tenantID: tenantID, payload: payload})
}

func (h *Hub) enqueue(n notification) {
	fields := logrus.Fields{"tenant_id": n.tenantID}
	if !h.running.Load() {
		metrics.WSNotifyDropped.Inc()
		logrus.WithFields(fields).Debug("[WS] Hub not running, event dropped")
		return
	}
	select {
	case h.notify <- n:
	default:
		metrics.WSNotifyDropped.Inc()
		logrus.WithFields(fields).Warn("[WS] Notify queue full, event dropped")
	}
}

// ConnectionCount returns the open sockets of tenantID, or of every tenant
// when tenantID is empty.
func (h *Hub) ConnectionCount(tenantID string) int {
	total := 0
	for _, n := range h.Counts(tenantID) {
		total += n
	}
	return total
}

// Counts returns open sockets per tenant (only tenantID when not empty).
func (h *Hub) Counts(tenantID string) map[string]int {
	req := countRequest{tenantID: tenantID, reply: make(chan map[string]int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.stopped:
		return map[string]int{}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

// --- hub goroutine only ---

func (h *Hub) add(tenantID string, socket Socket) {
	set, ok := h.clients[tenantID]
	if !ok {
		set = make(map[Socket]struct{})
		h.clients[tenantID] = set
	}
	set[socket] = struct{}{}
	metrics.WSConnections.WithLabelValues(tenantID).Set(float64(len(set)))
	logrus.WithField("tenant_id", tenantID).Debugf("[WS] Connection registered (%d open)", len(set))
}

func (h *Hub) remove(tenantID string, socket Socket, closeSocket bool) {
	set, ok := h.clients[tenantID]
	if !ok {
		return
	}
	if _, ok := set[socket]; !ok {
		return
	}
	delete(set, socket)
	if closeSocket {
		_ = socket.WriteMessage(websocket.CloseMessage, []byte{})
		_ = socket.Close()
	}
	if len(set) == 0 {
		delete(h.clients, tenantID)
		metrics.WSConnections.DeleteLabelValues(tenantID)
	} else {
		metrics.WSConnections.WithLabelValues(tenantID).Set(float64(len(set)))
	}
	logrus.WithField("tenant_id", tenantID).Debug("[WS] Connection unregistered")
}

func (h *Hub) deliver(tenantID string, payload []byte) BroadcastReport {
	var report BroadcastReport
	set := h.clients[tenantID]
	if len(set) == 0 {
		return report
	}

	var stale []Socket
	for socket := range set {
		if err := socket.WriteMessage(websocket.TextMessage, payload); err != nil {
			logrus.WithField("tenant_id", tenantID).WithError(err).Warn("[WS] Write error, dropping connection")
			stale = append(stale, socket)
			continue
		}
		report.Delivered++
	}

	for _, socket := range stale {
		h.remove(tenantID, socket, true)
	}
	report.Removed = len(stale)

	metrics.WSBroadcasts.WithLabelValues(tenantID).Inc()
	if report.Removed > 0 {
		metrics.WSSendFailures.WithLabelValues(tenantID).Add(float64(report.Removed))
	}
	return report
}

func (h *Hub) snapshot(tenantID string) map[string]int {
	out := make(map[string]int)
	if tenantID != "" {
		if n := len(h.clients[tenantID]); n > 0 {
			out[tenantID] = n
		}
		return out
	}
	for id, set := range h.clients {
		out[id] = len(set)
	}
	return out
}

func (h *Hub) closeAll() {
	for tenantID, set := range h.clients {
		for socket := range set {
			_ = socket.WriteMessage(websocket.CloseMessage, []byte{})
			_ = socket.Close()
		}
		metrics.WSConnections.DeleteLabelValues(tenantID)
	}
	h.clients = make(map[string]map[Socket]struct{})
}

// --- cross-node fan-out ---

func (h *Hub) publish(ctx context.Context, tenantID string, payload []byte) {
	data, err := json.Marshal(remoteEvent{SenderID: h.serverID, TenantID: tenantID, Payload: payload})
	if err != nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.pubsub.Publish(pubCtx, h.channel, data); err != nil {
		logrus.WithField("tenant_id", tenantID).WithError(err).Error("[WS] Failed to publish to Valkey")
	}
}

func (h *Hub) subscribe(ctx context.Context) {
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	err := h.pubsub.Subscribe(ctx, h.channel, h.handleRemote)
	if err != nil && ctx.Err() == nil {
		logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
	}
}

func (h *Hub) handleRemote(data []byte) {
	var ev remoteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logrus.WithError(err).Warn("[WS] Invalid remote event")
		return
	}
	// eventos publicados por este mismo nodo
	if ev.SenderID == h.serverID {
		return
	}
	h.enqueue(notification{tenantID: ev.TenantID, payload: ev.Payload, remote: true})
}
