package domain

// WebSocket event names pushed to chat UIs.
const (
	EventMessageIncoming = "message_incoming"
	EventMessageOutgoing = "message_outgoing"
	EventMessageStatus   = "message_status"
)

// Notifier delivers an event to every live socket of a tenant. Implementations
// must not block and must swallow delivery failures.
type Notifier interface {
	Notify(tenantID, event string, data any)
}

// MessageEvent is the data of message_incoming / message_outgoing.
type MessageEvent struct {
	Phone   string       `json:"phone"`
	Name    *string      `json:"name"`
	Contact any          `json:"contact,omitempty"`
	Message EventMessage `json:"message"`
}

type EventMessage struct {
	ID        *string `json:"id"`
	Type      string  `json:"type"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	Direction string  `json:"direction"`
	MediaID   string  `json:"media_id,omitempty"`
	AutoReply bool    `json:"auto_reply,omitempty"`
}

// StatusEvent is the data of message_status.
type StatusEvent struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Phone     string `json:"phone,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, any) {}
