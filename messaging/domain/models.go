package domain

import "time"

// Direction indica si el mensaje entró o salió del número del tenant
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Message es un mensaje persistido de un tenant
type Message struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	MessageID   string         `json:"message_id,omitempty"` // wamid asignado por Meta; vacío si no hubo envío real
	Phone       string         `json:"phone"`
	ContactName string         `json:"contact_name,omitempty"`
	Text        string         `json:"message"`
	MessageType string         `json:"message_type"`
	Direction   Direction      `json:"direction"`
	Status      Status         `json:"status"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Template es una plantilla local con placeholders {{var}}
type Template struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Variables  []string  `json:"variables"`
	Category   string    `json:"category"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Conversation resume el último mensaje intercambiado con un teléfono
type Conversation struct {
	Phone         string    `json:"phone"`
	ContactName   string    `json:"contact_name,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastDirection Direction `json:"last_direction"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int64     `json:"message_count"`
}

// Stats agrega contadores de mensajes del tenant
type Stats struct {
	TotalMessages  int64               `json:"total_messages"`
	UniqueContacts int64               `json:"unique_contacts"`
	Last7Days      int64               `json:"last_7_days"`
	ByDirection    map[Direction]int64 `json:"by_direction"`
	ByType         map[string]int64    `json:"by_type"`
}

// MessageFilter define los criterios para listar mensajes
type MessageFilter struct {
	Phone     string
	Direction Direction
	Skip      int
	Limit     int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize acota skip/limit a rangos válidos
func (f *MessageFilter) Normalize() {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
}
