package domain

import (
	"context"
	"time"
)

type LogType string

const (
	LogTypeMessage LogType = "message"
	LogTypeStatus  LogType = "status"
	LogTypeError   LogType = "error"
)

// WebhookLog registra la actividad recibida desde Meta
type WebhookLog struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	LogType      LogType        `json:"log_type"`
	Phone        string         `json:"phone,omitempty"`
	MessageID    string         `json:"message_id,omitempty"`
	Status       string         `json:"status,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Context      string         `json:"context,omitempty"`
	RawData      map[string]any `json:"raw_data,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type LogFilter struct {
	LogType LogType
	Phone   string // coincidencia parcial
	Skip    int
	Limit   int
}

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 200
)

func (f *LogFilter) Normalize() {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLogLimit
	}
	if f.Limit > MaxLogLimit {
		f.Limit = MaxLogLimit
	}
}

// LogRepository define la persistencia de webhook logs
type LogRepository interface {
	Create(ctx context.Context, log *WebhookLog) error
	List(ctx context.Context, tenantID string, filter LogFilter) ([]*WebhookLog, error)
	// DeleteBefore borra los logs anteriores a cutoff; tenantID vacío aplica a todos.
	DeleteBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
}
