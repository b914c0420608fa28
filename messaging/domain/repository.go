package domain

import (
	"context"
	"time"
)

// MessageRepository define la persistencia de mensajes
type MessageRepository interface {
	// Save inserta el mensaje salvo que (tenant_id, message_id) ya exista;
	// en ese caso retorna la fila existente y created=false.
	Save(ctx context.Context, msg *Message) (saved *Message, created bool, err error)
	GetByMessageID(ctx context.Context, tenantID, messageID string) (*Message, error)
	// UpdateStatus sobrescribe el status. found=false si el mensaje no existe.
	UpdateStatus(ctx context.Context, tenantID, messageID string, status Status) (msg *Message, previous Status, found bool, err error)

	List(ctx context.Context, tenantID string, filter MessageFilter) ([]*Message, int64, error)
	ListByPhone(ctx context.Context, tenantID, phone string, limit int) ([]*Message, error)
	ListConversations(ctx context.Context, tenantID string) ([]Conversation, error)
	DeleteByPhone(ctx context.Context, tenantID, phone string) (int64, error)
	Stats(ctx context.Context, tenantID string, since time.Time) (*Stats, error)
}

// TemplateRepository define la persistencia de plantillas
type TemplateRepository interface {
	Create(ctx context.Context, tpl *Template) error
	GetByName(ctx context.Context, tenantID, name string) (*Template, error)
	List(ctx context.Context, tenantID, category string) ([]*Template, error)
	IncrementUsage(ctx context.Context, id string) error
	Delete(ctx context.Context, tenantID, id string) error
}
