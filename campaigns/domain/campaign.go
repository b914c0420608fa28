package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNotSent          = errors.New("message stored but not sent: whatsapp cloud api is not configured")
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// Campaign es un envío masivo del mismo texto a una lista de teléfonos
type Campaign struct {
	ID              string            `json:"campaign_id"`
	TenantID        string            `json:"tenant_id"`
	Name            string            `json:"campaign_name,omitempty"`
	MessageText     string            `json:"message_text"`
	Status          Status            `json:"status"`
	TotalRecipients int               `json:"total_recipients"`
	SentCount       int               `json:"sent_count"`
	FailedCount     int               `json:"failed_count"`
	Results         []RecipientResult `json:"results,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Pending is the number of recipients without a result yet.
func (c *Campaign) Pending() int {
	return c.TotalRecipients - c.SentCount - c.FailedCount
}

// RecipientResult es el resultado del envío a un teléfono
type RecipientResult struct {
	Phone     string          `json:"phone"`
	Status    RecipientStatus `json:"status"`
	MessageID string          `json:"message_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type CreateCampaignRequest struct {
	CampaignName string   `json:"campaign_name"`
	MessageText  string   `json:"message_text"`
	Recipients   []string `json:"recipients"`
}

type CampaignFilter struct {
	Skip  int
	Limit int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

func (f *CampaignFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
}

// CampaignRepository define la persistencia de campañas
type CampaignRepository interface {
	// Create guarda la campaña con todos sus destinatarios en estado pending.
	Create(ctx context.Context, campaign *Campaign) error
	Get(ctx context.Context, tenantID, id string) (*Campaign, error)
	List(ctx context.Context, tenantID string, filter CampaignFilter) ([]*Campaign, int64, error)
	// RecordResult guarda el resultado de un destinatario y actualiza los contadores.
	RecordResult(ctx context.Context, campaignID string, result RecipientResult) error
}
