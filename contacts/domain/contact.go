package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrContactNotFound  = errors.New("contact not found")
	ErrDuplicateContact = errors.New("contact already exists")
)

// Contact es una persona con la que el tenant conversa por WhatsApp
type Contact struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Phone     string     `json:"phone"`
	Name      string     `json:"name,omitempty"`
	Labels    []string   `json:"labels"`
	Notes     string     `json:"notes,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// HasLabel reports whether label is attached to the contact.
func (c *Contact) HasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}

type ContactFilter struct {
	Search string
	Label  string
	Limit  int
	Offset int
}

type CreateContactRequest struct {
	Phone  string   `json:"phone"`
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
	Notes  string   `json:"notes"`
}

type UpdateContactRequest struct {
	Name   *string  `json:"name"`
	Labels []string `json:"labels"`
	Notes  *string  `json:"notes"`
}

// ImportResult resume una importación desde Excel
type ImportResult struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Errors  []ImportError `json:"errors,omitempty"`
}

type ImportError struct {
	Row   int    `json:"row"`
	Phone string `json:"phone,omitempty"`
	Error string `json:"error"`
}

// ContactRepository define la persistencia de contactos
type ContactRepository interface {
	Create(ctx context.Context, contact *Contact) error
	Update(ctx context.Context, contact *Contact) error
	GetByPhone(ctx context.Context, tenantID, phone string) (*Contact, error)
	List(ctx context.Context, tenantID string, filter ContactFilter) ([]*Contact, int64, error)
	Delete(ctx context.Context, tenantID, phone string) error
}
