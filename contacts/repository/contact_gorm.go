package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/whatspy/whatspy/contacts/domain"
	"github.com/whatspy/whatspy/core/database"
	"gorm.io/gorm"
)

type contactModel struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"not null;uniqueIndex:idx_contacts_tenant_phone,priority:1"`
	Phone     string `gorm:"size:50;not null;uniqueIndex:idx_contacts_tenant_phone,priority:2"`
	Name      string `gorm:"size:255"`
	Labels    string `gorm:"type:text;default:'[]'"` // JSON
	Notes     string `gorm:"type:text"`
	LastSeen  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (contactModel) TableName() string {
	return "contacts"
}

type ContactGormRepository struct {
	db *gorm.DB
}

func NewContactGormRepository(db *gorm.DB) *ContactGormRepository {
	return &ContactGormRepository{db: db}
}

func (r *ContactGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&contactModel{})
}

func (r *ContactGormRepository) Create(ctx context.Context, contact *domain.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	model, err := toContactModel(contact)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if database.IsDuplicateError(err) {
			return domain.ErrDuplicateContact
		}
		return err
	}
	return nil
}

func (r *ContactGormRepository) Update(ctx context.Context, contact *domain.Contact) error {
	contact.UpdatedAt = time.Now().UTC()
	model, err := toContactModel(contact)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&contactModel{}).
		Where("tenant_id = ? AND id = ?", contact.TenantID, contact.ID).
		Updates(map[string]any{
			"name":       model.Name,
			"labels":     model.Labels,
			"notes":      model.Notes,
			"last_seen":  model.LastSeen,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

func (r *ContactGormRepository) GetByPhone(ctx context.Context, tenantID, phone string) (*domain.Contact, error) {
	var m contactModel
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND phone = ?", tenantID, phone).First(&m).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	return fromContactModel(m)
}

func (r *ContactGormRepository) List(ctx context.Context, tenantID string, filter domain.ContactFilter) ([]*domain.Contact, int64, error) {
	query := r.db.WithContext(ctx).Model(&contactModel{}).Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("(LOWER(name) LIKE LOWER(?) OR phone LIKE ?)", pattern, pattern)
	}
	if filter.Label != "" {
		// labels se guarda como JSON: ["vip","lead"]
		query = query.Where("labels LIKE ?", `%"`+filter.Label+`"%`)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []contactModel
	if err := query.Order("updated_at DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*domain.Contact, 0, len(models))
	for _, m := range models {
		c, err := fromContactModel(m)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, nil
}

func (r *ContactGormRepository) Delete(ctx context.Context, tenantID, phone string) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ? AND phone = ?", tenantID, phone).Delete(&contactModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

func toContactModel(c *domain.Contact) (contactModel, error) {
	labels := c.Labels
	if labels == nil {
		labels = []string{}
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return contactModel{}, fmt.Errorf("failed to marshal contact labels: %w", err)
	}
	return contactModel{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Phone:     c.Phone,
		Name:      c.Name,
		Labels:    string(b),
		Notes:     c.Notes,
		LastSeen:  c.LastSeen,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func fromContactModel(m contactModel) (*domain.Contact, error) {
	c := &domain.Contact{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Phone:     m.Phone,
		Name:      m.Name,
		Notes:     m.Notes,
		LastSeen:  m.LastSeen,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Labels:    []string{},
	}
	if m.Labels != "" {
		if err := json.Unmarshal([]byte(m.Labels), &c.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contact labels: %w", err)
		}
	}
	return c, nil
}
