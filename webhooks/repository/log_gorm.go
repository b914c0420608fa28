package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/whatspy/whatspy/webhooks/domain"
	"gorm.io/gorm"
)

type webhookLogModel struct {
	ID           string    `gorm:"primaryKey"`
	TenantID     string    `gorm:"not null;index:idx_webhook_logs_tenant_created,priority:1"`
	LogType      string    `gorm:"size:50;index"`
	Phone        string    `gorm:"size:50"`
	MessageID    string    `gorm:"size:255"`
	Status       string    `gorm:"size:50"`
	ErrorMessage string    `gorm:"type:text"`
	Context      string    `gorm:"size:255"`
	RawData      string    `gorm:"type:text"` // JSON
	CreatedAt    time.Time `gorm:"not null;index:idx_webhook_logs_tenant_created,priority:2"`
}

func (webhookLogModel) TableName() string {
	return "webhook_logs"
}

type LogGormRepository struct {
	db *gorm.DB
}

func NewLogGormRepository(db *gorm.DB) *LogGormRepository {
	return &LogGormRepository{db: db}
}

func (r *LogGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&webhookLogModel{})
}

func (r *LogGormRepository) Create(ctx context.Context, log *domain.WebhookLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	raw := ""
	if len(log.RawData) > 0 {
		b, err := json.Marshal(log.RawData)
		if err != nil {
			return fmt.Errorf("failed to marshal webhook raw data: %w", err)
		}
		raw = string(b)
	}

	model := webhookLogModel{
		ID:           log.ID,
		TenantID:     log.TenantID,
		LogType:      string(log.LogType),
		Phone:        log.Phone,
		MessageID:    log.MessageID,
		Status:       log.Status,
		ErrorMessage: log.ErrorMessage,
		Context:      truncate(log.Context, 255),
		RawData:      raw,
		CreatedAt:    log.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *LogGormRepository) List(ctx context.Context, tenantID string, filter domain.LogFilter) ([]*domain.WebhookLog, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.LogType != "" {
		query = query.Where("log_type = ?", string(filter.LogType))
	}
	if filter.Phone != "" {
		query = query.Where("phone LIKE ?", "%"+filter.Phone+"%")
	}

	var models []webhookLogModel
	err := query.Order("created_at DESC").Offset(filter.Skip).Limit(filter.Limit).Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.WebhookLog, 0, len(models))
	for _, m := range models {
		entry := &domain.WebhookLog{
			ID:           m.ID,
			TenantID:     m.TenantID,
			LogType:      domain.LogType(m.LogType),
			Phone:        m.Phone,
			MessageID:    m.MessageID,
			Status:       m.Status,
			ErrorMessage: m.ErrorMessage,
			Context:      m.Context,
			CreatedAt:    m.CreatedAt,
		}
		if m.RawData != "" {
			if err := json.Unmarshal([]byte(m.RawData), &entry.RawData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal webhook raw data: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *LogGormRepository) DeleteBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Where("created_at < ?", cutoff)
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}
	result := query.Delete(&webhookLogModel{})
	return result.RowsAffected, result.Error
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
