package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/messaging/domain"
	"gorm.io/gorm"
)

// --- Persistence Model ---

type messageModel struct {
	ID          string    `gorm:"primaryKey"`
	TenantID    string    `gorm:"not null;index:idx_messages_tenant_phone,priority:1;uniqueIndex:idx_messages_tenant_message_id,priority:1"`
	MessageID   *string   `gorm:"uniqueIndex:idx_messages_tenant_message_id,priority:2"` // NULL when never sent through the API
	Phone       string    `gorm:"not null;index:idx_messages_tenant_phone,priority:2"`
	ContactName string    `gorm:"size:255"`
	Text        string    `gorm:"type:text"`
	MessageType string    `gorm:"default:'text'"`
	Direction   string    `gorm:"not null;index"`
	Status      string    `gorm:"not null"`
	Metadata    string    `gorm:"type:text;default:'{}'"` // JSON
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (messageModel) TableName() string {
	return "messages"
}

// --- Repository Implementation ---

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&messageModel{})
}

func (r *MessageGormRepository) Save(ctx context.Context, msg *domain.Message) (*domain.Message, bool, error) {
	if msg.MessageID != "" {
		existing, err := r.GetByMessageID(ctx, msg.TenantID, msg.MessageID)
		if err == nil {
			logrus.WithFields(logrus.Fields{
				"tenant_id":  msg.TenantID,
				"message_id": msg.MessageID,
			}).Debug("[MESSAGE] Duplicate message_id, returning existing row")
			return existing, false, nil
		}
		if err != domain.ErrMessageNotFound {
			return nil, false, err
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	model, err := toMessageModel(msg)
	if err != nil {
		return nil, false, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		// Concurrent delivery of the same webhook: the other insert won.
		if database.IsDuplicateError(err) && msg.MessageID != "" {
			existing, getErr := r.GetByMessageID(ctx, msg.TenantID, msg.MessageID)
			if getErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to save message: %w", err)
	}

	saved, err := fromMessageModel(model)
	if err != nil {
		return nil, false, err
	}
	return saved, true, nil
}

func (r *MessageGormRepository) GetByMessageID(ctx context.Context, tenantID, messageID string) (*domain.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND message_id = ?", tenantID, messageID).First(&m).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m)
}

func (r *MessageGormRepository) UpdateStatus(ctx context.Context, tenantID, messageID string, status domain.Status) (*domain.Message, domain.Status, bool, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND message_id = ?", tenantID, messageID).First(&m).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}

	previous := domain.Status(m.Status)
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{"status": string(status), "updated_at": now})
	if result.Error != nil {
		return nil, "", false, fmt.Errorf("failed to update message status: %w", result.Error)
	}

	m.Status = string(status)
	m.UpdatedAt = now
	msg, err := fromMessageModel(m)
	if err != nil {
		return nil, "", false, err
	}
	return msg, previous, true, nil
}

func (r *MessageGormRepository) List(ctx context.Context, tenantID string, filter domain.MessageFilter) ([]*domain.Message, int64, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).Model(&messageModel{}).Where("tenant_id = ?", tenantID)
	if filter.Phone != "" {
		query = query.Where("phone = ?", filter.Phone)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", string(filter.Direction))
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []messageModel
	if err := query.Order("created_at DESC").Offset(filter.Skip).Limit(filter.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	msgs, err := fromMessageModels(models)
	return msgs, total, err
}

// ListByPhone returns the latest `limit` messages with phone, oldest first.
func (r *MessageGormRepository) ListByPhone(ctx context.Context, tenantID, phone string, limit int) ([]*domain.Message, error) {
	if limit <= 0 || limit > domain.MaxListLimit {
		limit = domain.MaxListLimit
	}

	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return fromMessageModels(models)
}

func (r *MessageGormRepository) ListConversations(ctx context.Context, tenantID string) ([]domain.Conversation, error) {
	type phoneCount struct {
		Phone string
		Count int64
	}
	var counts []phoneCount
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Select("phone, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("phone").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(counts))
	for _, pc := range counts {
		var last messageModel
		err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND phone = ?", tenantID, pc.Phone).
			Order("created_at DESC").
			First(&last).Error
		if err != nil {
			return nil, err
		}
		name := last.ContactName
		if name == "" {
			name = pc.Phone
		}
		preview := last.Text
		if preview == "" {
			preview = "(" + last.MessageType + ")"
		}
		conversations = append(conversations, domain.Conversation{
			Phone:         pc.Phone,
			ContactName:   name,
			LastMessage:   preview,
			LastDirection: domain.Direction(last.Direction),
			LastMessageAt: last.CreatedAt,
			MessageCount:  pc.Count,
		})
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations, nil
}

func (r *MessageGormRepository) DeleteByPhone(ctx context.Context, tenantID, phone string) (int64, error) {
	result := r.db.WithContext(ctx).Where("tenant_id = ? AND phone = ?", tenantID, phone).Delete(&messageModel{})
	return result.RowsAffected, result.Error
}

func (r *MessageGormRepository) Stats(ctx context.Context, tenantID string, since time.Time) (*domain.Stats, error) {
	stats := &domain.Stats{
		ByDirection: map[domain.Direction]int64{},
		ByType:      map[string]int64{},
	}
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&messageModel{}).Where("tenant_id = ?", tenantID)
	}

	if err := base().Count(&stats.TotalMessages).Error; err != nil {
		return nil, err
	}
	if err := base().Distinct("phone").Count(&stats.UniqueContacts).Error; err != nil {
		return nil, err
	}
	if err := base().Where("created_at >= ?", since.UTC()).Count(&stats.Last7Days).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		BucketKey string
		Count     int64
	}
	var byDirection []bucket
	if err := base().Select("direction AS bucket_key, COUNT(*) AS count").Group("direction").Scan(&byDirection).Error; err != nil {
		return nil, err
	}
	for _, b := range byDirection {
		stats.ByDirection[domain.Direction(b.BucketKey)] = b.Count
	}

	var byType []bucket
	if err := base().Select("message_type AS bucket_key, COUNT(*) AS count").Group("message_type").Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[b.BucketKey] = b.Count
	}

	return stats, nil
}

// --- Mappers ---

func toMessageModel(msg *domain.Message) (messageModel, error) {
	meta := "{}"
	if len(msg.Metadata) > 0 {
		b, err := json.Marshal(msg.Metadata)
		if err != nil {
			return messageModel{}, fmt.Errorf("failed to marshal message metadata: %w", err)
		}
		meta = string(b)
	}

	var messageID *string
	if msg.MessageID != "" {
		id := msg.MessageID
		messageID = &id
	}

	return messageModel{
		ID:          msg.ID,
		TenantID:    msg.TenantID,
		MessageID:   messageID,
		Phone:       msg.Phone,
		ContactName: msg.ContactName,
		Text:        msg.Text,
		MessageType: msg.MessageType,
		Direction:   string(msg.Direction),
		Status:      string(msg.Status),
		Metadata:    meta,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}, nil
}

func fromMessageModel(m messageModel) (*domain.Message, error) {
	msg := &domain.Message{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Phone:       m.Phone,
		ContactName: m.ContactName,
		Text:        m.Text,
		MessageType: m.MessageType,
		Direction:   domain.Direction(m.Direction),
		Status:      domain.Status(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.MessageID != nil {
		msg.MessageID = *m.MessageID
	}
	if m.Metadata != "" && m.Metadata != "{}" {
		if err := json.Unmarshal([]byte(m.Metadata), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
		}
	}
	return msg, nil
}

func fromMessageModels(models []messageModel) ([]*domain.Message, error) {
	out := make([]*domain.Message, 0, len(models))
	for _, m := range models {
		msg, err := fromMessageModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}
