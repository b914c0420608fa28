package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/whatspy/whatspy/campaigns/domain"
	"github.com/whatspy/whatspy/core/database"
	"gorm.io/gorm"
)

type campaignModel struct {
	ID              string    `gorm:"primaryKey"`
	TenantID        string    `gorm:"not null;index:idx_campaigns_tenant_created,priority:1"`
	Name            string    `gorm:"size:255"`
	MessageText     string    `gorm:"type:text;not null"`
	Status          string    `gorm:"size:20;not null"`
	TotalRecipients int       `gorm:"not null"`
	SentCount       int       `gorm:"not null;default:0"`
	FailedCount     int       `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"index:idx_campaigns_tenant_created,priority:2"`
	UpdatedAt       time.Time
}

func (campaignModel) TableName() string {
	return "campaigns"
}

type recipientModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	CampaignID string `gorm:"not null;uniqueIndex:idx_campaign_recipients_phone,priority:1"`
	Phone      string `gorm:"size:50;not null;uniqueIndex:idx_campaign_recipients_phone,priority:2"`
	Position   int    `gorm:"not null"`
	Status     string `gorm:"size:20;not null"`
	MessageID  string `gorm:"size:255"`
	Error      string `gorm:"type:text"`
	UpdatedAt  time.Time
}

func (recipientModel) TableName() string {
	return "campaign_recipients"
}

type CampaignGormRepository struct {
	db *gorm.DB
}

func NewCampaignGormRepository(db *gorm.DB) *CampaignGormRepository {
	return &CampaignGormRepository{db: db}
}

func (r *CampaignGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&campaignModel{}, &recipientModel{})
}

func (r *CampaignGormRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now
	campaign.TotalRecipients = len(campaign.Results)
	if campaign.Status == "" {
		campaign.Status = domain.StatusRunning
	}

	model := campaignModel{
		ID:              campaign.ID,
		TenantID:        campaign.TenantID,
		Name:            campaign.Name,
		MessageText:     campaign.MessageText,
		Status:          string(campaign.Status),
		TotalRecipients: campaign.TotalRecipients,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	recipients := make([]recipientModel, 0, len(campaign.Results))
	for i, res := range campaign.Results {
		recipients = append(recipients, recipientModel{
			CampaignID: campaign.ID,
			Phone:      res.Phone,
			Position:   i,
			Status:     string(domain.RecipientPending),
			UpdatedAt:  now,
		})
		campaign.Results[i].Status = domain.RecipientPending
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}
		return tx.CreateInBatches(&recipients, 100).Error
	})
}

func (r *CampaignGormRepository) Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	var m campaignModel
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&m).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, err
	}

	var rows []recipientModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", id).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	c := fromCampaignModel(m)
	c.Results = make([]domain.RecipientResult, 0, len(rows))
	for _, row := range rows {
		c.Results = append(c.Results, domain.RecipientResult{
			Phone:     row.Phone,
			Status:    domain.RecipientStatus(row.Status),
			MessageID: row.MessageID,
			Error:     row.Error,
		})
	}
	return c, nil
}

// List no carga los resultados por destinatario; solo contadores.
func (r *CampaignGormRepository) List(ctx context.Context, tenantID string, filter domain.CampaignFilter) ([]*domain.Campaign, int64, error) {
	query := r.db.WithContext(ctx).Model(&campaignModel{}).Where("tenant_id = ?", tenantID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []campaignModel
	if err := query.Order("created_at DESC").Offset(filter.Skip).Limit(filter.Limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*domain.Campaign, 0, len(models))
	for _, m := range models {
		out = append(out, fromCampaignModel(m))
	}
	return out, total, nil
}

// RecordResult solo aplica sobre destinatarios pending, asi un resultado
// repetido no cuenta dos veces.
func (r *CampaignGormRepository) RecordResult(ctx context.Context, campaignID string, result domain.RecipientResult) error {
	counter := "sent_count"
	if result.Status == domain.RecipientFailed {
		counter = "failed_count"
	}
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&recipientModel{}).
			Where("campaign_id = ? AND phone = ? AND status = ?", campaignID, result.Phone, string(domain.RecipientPending)).
			Updates(map[string]any{
				"status":     string(result.Status),
				"message_id": result.MessageID,
				"error":      result.Error,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&campaignModel{}).Where("id = ?", campaignID).Updates(map[string]any{
			counter:      gorm.Expr(counter+" + ?", 1),
			"updated_at": now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&campaignModel{}).
			Where("id = ? AND sent_count + failed_count >= total_recipients", campaignID).
			Update("status", string(domain.StatusCompleted)).Error
	})
}

func fromCampaignModel(m campaignModel) *domain.Campaign {
	return &domain.Campaign{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Name:            m.Name,
		MessageText:     m.MessageText,
		Status:          domain.Status(m.Status),
		TotalRecipients: m.TotalRecipients,
		SentCount:       m.SentCount,
		FailedCount:     m.FailedCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
