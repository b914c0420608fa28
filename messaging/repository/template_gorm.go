package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/messaging/domain"
	"gorm.io/gorm"
)

type templateModel struct {
	ID         string    `gorm:"primaryKey"`
	TenantID   string    `gorm:"not null;uniqueIndex:idx_templates_tenant_name,priority:1"`
	Name       string    `gorm:"not null;uniqueIndex:idx_templates_tenant_name,priority:2"`
	Content    string    `gorm:"type:text;not null"`
	Variables  string    `gorm:"type:text;default:'[]'"` // JSON
	Category   string    `gorm:"index;default:'general'"`
	UsageCount int       `gorm:"default:0"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (templateModel) TableName() string {
	return "message_templates"
}

type TemplateGormRepository struct {
	db *gorm.DB
}

func NewTemplateGormRepository(db *gorm.DB) *TemplateGormRepository {
	return &TemplateGormRepository{db: db}
}

func (r *TemplateGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&templateModel{})
}

func (r *TemplateGormRepository) Create(ctx context.Context, tpl *domain.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	if tpl.Category == "" {
		tpl.Category = "general"
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	model, err := toTemplateModel(tpl)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if database.IsDuplicateError(err) {
			return domain.ErrDuplicateTemplate
		}
		return err
	}
	return nil
}

func (r *TemplateGormRepository) GetByName(ctx context.Context, tenantID, name string) (*domain.Template, error) {
	var m templateModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND name = ?", tenantID, name).First(&m).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, err
	}
	return fromTemplateModel(m)
}

func (r *TemplateGormRepository) List(ctx context.Context, tenantID, category string) ([]*domain.Template, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var models []templateModel
	if err := query.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Template, 0, len(models))
	for _, m := range models {
		tpl, err := fromTemplateModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

func (r *TemplateGormRepository) IncrementUsage(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&templateModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateGormRepository) Delete(ctx context.Context, tenantID, id string) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&templateModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func toTemplateModel(tpl *domain.Template) (templateModel, error) {
	vars := tpl.Variables
	if vars == nil {
		vars = []string{}
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return templateModel{}, fmt.Errorf("failed to marshal template variables: %w", err)
	}
	return templateModel{
		ID:         tpl.ID,
		TenantID:   tpl.TenantID,
		Name:       tpl.Name,
		Content:    tpl.Content,
		Variables:  string(b),
		Category:   tpl.Category,
		UsageCount: tpl.UsageCount,
		CreatedAt:  tpl.CreatedAt,
		UpdatedAt:  tpl.UpdatedAt,
	}, nil
}

func fromTemplateModel(m templateModel) (*domain.Template, error) {
	tpl := &domain.Template{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Name:       m.Name,
		Content:    m.Content,
		Category:   m.Category,
		UsageCount: m.UsageCount,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Variables != "" {
		if err := json.Unmarshal([]byte(m.Variables), &tpl.Variables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template variables: %w", err)
		}
	}
	return tpl, nil
}
