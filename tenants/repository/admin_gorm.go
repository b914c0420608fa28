package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/tenants/domain"
	"gorm.io/gorm"
)

type adminUserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"size:150;not null;uniqueIndex"`
	PasswordHash string `gorm:"not null"`
	TenantID     string `gorm:"size:100;not null;index"`
	IsActive     bool   `gorm:"not null"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (adminUserModel) TableName() string {
	return "admin_users"
}

type AdminGormRepository struct {
	db *gorm.DB
}

func NewAdminGormRepository(db *gorm.DB) *AdminGormRepository {
	return &AdminGormRepository{db: db}
}

// InitSchema ensures the table exists
func (r *AdminGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&adminUserModel{})
}

func (r *AdminGormRepository) Create(ctx context.Context, user *domain.AdminUser) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	m := adminUserModel{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		TenantID:     user.TenantID,
		IsActive:     user.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if database.IsDuplicateError(err) {
			return domain.ErrDuplicateAdmin
		}
		return err
	}
	return nil
}

func (r *AdminGormRepository) GetByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	var m adminUserModel
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, err
	}
	return &domain.AdminUser{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		TenantID:     m.TenantID,
		IsActive:     m.IsActive,
		LastLoginAt:  m.LastLoginAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func (r *AdminGormRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&adminUserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_login_at": at.UTC(),
			"updated_at":    at.UTC(),
		}).Error
}

func (r *AdminGormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&adminUserModel{}).Count(&n).Error
	return n, err
}
