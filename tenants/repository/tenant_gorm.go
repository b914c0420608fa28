package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/pkg/crypto"
	"github.com/whatspy/whatspy/tenants/domain"
	"gorm.io/gorm"
)

type tenantConfigModel struct {
	ID            string  `gorm:"primaryKey"`
	TenantID      string  `gorm:"size:100;not null;uniqueIndex"`
	WabaID        string  `gorm:"size:100"`
	PhoneNumberID *string `gorm:"size:100;uniqueIndex"` // NULL mientras no se configure
	AccessToken   string  `gorm:"type:text"`
	VerifyToken   string  `gorm:"type:text"`
	AppSecret     string  `gorm:"type:text"`
	IsActive      bool    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (tenantConfigModel) TableName() string {
	return "tenant_configs"
}

// TenantConfigGormRepository cifra los secretos con box antes de escribirlos.
type TenantConfigGormRepository struct {
	db  *gorm.DB
	box *crypto.Box
}

func NewTenantConfigGormRepository(db *gorm.DB, box *crypto.Box) *TenantConfigGormRepository {
	return &TenantConfigGormRepository{db: db, box: box}
}

func (r *TenantConfigGormRepository) InitSchema() error {
	return r.db.AutoMigrate(&tenantConfigModel{})
}

func (r *TenantConfigGormRepository) GetByTenant(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	return r.first(ctx, "tenant_id = ?", tenantID)
}

func (r *TenantConfigGormRepository) GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*domain.TenantConfig, error) {
	return r.first(ctx, "phone_number_id = ? AND is_active = ?", phoneNumberID, true)
}

func (r *TenantConfigGormRepository) first(ctx context.Context, where string, args ...any) (*domain.TenantConfig, error) {
	var m tenantConfigModel
	if err := r.db.WithContext(ctx).Where(where, args...).First(&m).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, domain.ErrTenantConfigNotFound
		}
		return nil, err
	}
	return r.fromModel(m)
}

// Save inserta o actualiza la fila del tenant
func (r *TenantConfigGormRepository) Save(ctx context.Context, cfg *domain.TenantConfig) error {
	model, err := r.toModel(cfg)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing tenantConfigModel
		err := tx.Where("tenant_id = ?", cfg.TenantID).First(&existing).Error
		switch {
		case err == nil:
			model.ID = existing.ID
			model.CreatedAt = existing.CreatedAt
			err = tx.Model(&tenantConfigModel{}).Where("id = ?", existing.ID).Updates(map[string]any{
				"waba_id":         model.WabaID,
				"phone_number_id": model.PhoneNumberID,
				"access_token":    model.AccessToken,
				"verify_token":    model.VerifyToken,
				"app_secret":      model.AppSecret,
				"is_active":       model.IsActive,
				"updated_at":      model.UpdatedAt,
			}).Error
		case database.IsNotFound(err):
			err = tx.Create(&model).Error
		}
		if err != nil {
			if database.IsDuplicateError(err) {
				return domain.ErrDuplicatePhoneNumber
			}
			return fmt.Errorf("failed to save tenant config: %w", err)
		}
		cfg.ID = model.ID
		cfg.CreatedAt = model.CreatedAt
		cfg.UpdatedAt = model.UpdatedAt
		return nil
	})
}

// ListVerifyTokens devuelve los verify tokens descifrados de los tenants activos
func (r *TenantConfigGormRepository) ListVerifyTokens(ctx context.Context) ([]string, error) {
	var raw []string
	err := r.db.WithContext(ctx).Model(&tenantConfigModel{}).
		Where("is_active = ? AND verify_token <> ''", true).
		Pluck("verify_token", &raw).Error
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(raw))
	for _, v := range raw {
		plain, err := r.box.Decrypt(v)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, plain)
	}
	return tokens, nil
}

func (r *TenantConfigGormRepository) toModel(cfg *domain.TenantConfig) (tenantConfigModel, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	m := tenantConfigModel{
		ID:        cfg.ID,
		TenantID:  cfg.TenantID,
		WabaID:    cfg.WabaID,
		IsActive:  cfg.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cfg.PhoneNumberID != "" {
		pnid := cfg.PhoneNumberID
		m.PhoneNumberID = &pnid
	}

	var err error
	if m.AccessToken, err = r.box.Encrypt(cfg.AccessToken); err != nil {
		return m, err
	}
	if m.VerifyToken, err = r.box.Encrypt(cfg.VerifyToken); err != nil {
		return m, err
	}
	if m.AppSecret, err = r.box.Encrypt(cfg.AppSecret); err != nil {
		return m, err
	}
	return m, nil
}

func (r *TenantConfigGormRepository) fromModel(m tenantConfigModel) (*domain.TenantConfig, error) {
	cfg := &domain.TenantConfig{
		ID:        m.ID,
		TenantID:  m.TenantID,
		WabaID:    m.WabaID,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.PhoneNumberID != nil {
		cfg.PhoneNumberID = *m.PhoneNumberID
	}

	var err error
	if cfg.AccessToken, err = r.box.Decrypt(m.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if cfg.VerifyToken, err = r.box.Decrypt(m.VerifyToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt verify token: %w", err)
	}
	if cfg.AppSecret, err = r.box.Decrypt(m.AppSecret); err != nil {
		return nil, fmt.Errorf("failed to decrypt app secret: %w", err)
	}
	return cfg, nil
}
