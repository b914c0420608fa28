package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTenantConfigNotFound = errors.New("tenant config not found")
	ErrAdminNotFound        = errors.New("admin user not found")
	ErrDuplicateAdmin       = errors.New("username already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrDuplicatePhoneNumber = errors.New("phone_number_id already belongs to another tenant")
)

// TenantConfig guarda las credenciales de Cloud API de un tenant.
// Los secretos viajan cifrados en la base de datos y enmascarados en la API.
type TenantConfig struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	WabaID        string    `json:"waba_id"`
	PhoneNumberID string    `json:"phone_number_id"`
	AccessToken   string    `json:"access_token"`
	VerifyToken   string    `json:"verify_token"`
	AppSecret     string    `json:"app_secret"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Masked returns a copy safe to send to clients.
func (c TenantConfig) Masked() TenantConfig {
	c.AccessToken = MaskSecret(c.AccessToken)
	c.VerifyToken = MaskSecret(c.VerifyToken)
	c.AppSecret = MaskSecret(c.AppSecret)
	return c
}

// UpsertConfigRequest: un campo vacío o enmascarado conserva el valor guardado
type UpsertConfigRequest struct {
	WabaID        string `json:"waba_id"`
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token"`
	VerifyToken   string `json:"verify_token"`
	AppSecret     string `json:"app_secret"`
	IsActive      *bool  `json:"is_active"`
}

// AdminUser puede iniciar sesión en el panel de un tenant
type AdminUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	TenantID     string     `json:"tenant_id"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *AdminUser `json:"user"`
}

type TenantConfigRepository interface {
	GetByTenant(ctx context.Context, tenantID string) (*TenantConfig, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*TenantConfig, error)
	Save(ctx context.Context, cfg *TenantConfig) error
	ListVerifyTokens(ctx context.Context) ([]string, error)
}

type AdminRepository interface {
	Create(ctx context.Context, user *AdminUser) error
	GetByUsername(ctx context.Context, username string) (*AdminUser, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Count(ctx context.Context) (int64, error)
}
