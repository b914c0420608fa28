package application

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/infrastructure/graphapi"
	"github.com/whatspy/whatspy/tenants/domain"
	"github.com/whatspy/whatspy/validations"
)

// Defaults son las credenciales globales del entorno. Solo aplican al tenant por defecto,
// salvo VerifyToken y AppSecret que sirven de respaldo para el webhook.
type Defaults struct {
	TenantID      string
	PhoneNumberID string
	AccessToken   string
	VerifyToken   string
	AppSecret     string
}

type ConfigService struct {
	repo     domain.TenantConfigRepository
	defaults Defaults
}

func NewConfigService(repo domain.TenantConfigRepository, defaults Defaults) *ConfigService {
	return &ConfigService{repo: repo, defaults: defaults}
}

// DefaultTenantID is the tenant used when a request carries none.
func (s *ConfigService) DefaultTenantID() string {
	return s.defaults.TenantID
}

// Get returns the tenant config with every secret masked.
func (s *ConfigService) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	cfg, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	masked := cfg.Masked()
	return &masked, nil
}

// Upsert escribe la config del tenant. Los secretos vacíos o enmascarados conservan el valor previo.
func (s *ConfigService) Upsert(ctx context.Context, tenantID string, req domain.UpsertConfigRequest) (*domain.TenantConfig, error) {
	if err := validations.ValidateUpsertTenantConfig(ctx, req); err != nil {
		return nil, err
	}

	cfg, err := s.repo.GetByTenant(ctx, tenantID)
	switch {
	case errors.Is(err, domain.ErrTenantConfigNotFound):
		cfg = &domain.TenantConfig{TenantID: tenantID, IsActive: true}
	case err != nil:
		return nil, err
	}

	if req.WabaID != "" {
		cfg.WabaID = req.WabaID
	}
	if req.PhoneNumberID != "" {
		cfg.PhoneNumberID = req.PhoneNumberID
	}
	cfg.AccessToken = keepSecret(cfg.AccessToken, req.AccessToken)
	cfg.VerifyToken = keepSecret(cfg.VerifyToken, req.VerifyToken)
	cfg.AppSecret = keepSecret(cfg.AppSecret, req.AppSecret)
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}

	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":       tenantID,
		"phone_number_id": cfg.PhoneNumberID,
	}).Info("[TENANT] Config updated")

	masked := cfg.Masked()
	return &masked, nil
}

func keepSecret(current, incoming string) string {
	if incoming == "" || domain.IsMasked(incoming) {
		return current
	}
	return incoming
}

// Credentials resuelve las credenciales de Cloud API para enviar mensajes.
func (s *ConfigService) Credentials(ctx context.Context, tenantID string) (graphapi.Credentials, error) {
	cfg, err := s.repo.GetByTenant(ctx, tenantID)
	if err == nil && cfg.IsActive {
		return graphapi.Credentials{PhoneNumberID: cfg.PhoneNumberID, AccessToken: cfg.AccessToken}, nil
	}
	if err != nil && !errors.Is(err, domain.ErrTenantConfigNotFound) {
		return graphapi.Credentials{}, err
	}

	if tenantID == s.defaults.TenantID {
		return graphapi.Credentials{PhoneNumberID: s.defaults.PhoneNumberID, AccessToken: s.defaults.AccessToken}, nil
	}
	return graphapi.Credentials{}, nil
}

// ResolveWebhookTenant maps metadata.phone_number_id to its tenant and app secret.
// Unknown numbers fall back to the default tenant and the global secret.
func (s *ConfigService) ResolveWebhookTenant(ctx context.Context, phoneNumberID string) (string, string) {
	if phoneNumberID != "" {
		cfg, err := s.repo.GetByPhoneNumberID(ctx, phoneNumberID)
		if err == nil {
			secret := cfg.AppSecret
			if secret == "" {
				secret = s.defaults.AppSecret
			}
			return cfg.TenantID, secret
		}
		if !errors.Is(err, domain.ErrTenantConfigNotFound) {
			logrus.WithError(err).WithField("phone_number_id", phoneNumberID).Warn("[TENANT] Lookup by phone_number_id failed")
		}
	}
	return s.defaults.TenantID, s.defaults.AppSecret
}

// IsVerifyToken compara el token del handshake con el global y los de cada tenant.
func (s *ConfigService) IsVerifyToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if secureEqual(token, s.defaults.VerifyToken) {
		return true
	}

	tokens, err := s.repo.ListVerifyTokens(ctx)
	if err != nil {
		logrus.WithError(err).Error("[TENANT] Failed to list verify tokens")
		return false
	}
	for _, t := range tokens {
		if secureEqual(token, t) {
			return true
		}
	}
	return false
}

func secureEqual(a, b string) bool {
	if b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
