package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/tenants/domain"
	"github.com/whatspy/whatspy/tenants/security"
)

type AuthService struct {
	repo   domain.AdminRepository
	issuer *security.Issuer
	now    func() time.Time
}

func NewAuthService(repo domain.AdminRepository, issuer *security.Issuer) *AuthService {
	return &AuthService{repo: repo, issuer: issuer, now: time.Now}
}

// Login verifies credentials and returns a JWT token
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, pkgError.ValidationError("username and password are required")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			// no revelar si el usuario existe
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive || !security.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.GenerateToken(user.ID, user.TenantID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		logrus.WithError(err).WithField("username", username).Warn("[AUTH] Failed to update last login")
	} else {
		user.LastLoginAt = &now
	}

	logrus.WithFields(logrus.Fields{"username": username, "tenant_id": user.TenantID}).Info("[AUTH] Admin logged in")
	return &domain.LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CreateAdmin registra un usuario para el tenant indicado
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, tenantID string) (*domain.AdminUser, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, pkgError.ValidationError("username is required")
	case len(password) < 8:
		return nil, pkgError.ValidationError("password must have at least 8 characters")
	case tenantID == "":
		return nil, pkgError.ValidationError("tenant_id is required")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.AdminUser{Username: username, PasswordHash: hash, TenantID: tenantID, IsActive: true}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureBootstrapAdmin crea el admin de ADMIN_USERNAME/ADMIN_PASSWORD si la tabla está vacía.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username, password, tenantID string) error {
	if username == "" || password == "" {
		return nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := s.CreateAdmin(ctx, username, password, tenantID); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"username": username, "tenant_id": tenantID}).Info("[AUTH] Bootstrap admin created")
	return nil
}
