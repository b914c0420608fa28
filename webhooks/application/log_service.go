package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/webhooks/domain"
)

type LogService struct {
	repo domain.LogRepository
	now  func() time.Time
}

func NewLogService(repo domain.LogRepository) *LogService {
	return &LogService{repo: repo, now: time.Now}
}

func (s *LogService) List(ctx context.Context, tenantID string, filter domain.LogFilter) ([]*domain.WebhookLog, error) {
	switch filter.LogType {
	case "", domain.LogTypeMessage, domain.LogTypeStatus, domain.LogTypeError:
	default:
		return nil, pkgError.ValidationError("log_type must be one of: message, status, error")
	}
	filter.Normalize()
	return s.repo.List(ctx, tenantID, filter)
}

// Cleanup borra los logs con más de `days` días. tenantID vacío limpia todos los tenants.
func (s *LogService) Cleanup(ctx context.Context, tenantID string, days int) (int64, error) {
	if days < 1 || days > 365 {
		return 0, pkgError.ValidationError(domain.ErrInvalidRetention.Error())
	}

	cutoff := s.now().UTC().AddDate(0, 0, -days)
	deleted, err := s.repo.DeleteBefore(ctx, tenantID, cutoff)
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"days":      days,
		"deleted":   deleted,
	}).Info("[WEBHOOK_LOG] Cleanup done")
	return deleted, nil
}

// record escribe un log sin propagar el error; el webhook nunca falla por esto.
func (s *LogService) record(ctx context.Context, entry *domain.WebhookLog) {
	if err := s.repo.Create(ctx, entry); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"tenant_id": entry.TenantID,
			"log_type":  entry.LogType,
		}).Warn("[WEBHOOK_LOG] Failed to write log")
	}
}
