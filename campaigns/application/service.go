package application

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/campaigns/domain"
	msgDomain "github.com/whatspy/whatspy/messaging/domain"
	"github.com/whatspy/whatspy/pkg/metrics"
	"github.com/whatspy/whatspy/pkg/msgworker"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/validations"
)

// TextSender is satisfied by *messaging/application.MessageService.
type TextSender interface {
	SendText(ctx context.Context, tenantID string, req msgDomain.SendTextRequest) (*msgDomain.SendResult, error)
}

// Dispatcher is satisfied by *msgworker.Pool.
type Dispatcher interface {
	TryDispatch(job msgworker.Job) bool
}

const errQueueFull = "worker queue full"

// CampaignService envía un mismo texto a muchos destinatarios vía el worker pool
type CampaignService struct {
	repo   domain.CampaignRepository
	sender TextSender
	pool   Dispatcher
}

func NewCampaignService(repo domain.CampaignRepository, sender TextSender, pool Dispatcher) *CampaignService {
	return &CampaignService{repo: repo, sender: sender, pool: pool}
}

// Broadcast stores the campaign and queues one send per distinct recipient.
// It returns as soon as the jobs are queued; results land on the campaign
// as each job finishes.
func (s *CampaignService) Broadcast(ctx context.Context, tenantID string, req domain.CreateCampaignRequest) (*domain.Campaign, error) {
	if err := validations.ValidateCreateCampaign(ctx, req); err != nil {
		return nil, err
	}

	campaign := &domain.Campaign{
		TenantID:    tenantID,
		Name:        strings.TrimSpace(req.CampaignName),
		MessageText: req.MessageText,
	}
	for _, phone := range uniquePhones(req.Recipients) {
		campaign.Results = append(campaign.Results, domain.RecipientResult{Phone: phone})
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, err
	}

	fields := logrus.Fields{"tenant_id": tenantID, "campaign_id": campaign.ID}
	logrus.WithFields(fields).Infof("[CAMPAIGN] Broadcasting to %d recipients", campaign.TotalRecipients)

	campaignID, text := campaign.ID, req.MessageText
	for i, recipient := range campaign.Results {
		phone := recipient.Phone
		queued := s.pool.TryDispatch(msgworker.Job{
			TenantID: tenantID,
			ChatKey:  phone,
			Handler: func(jobCtx context.Context) error {
				return s.sendOne(jobCtx, tenantID, campaignID, phone, text)
			},
		})
		if !queued {
			failed := domain.RecipientResult{Phone: phone, Status: domain.RecipientFailed, Error: errQueueFull}
			s.record(ctx, campaignID, failed)
			campaign.Results[i] = failed
			campaign.FailedCount++
		}
	}
	if campaign.FailedCount > 0 {
		logrus.WithFields(fields).Warnf("[CAMPAIGN] %d recipients dropped, worker queue full", campaign.FailedCount)
	}
	return campaign, nil
}

func (s *CampaignService) sendOne(ctx context.Context, tenantID, campaignID, phone, text string) error {
	result, err := s.sender.SendText(ctx, tenantID, msgDomain.SendTextRequest{To: phone, Text: text})
	switch {
	case err != nil:
		s.record(ctx, campaignID, domain.RecipientResult{Phone: phone, Status: domain.RecipientFailed, Error: err.Error()})
		return err
	case !result.Sent:
		s.record(ctx, campaignID, domain.RecipientResult{Phone: phone, Status: domain.RecipientFailed, Error: domain.ErrNotSent.Error()})
		return nil
	default:
		s.record(ctx, campaignID, domain.RecipientResult{Phone: phone, Status: domain.RecipientSent, MessageID: result.MessageID})
		return nil
	}
}

func (s *CampaignService) record(ctx context.Context, campaignID string, result domain.RecipientResult) {
	metrics.CampaignRecipients.WithLabelValues(string(result.Status)).Inc()
	if err := s.repo.RecordResult(ctx, campaignID, result); err != nil {
		logrus.WithFields(logrus.Fields{
			"campaign_id": campaignID,
			"phone":       result.Phone,
		}).WithError(err).Error("[CAMPAIGN] Failed to record result")
	}
}

func (s *CampaignService) Get(ctx context.Context, tenantID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, tenantID, id)
}

func (s *CampaignService) List(ctx context.Context, tenantID string, filter domain.CampaignFilter) ([]*domain.Campaign, int64, error) {
	filter.Normalize()
	return s.repo.List(ctx, tenantID, filter)
}

// uniquePhones normaliza y quita duplicados manteniendo el orden
func uniquePhones(raw []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		phone := utils.NormalizePhone(r)
		if phone == "" || seen[phone] {
			continue
		}
		seen[phone] = true
		out = append(out, phone)
	}
	return out
}
