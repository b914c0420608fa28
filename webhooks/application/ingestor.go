package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	contactDomain "github.com/whatspy/whatspy/contacts/domain"
	msgDomain "github.com/whatspy/whatspy/messaging/domain"
	"github.com/whatspy/whatspy/pkg/metrics"
	"github.com/whatspy/whatspy/pkg/msgworker"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/webhooks/domain"
)

const objectWhatsApp = "whatsapp_business_account"

// Dispatcher is satisfied by *msgworker.Pool.
type Dispatcher interface {
	TryDispatch(job msgworker.Job) bool
}

type TenantResolver interface {
	ResolveWebhookTenant(ctx context.Context, phoneNumberID string) (tenantID, appSecret string)
	IsVerifyToken(ctx context.Context, token string) bool
}

type MessageStore interface {
	SaveIncoming(ctx context.Context, msg msgDomain.Message) (*msgDomain.Message, bool, error)
	ApplyStatus(ctx context.Context, tenantID string, change msgDomain.StatusChange) (*msgDomain.Message, bool, error)
	SendAutoReply(ctx context.Context, tenantID, to, text string) (*msgDomain.SendResult, error)
}

type ContactUpserter interface {
	UpsertFromInbound(ctx context.Context, tenantID, phone, name string) (*contactDomain.Contact, bool, error)
}

type IngestorConfig struct {
	ValidateSignatures bool
	AutoReply          bool
}

// IngestResult cuenta lo que se encoló de un POST /webhook
type IngestResult struct {
	Messages int `json:"messages"`
	Statuses int `json:"statuses"`
	Dropped  int `json:"dropped"`
}

// Ingestor valida el webhook de Meta y reparte cada evento al worker pool.
type Ingestor struct {
	cfg      IngestorConfig
	tenants  TenantResolver
	messages MessageStore
	contacts ContactUpserter
	logs     *LogService
	notifier msgDomain.Notifier
	pool     Dispatcher
	now      func() time.Time
}

func NewIngestor(cfg IngestorConfig, tenants TenantResolver, messages MessageStore, contacts ContactUpserter, logs *LogService, notifier msgDomain.Notifier, pool Dispatcher) *Ingestor {
	if notifier == nil {
		notifier = msgDomain.NopNotifier{}
	}
	return &Ingestor{
		cfg:      cfg,
		tenants:  tenants,
		messages: messages,
		contacts: contacts,
		logs:     logs,
		notifier: notifier,
		pool:     pool,
		now:      time.Now,
	}
}

// VerifyChallenge resuelve el handshake GET /webhook. Devuelve el challenge a reflejar.
func (i *Ingestor) VerifyChallenge(ctx context.Context, mode, token, challenge string) (string, error) {
	if mode != "subscribe" || !i.tenants.IsVerifyToken(ctx, token) {
		logrus.WithField("mode", mode).Warn("[WEBHOOK] Verification rejected")
		return "", domain.ErrVerificationFail
	}
	logrus.Info("[WEBHOOK] Verification succeeded")
	return challenge, nil
}

// Ingest parses a POST /webhook body, checks its signature and queues one job
// per message and status. It never waits for the jobs.
func (i *Ingestor) Ingest(ctx context.Context, body []byte, signature string) (IngestResult, error) {
	var result IngestResult

	var payload domain.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return result, fmt.Errorf("invalid webhook payload: %w", err)
	}

	_, secret := i.tenants.ResolveWebhookTenant(ctx, firstPhoneNumberID(payload))
	if i.cfg.ValidateSignatures {
		if err := VerifySignature(body, signature, secret); err != nil {
			metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			logrus.WithError(err).Warn("[WEBHOOK] Signature check failed")
			return result, err
		}
	}

	if payload.Object != objectWhatsApp {
		logrus.WithField("object", payload.Object).Debug("[WEBHOOK] Ignoring unsupported object")
		return result, nil
	}

	resolved := map[string]string{}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			value := change.Value

			pnid := value.Metadata.PhoneNumberID
			tenantID, ok := resolved[pnid]
			if !ok {
				tenantID, _ = i.tenants.ResolveWebhookTenant(ctx, pnid)
				resolved[pnid] = tenantID
			}

			for _, msg := range value.Messages {
				metrics.WebhookEvents.WithLabelValues("message").Inc()
				result.Messages++
				if !i.dispatch(tenantID, msg.From, func(jobCtx context.Context) error {
					return i.handleIncoming(jobCtx, tenantID, value, msg)
				}) {
					result.Dropped++
				}
			}

			for _, st := range value.Statuses {
				metrics.WebhookEvents.WithLabelValues("status").Inc()
				result.Statuses++
				if !i.dispatch(tenantID, st.RecipientID, func(jobCtx context.Context) error {
					return i.handleStatus(jobCtx, tenantID, st)
				}) {
					result.Dropped++
				}
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"messages": result.Messages,
		"statuses": result.Statuses,
		"dropped":  result.Dropped,
	}).Debug("[WEBHOOK] Payload queued")
	return result, nil
}

func (i *Ingestor) dispatch(tenantID, phone string, handler func(ctx context.Context) error) bool {
	return i.pool.TryDispatch(msgworker.Job{
		TenantID: tenantID,
		ChatKey:  utils.NormalizePhone(phone),
		Handler:  handler,
	})
}

func (i *Ingestor) handleIncoming(ctx context.Context, tenantID string, value domain.Value, msg domain.InboundMessage) error {
	phone := utils.NormalizePhone(msg.From)
	name := value.ContactName(msg.From)
	fields := logrus.Fields{"tenant_id": tenantID, "phone": phone, "message_id": msg.ID}

	if phone == "" {
		logrus.WithFields(fields).Warn("[WEBHOOK] Message without sender phone skipped")
		return nil
	}

	i.logs.record(ctx, &domain.WebhookLog{
		TenantID:  tenantID,
		LogType:   domain.LogTypeMessage,
		Phone:     phone,
		MessageID: msg.ID,
		Context:   "type=" + msg.Type,
		RawData:   toMap(msg),
	})

	contact, isNew, err := i.contacts.UpsertFromInbound(ctx, tenantID, phone, name)
	if err != nil {
		logrus.WithFields(fields).WithError(err).Warn("[WEBHOOK] Contact upsert failed")
	}

	content := msg.Extract()
	saved, created, err := i.messages.SaveIncoming(ctx, msgDomain.Message{
		TenantID:    tenantID,
		MessageID:   msg.ID,
		Phone:       phone,
		ContactName: name,
		Text:        content.Text,
		MessageType: content.Type,
		Metadata:    content.Metadata,
	})
	if err != nil {
		i.recordError(ctx, tenantID, phone, msg.ID, err)
		return err
	}
	if !created {
		logrus.WithFields(fields).Info("[WEBHOOK] Duplicate delivery ignored")
		return nil
	}

	i.notifier.Notify(tenantID, msgDomain.EventMessageIncoming, msgDomain.MessageEvent{
		Phone:   phone,
		Name:    optional(name),
		Contact: contactInfo(contact, isNew),
		Message: msgDomain.EventMessage{
			ID:        optional(msg.ID),
			Type:      saved.MessageType,
			Text:      saved.Text,
			Timestamp: i.eventTime(msg.Timestamp),
			Direction: string(msgDomain.DirectionIncoming),
			MediaID:   content.MediaID,
		},
	})
	logrus.WithFields(fields).Infof("[WEBHOOK] Incoming %s stored", content.Type)

	if i.cfg.AutoReply && msg.Type == "text" {
		i.autoReply(ctx, tenantID, phone, content.Text)
	}
	return nil
}

func (i *Ingestor) autoReply(ctx context.Context, tenantID, phone, text string) {
	reply, ok := autoReplyFor(tenantID, text)
	if !ok {
		return
	}
	if _, err := i.messages.SendAutoReply(ctx, tenantID, phone, reply); err != nil {
		logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "phone": phone}).WithError(err).Warn("[WEBHOOK] Auto-reply failed")
	}
}

func (i *Ingestor) handleStatus(ctx context.Context, tenantID string, st domain.StatusUpdate) error {
	phone := utils.NormalizePhone(st.RecipientID)

	_, found, err := i.messages.ApplyStatus(ctx, tenantID, msgDomain.StatusChange{
		MessageID: st.ID,
		Status:    st.Status,
		Phone:     phone,
		At:        unixTime(st.Timestamp),
	})

	entry := &domain.WebhookLog{
		TenantID:  tenantID,
		LogType:   domain.LogTypeStatus,
		Phone:     phone,
		MessageID: st.ID,
		Status:    st.Status,
		Context:   "status update: " + st.Status,
		RawData:   toMap(st),
	}
	switch {
	case err != nil:
		i.recordError(ctx, tenantID, phone, st.ID, err)
		entry.Context = "status not applied"
	case !found:
		entry.Context = "unknown message"
	}
	i.logs.record(ctx, entry)

	if len(st.Errors) > 0 {
		e := st.Errors[0]
		i.recordError(ctx, tenantID, phone, st.ID, fmt.Errorf("delivery failed (%d): %s", e.Code, e.Title))
	}
	return err
}

func (i *Ingestor) recordError(ctx context.Context, tenantID, phone, messageID string, err error) {
	metrics.WebhookEvents.WithLabelValues("error").Inc()
	logrus.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"phone":      phone,
		"message_id": messageID,
	}).WithError(err).Error("[WEBHOOK] Processing error")

	i.logs.record(ctx, &domain.WebhookLog{
		TenantID:     tenantID,
		LogType:      domain.LogTypeError,
		Phone:        phone,
		MessageID:    messageID,
		ErrorMessage: err.Error(),
	})
}

// eventTime convierte el timestamp unix de Meta a RFC3339
func (i *Ingestor) eventTime(raw string) string {
	if t := unixTime(raw); !t.IsZero() {
		return t.Format(time.RFC3339)
	}
	return i.now().UTC().Format(time.RFC3339)
}

// unixTime parses Meta's unix seconds; zero when absent or invalid.
func unixTime(raw string) time.Time {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func firstPhoneNumberID(p domain.Payload) string {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if id := change.Value.Metadata.PhoneNumberID; id != "" {
				return id
			}
		}
	}
	return ""
}

type eventContact struct {
	Name   string   `json:"name"`
	IsNew  bool     `json:"is_new"`
	Labels []string `json:"labels"`
}

func contactInfo(c *contactDomain.Contact, isNew bool) any {
	if c == nil {
		return nil
	}
	labels := c.Labels
	if labels == nil {
		labels = []string{}
	}
	return eventContact{Name: c.Name, IsNew: isNew, Labels: labels}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// IsSignatureError reports errors that must be answered with 401.
func IsSignatureError(err error) bool {
	return errors.Is(err, domain.ErrInvalidSignature) ||
		errors.Is(err, domain.ErrMissingSignature) ||
		errors.Is(err, domain.ErrSecretNotSet)
}
