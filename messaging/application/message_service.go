package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/infrastructure/graphapi"
	"github.com/whatspy/whatspy/messaging/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/pkg/metrics"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/validations"
)

// Sender is the outbound side of the Cloud API.
type Sender interface {
	SendText(ctx context.Context, creds graphapi.Credentials, to, body string) (string, error)
	SendMedia(ctx context.Context, creds graphapi.Credentials, to string, media graphapi.Media) (string, error)
	SendLocation(ctx context.Context, creds graphapi.Credentials, to string, loc graphapi.Location) (string, error)
	SendTemplate(ctx context.Context, creds graphapi.Credentials, to, name, language string, components []graphapi.TemplateComponent) (string, error)
	MarkAsRead(ctx context.Context, creds graphapi.Credentials, messageID string) error
}

// CredentialsProvider resolves the Cloud API credentials of a tenant.
type CredentialsProvider interface {
	Credentials(ctx context.Context, tenantID string) (graphapi.Credentials, error)
}

// MessageService implementa persistencia, consultas y envío de mensajes
type MessageService struct {
	repo     domain.MessageRepository
	sender   Sender
	creds    CredentialsProvider
	notifier domain.Notifier
	now      func() time.Time
}

func NewMessageService(repo domain.MessageRepository, sender Sender, creds CredentialsProvider, notifier domain.Notifier) *MessageService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &MessageService{
		repo:     repo,
		sender:   sender,
		creds:    creds,
		notifier: notifier,
		now:      time.Now,
	}
}

// --- Persistence ---

// SaveMessage normaliza el teléfono y persiste el mensaje. Si ya existe una fila
// con el mismo (tenant_id, message_id) la retorna sin modificarla.
func (s *MessageService) SaveMessage(ctx context.Context, msg domain.Message) (*domain.Message, bool, error) {
	if msg.TenantID == "" {
		return nil, false, pkgError.ValidationError("tenant_id is required")
	}
	if !msg.Direction.Valid() {
		return nil, false, pkgError.ValidationError(fmt.Sprintf("invalid direction: %q", msg.Direction))
	}
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	msg.Phone = utils.NormalizePhone(msg.Phone)

	saved, created, err := s.repo.Save(ctx, &msg)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"tenant_id":  msg.TenantID,
			"message_id": msg.MessageID,
			"phone":      msg.Phone,
		}).WithError(err).Error("[MESSAGE] Failed to save message")
		return nil, false, err
	}

	if created {
		metrics.MessagesSaved.WithLabelValues(string(saved.Direction)).Inc()
	}
	return saved, created, nil
}

func (s *MessageService) SaveIncoming(ctx context.Context, msg domain.Message) (*domain.Message, bool, error) {
	msg.Direction = domain.DirectionIncoming
	msg.Status = domain.StatusReceived
	return s.SaveMessage(ctx, msg)
}

func (s *MessageService) SaveOutgoing(ctx context.Context, msg domain.Message) (*domain.Message, bool, error) {
	msg.Direction = domain.DirectionOutgoing
	msg.Status = domain.StatusSent
	return s.SaveMessage(ctx, msg)
}

// UpdateStatus sobrescribe el status (último en escribir gana) y notifica
// message_status. found=false cuando el message_id no existe; no es error.
func (s *MessageService) UpdateStatus(ctx context.Context, tenantID, messageID, rawStatus string) (*domain.Message, bool, error) {
	return s.ApplyStatus(ctx, tenantID, domain.StatusChange{MessageID: messageID, Status: rawStatus})
}

// ApplyStatus is UpdateStatus for a webhook report: the event carries the
// reported recipient and time. A storage failure is returned but the event
// is still pushed.
func (s *MessageService) ApplyStatus(ctx context.Context, tenantID string, change domain.StatusChange) (*domain.Message, bool, error) {
	status, ok := domain.ParseStatus(change.Status)
	if !ok {
		return nil, false, pkgError.ValidationError(fmt.Sprintf("%s: %q", domain.ErrInvalidStatus, change.Status))
	}

	fields := logrus.Fields{"tenant_id": tenantID, "message_id": change.MessageID, "status": status}
	event := domain.StatusEvent{
		MessageID: change.MessageID,
		Status:    string(status),
		Phone:     utils.NormalizePhone(change.Phone),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	if !change.At.IsZero() {
		event.Timestamp = change.At.UTC().Format(time.RFC3339)
	}

	msg, previous, found, err := s.repo.UpdateStatus(ctx, tenantID, change.MessageID, status)
	switch {
	case err != nil:
		logrus.WithFields(fields).WithError(err).Error("[MESSAGE] Failed to update status")
	case !found:
		logrus.WithFields(fields).Warn("[MESSAGE] Status update for unknown message")
	default:
		event.Phone = msg.Phone
		if !domain.IsForward(previous, status) {
			logrus.WithFields(fields).Warnf("[MESSAGE] Out-of-order status %s -> %s applied", previous, status)
		}
	}

	s.notifier.Notify(tenantID, domain.EventMessageStatus, event)
	if err != nil {
		return nil, false, err
	}
	return msg, found, nil
}

// --- Queries ---

func (s *MessageService) ListMessages(ctx context.Context, tenantID string, filter domain.MessageFilter) ([]*domain.Message, int64, error) {
	filter.Phone = utils.NormalizePhone(filter.Phone)
	if filter.Direction != "" && !filter.Direction.Valid() {
		return nil, 0, pkgError.ValidationError(fmt.Sprintf("invalid direction: %q", filter.Direction))
	}
	filter.Normalize()
	return s.repo.List(ctx, tenantID, filter)
}

func (s *MessageService) GetConversation(ctx context.Context, tenantID, phone string, limit int) ([]*domain.Message, error) {
	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return nil, pkgError.ValidationError("phone is required")
	}
	return s.repo.ListByPhone(ctx, tenantID, phone, limit)
}

func (s *MessageService) ListConversations(ctx context.Context, tenantID string) ([]domain.Conversation, error) {
	return s.repo.ListConversations(ctx, tenantID)
}

func (s *MessageService) DeleteConversation(ctx context.Context, tenantID, phone string) (int64, error) {
	phone = utils.NormalizePhone(phone)
	if phone == "" {
		return 0, pkgError.ValidationError("phone is required")
	}
	deleted, err := s.repo.DeleteByPhone(ctx, tenantID, phone)
	if err != nil {
		return 0, err
	}
	logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "phone": phone}).Infof("[MESSAGE] Deleted %d messages", deleted)
	return deleted, nil
}

func (s *MessageService) GetStats(ctx context.Context, tenantID string) (*domain.Stats, error) {
	return s.repo.Stats(ctx, tenantID, s.now().Add(-7*24*time.Hour))
}

// --- Sending ---

func (s *MessageService) SendText(ctx context.Context, tenantID string, req domain.SendTextRequest) (*domain.SendResult, error) {
	if err := validations.ValidateSendText(ctx, req); err != nil {
		return nil, err
	}
	return s.sendAndStore(ctx, tenantID, req.To, "text", req.Text, nil, func(creds graphapi.Credentials) (string, error) {
		return s.sender.SendText(ctx, creds, req.To, req.Text)
	})
}

func (s *MessageService) SendMedia(ctx context.Context, tenantID string, req domain.SendMediaRequest) (*domain.SendResult, error) {
	if err := validations.ValidateSendMedia(ctx, req); err != nil {
		return nil, err
	}
	text := req.Caption
	if text == "" {
		text = "(" + req.MediaType + ")"
	}
	meta := map[string]any{"link": req.Link}
	if req.Filename != "" {
		meta["filename"] = req.Filename
	}
	return s.sendAndStore(ctx, tenantID, req.To, req.MediaType, text, meta, func(creds graphapi.Credentials) (string, error) {
		return s.sender.SendMedia(ctx, creds, req.To, graphapi.Media{
			Type:     req.MediaType,
			Link:     req.Link,
			Caption:  req.Caption,
			Filename: req.Filename,
		})
	})
}

func (s *MessageService) SendLocation(ctx context.Context, tenantID string, req domain.SendLocationRequest) (*domain.SendResult, error) {
	if err := validations.ValidateSendLocation(ctx, req); err != nil {
		return nil, err
	}
	text := fmt.Sprintf("📍 %.6f, %.6f", req.Latitude, req.Longitude)
	if req.Name != "" {
		text = "📍 " + req.Name
	}
	meta := map[string]any{
		"latitude":  req.Latitude,
		"longitude": req.Longitude,
		"address":   req.Address,
	}
	return s.sendAndStore(ctx, tenantID, req.To, "location", text, meta, func(creds graphapi.Credentials) (string, error) {
		return s.sender.SendLocation(ctx, creds, req.To, graphapi.Location{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Name:      req.Name,
			Address:   req.Address,
		})
	})
}

// SendAutoReply envía una respuesta automática del bot; queda marcada con auto_reply=true.
func (s *MessageService) SendAutoReply(ctx context.Context, tenantID, to, text string) (*domain.SendResult, error) {
	meta := map[string]any{"auto_reply": true}
	return s.sendAndStore(ctx, tenantID, to, "text", text, meta, func(creds graphapi.Credentials) (string, error) {
		return s.sender.SendText(ctx, creds, to, text)
	})
}

// MarkAsRead envía el acuse de lectura a Meta para un mensaje entrante.
func (s *MessageService) MarkAsRead(ctx context.Context, tenantID, messageID string) error {
	creds, err := s.creds.Credentials(ctx, tenantID)
	if err != nil {
		return err
	}
	return s.sender.MarkAsRead(ctx, creds, messageID)
}

// sendAndStore envía por la Cloud API (si el tenant tiene credenciales),
// persiste el mensaje saliente y notifica message_outgoing. Un fallo de envío
// se retorna sin persistir nada.
func (s *MessageService) sendAndStore(ctx context.Context, tenantID, to, msgType, text string, meta map[string]any, send func(graphapi.Credentials) (string, error)) (*domain.SendResult, error) {
	phone := utils.NormalizePhone(to)
	fields := logrus.Fields{"tenant_id": tenantID, "phone": phone, "type": msgType}

	creds, err := s.creds.Credentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	vendorID := ""
	if creds.Valid() {
		vendorID, err = send(creds)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("[MESSAGE] Failed to send message")
			return nil, err
		}
		logrus.WithFields(fields).Infof("[MESSAGE] Sent %s", vendorID)
	} else {
		logrus.WithFields(fields).Warn("[MESSAGE] Cloud API not configured, message stored but not sent")
	}

	saved, _, err := s.SaveOutgoing(ctx, domain.Message{
		TenantID:    tenantID,
		MessageID:   vendorID,
		Phone:       phone,
		Text:        text,
		MessageType: msgType,
		Metadata:    meta,
	})
	if err != nil {
		return nil, err
	}

	autoReply, _ := meta["auto_reply"].(bool)
	s.NotifyOutgoing(tenantID, saved, autoReply)

	return &domain.SendResult{MessageID: vendorID, Sent: vendorID != "", Message: saved}, nil
}

// NotifyOutgoing pushes message_outgoing for an already stored message.
func (s *MessageService) NotifyOutgoing(tenantID string, msg *domain.Message, autoReply bool) {
	var id *string
	if msg.MessageID != "" {
		v := msg.MessageID
		id = &v
	}
	var name *string
	if msg.ContactName != "" {
		v := msg.ContactName
		name = &v
	}
	s.notifier.Notify(tenantID, domain.EventMessageOutgoing, domain.MessageEvent{
		Phone: msg.Phone,
		Name:  name,
		Message: domain.EventMessage{
			ID:        id,
			Type:      msg.MessageType,
			Text:      msg.Text,
			Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
			Direction: string(domain.DirectionOutgoing),
			AutoReply: autoReply,
		},
	})
}
