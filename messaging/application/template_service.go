package application

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/whatspy/whatspy/infrastructure/graphapi"
	"github.com/whatspy/whatspy/messaging/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
	"github.com/whatspy/whatspy/validations"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

const defaultTemplateLanguage = "en_US"

// TemplateService gestiona plantillas locales y su envío como texto
type TemplateService struct {
	repo     domain.TemplateRepository
	messages *MessageService
}

func NewTemplateService(repo domain.TemplateRepository, messages *MessageService) *TemplateService {
	return &TemplateService{repo: repo, messages: messages}
}

func (s *TemplateService) Create(ctx context.Context, tenantID string, req domain.CreateTemplateRequest) (*domain.Template, error) {
	if err := validations.ValidateCreateTemplate(ctx, req); err != nil {
		return nil, err
	}

	vars := req.Variables
	if len(vars) == 0 {
		vars = ExtractVariables(req.Content)
	}

	tpl := &domain.Template{
		TenantID:  tenantID,
		Name:      strings.TrimSpace(req.Name),
		Content:   req.Content,
		Variables: vars,
		Category:  req.Category,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) List(ctx context.Context, tenantID, category string) ([]*domain.Template, error) {
	return s.repo.List(ctx, tenantID, category)
}

func (s *TemplateService) Delete(ctx context.Context, tenantID, id string) error {
	return s.repo.Delete(ctx, tenantID, id)
}

// Send renders the template with the given variables and sends it as text.
// Any placeholder left unreplaced aborts the send.
func (s *TemplateService) Send(ctx context.Context, tenantID string, req domain.SendTemplateRequest) (*domain.SendResult, error) {
	if err := validations.ValidateSendTemplate(ctx, req); err != nil {
		return nil, err
	}

	tpl, err := s.repo.GetByName(ctx, tenantID, req.TemplateName)
	if err != nil {
		return nil, err
	}

	content, err := Render(tpl.Content, req.Variables)
	if err != nil {
		return nil, pkgError.ValidationError(fmt.Sprintf("%s (template requires: %s)", err, strings.Join(tpl.Variables, ", ")))
	}

	result, err := s.messages.SendText(ctx, tenantID, domain.SendTextRequest{To: req.To, Text: content})
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementUsage(ctx, tpl.ID); err != nil {
		logrus.WithError(err).Warnf("[MESSAGE] Failed to increment usage for template %s", tpl.Name)
	}
	logrus.WithField("tenant_id", tenantID).Infof("[MESSAGE] Template '%s' sent to %s", tpl.Name, req.To)
	return result, nil
}

// SendApproved sends a template approved by Meta through the Cloud API and
// stores it as an outgoing "template" message. Approved templates live on
// Meta's side, so no local template row is required.
func (s *TemplateService) SendApproved(ctx context.Context, tenantID string, req domain.SendApprovedTemplateRequest) (*domain.SendResult, error) {
	if err := validations.ValidateSendApprovedTemplate(ctx, req); err != nil {
		return nil, err
	}
	language := req.Language
	if language == "" {
		language = defaultTemplateLanguage
	}

	components := approvedComponents(req)
	meta := map[string]any{
		"template_name": req.TemplateName,
		"language":      language,
	}
	if len(req.Parameters) > 0 {
		meta["parameters"] = req.Parameters
	}

	result, err := s.messages.sendAndStore(ctx, tenantID, req.To, "template", "[template: "+req.TemplateName+"]", meta, func(creds graphapi.Credentials) (string, error) {
		return s.messages.sender.SendTemplate(ctx, creds, req.To, req.TemplateName, language, components)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("tenant_id", tenantID).Infof("[MESSAGE] Approved template '%s' (%s) sent to %s", req.TemplateName, language, req.To)
	return result, nil
}

func approvedComponents(req domain.SendApprovedTemplateRequest) []graphapi.TemplateComponent {
	var components []graphapi.TemplateComponent
	if req.HeaderText != "" {
		components = append(components, graphapi.TemplateComponent{
			Type:       "header",
			Parameters: []graphapi.TemplateParameter{{Type: "text", Text: req.HeaderText}},
		})
	}
	if len(req.Parameters) > 0 {
		params := make([]graphapi.TemplateParameter, 0, len(req.Parameters))
		for _, p := range req.Parameters {
			params = append(params, graphapi.TemplateParameter{Type: "text", Text: p})
		}
		components = append(components, graphapi.TemplateComponent{Type: "body", Parameters: params})
	}
	return components
}

// Render replaces every {{name}} (or {{ name }}) with variables[name].
func Render(content string, variables map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(content, func(placeholder string) string {
		name := placeholderPattern.FindStringSubmatch(placeholder)[1]
		value, ok := variables[name]
		if !ok {
			missing = append(missing, name)
			return placeholder
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingTemplateVariables, strings.Join(missing, ", "))
	}
	return out, nil
}

// ExtractVariables lists placeholder names in order of first appearance.
func ExtractVariables(content string) []string {
	seen := map[string]bool{}
	var vars []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}
