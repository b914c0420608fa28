package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatspy/whatspy/infrastructure/graphapi"
	"github.com/whatspy/whatspy/messaging/domain"
	pkgError "github.com/whatspy/whatspy/pkg/error"
)

func TestRender(t *testing.T) {
	out, err := Render("Hola {{name}}, tu pedido {{order}} está listo", map[string]string{"name": "Ana", "order": "#12"})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana, tu pedido #12 está listo", out)

	_, err = Render("Hola {{name}} {{order}}", map[string]string{"name": "Ana"})
	assert.ErrorIs(t, err, domain.ErrMissingTemplateVariables)
	assert.Contains(t, err.Error(), "order")
}

func TestRender_SpacedPlaceholders(t *testing.T) {
	out, err := Render("Hi {{ name }}, code {{code}}", map[string]string{"name": "Bob", "code": "42"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bob, code 42", out)

	// el valor sustituido no se vuelve a expandir
	out, err = Render("{{a}}", map[string]string{"a": "{{b}}"})
	require.NoError(t, err)
	assert.Equal(t, "{{b}}", out)
}

func TestExtractVariables(t *testing.T) {
	assert.Equal(t, []string{"name", "order"}, ExtractVariables("{{name}} {{order}} {{name}}"))
	assert.Empty(t, ExtractVariables("sin variables"))
}

func TestTemplateService_CreateAndSend(t *testing.T) {
	sender := &fakeSender{id: "wamid.T"}
	_, templates, _ := newTestService(t, sender, configured)
	ctx := context.Background()

	tpl, err := templates.Create(ctx, "t1", domain.CreateTemplateRequest{Name: "welcome", Content: "Hola {{name}}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, tpl.Variables)
	assert.Equal(t, "general", tpl.Category)

	result, err := templates.Send(ctx, "t1", domain.SendTemplateRequest{
		TemplateName: "welcome",
		To:           "+51999888777",
		Variables:    map[string]string{"name": "Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana", result.Message.Text)
	assert.Equal(t, []string{"+51999888777:Hola Ana"}, sender.texts)

	list, err := templates.List(ctx, "t1", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UsageCount)
}

func TestTemplateService_SendMissingVariables(t *testing.T) {
	sender := &fakeSender{id: "wamid.T"}
	_, templates, _ := newTestService(t, sender, configured)
	ctx := context.Background()

	_, err := templates.Create(ctx, "t1", domain.CreateTemplateRequest{Name: "order", Content: "Pedido {{order}} para {{name}}"})
	require.NoError(t, err)

	_, err = templates.Send(ctx, "t1", domain.SendTemplateRequest{
		TemplateName: "order",
		To:           "+51999888777",
		Variables:    map[string]string{"name": "Ana"},
	})
	var ve pkgError.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, sender.texts)
}

func TestTemplateService_UnknownTemplate(t *testing.T) {
	_, templates, _ := newTestService(t, &fakeSender{}, configured)

	_, err := templates.Send(context.Background(), "t1", domain.SendTemplateRequest{TemplateName: "nope", To: "+51999888777"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestTemplateService_SpacedPlaceholdersCanBeSent(t *testing.T) {
	sender := &fakeSender{id: "wamid.T"}
	_, templates, _ := newTestService(t, sender, configured)
	ctx := context.Background()

	tpl, err := templates.Create(ctx, "t1", domain.CreateTemplateRequest{Name: "greet", Content: "Hi {{ name }}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, tpl.Variables)

	result, err := templates.Send(ctx, "t1", domain.SendTemplateRequest{
		TemplateName: "greet",
		To:           "+51999888777",
		Variables:    map[string]string{"name": "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bob", result.Message.Text)
}

func TestTemplateService_SendApproved(t *testing.T) {
	sender := &fakeSender{id: "wamid.APPROVED"}
	svc, templates, notifier := newTestService(t, sender, configured)
	ctx := context.Background()

	result, err := templates.SendApproved(ctx, "t1", domain.SendApprovedTemplateRequest{
		TemplateName: "order_ready",
		To:           "51999888777",
		Parameters:   []string{"Ana", "#12"},
	})
	require.NoError(t, err)
	assert.True(t, result.Sent)
	assert.Equal(t, "wamid.APPROVED", result.MessageID)
	assert.Equal(t, "template", result.Message.MessageType)
	assert.Equal(t, "[template: order_ready]", result.Message.Text)
	assert.Equal(t, "order_ready", result.Message.Metadata["template_name"])
	assert.Equal(t, "en_US", result.Message.Metadata["language"])

	require.Len(t, sender.templates, 1)
	sent := sender.templates[0]
	assert.Equal(t, "51999888777", sent.to)
	assert.Equal(t, "order_ready", sent.name)
	assert.Equal(t, "en_US", sent.language)
	require.Len(t, sent.components, 1)
	assert.Equal(t, "body", sent.components[0].Type)
	assert.Equal(t, []graphapi.TemplateParameter{{Type: "text", Text: "Ana"}, {Type: "text", Text: "#12"}}, sent.components[0].Parameters)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, domain.EventMessageOutgoing, notifier.events[0].event)

	stored, _, err := svc.ListMessages(ctx, "t1", domain.MessageFilter{Direction: domain.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "+51999888777", stored[0].Phone)
}

func TestTemplateService_SendApprovedFailureIsNotStored(t *testing.T) {
	sender := &fakeSender{err: errors.New("template not approved")}
	svc, templates, notifier := newTestService(t, sender, configured)
	ctx := context.Background()

	_, err := templates.SendApproved(ctx, "t1", domain.SendApprovedTemplateRequest{TemplateName: "promo", To: "+51999888777", Language: "es", HeaderText: "Hoy"})
	require.Error(t, err)
	require.Len(t, sender.templates, 1)
	assert.Equal(t, "es", sender.templates[0].language)
	assert.Equal(t, "header", sender.templates[0].components[0].Type)

	_, total, err := svc.ListMessages(ctx, "t1", domain.MessageFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, notifier.events)
}

func TestTemplateService_SendApprovedValidation(t *testing.T) {
	sender := &fakeSender{id: "wamid.X"}
	_, templates, _ := newTestService(t, sender, configured)

	_, err := templates.SendApproved(context.Background(), "t1", domain.SendApprovedTemplateRequest{TemplateName: "Bad Name", To: "+51999888777"})
	var ve pkgError.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Empty(t, sender.templates)
}
