package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/infrastructure/graphapi"
	"github.com/whatspy/whatspy/messaging/application"
	"github.com/whatspy/whatspy/messaging/domain"
	"github.com/whatspy/whatspy/messaging/repository"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/ui/rest/middleware"
)

type stubSender struct{}

func (stubSender) SendText(context.Context, graphapi.Credentials, string, string) (string, error) {
	return "wamid.REST", nil
}

func (stubSender) SendMedia(context.Context, graphapi.Credentials, string, graphapi.Media) (string, error) {
	return "wamid.MEDIA", nil
}

func (stubSender) SendLocation(context.Context, graphapi.Credentials, string, graphapi.Location) (string, error) {
	return "wamid.LOC", nil
}

func (stubSender) SendTemplate(context.Context, graphapi.Credentials, string, string, string, []graphapi.TemplateComponent) (string, error) {
	return "wamid.TPL", nil
}

func (stubSender) MarkAsRead(context.Context, graphapi.Credentials, string) error {
	return nil
}

type stubCreds struct{}

func (stubCreds) Credentials(context.Context, string) (graphapi.Credentials, error) {
	return graphapi.Credentials{PhoneNumberID: "pn", AccessToken: "tok"}, nil
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Results json.RawMessage `json:"results"`
}

func setupApp(t *testing.T) (*fiber.App, *application.MessageService) {
	t.Helper()
	db, err := database.NewInMemoryDatabase()
	require.NoError(t, err)

	messages := repository.NewMessageGormRepository(db)
	templates := repository.NewTemplateGormRepository(db)
	require.NoError(t, database.Migrate(messages, templates))

	msgSvc := application.NewMessageService(messages, stubSender{}, stubCreds{}, nil)
	tplSvc := application.NewTemplateService(templates, msgSvc)

	app := fiber.New()
	app.Use(middleware.Recovery())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(utils.TenantLocalKey, "tenant-a")
		return c.Next()
	})
	NewMessageHandler(msgSvc, tplSvc).RegisterRoutes(app.Group("/api"))
	return app, msgSvc
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestSendTextAndListConversations(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doJSON(t, app, http.MethodPost, "/api/messages/send/text", map[string]string{"to": "51999888777", "text": "hola"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SUCCESS", env.Code)
	assert.Equal(t, "Message sent", env.Message)

	var result domain.SendResult
	require.NoError(t, json.Unmarshal(env.Results, &result))
	assert.Equal(t, "wamid.REST", result.MessageID)
	assert.Equal(t, "+51999888777", result.Message.Phone)

	status, env = doJSON(t, app, http.MethodGet, "/api/messages/conversations", nil)
	require.Equal(t, http.StatusOK, status)
	var convs struct {
		Conversations []domain.Conversation `json:"conversations"`
		Count         int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &convs))
	require.Equal(t, 1, convs.Count)
	assert.Equal(t, "hola", convs.Conversations[0].LastMessage)
}

func TestSendText_ValidationError(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doJSON(t, app, http.MethodPost, "/api/messages/send/text", map[string]string{"to": "51999888777"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}

func TestUpdateStatus_Endpoint(t *testing.T) {
	app, svc := setupApp(t)

	_, _, err := svc.SaveOutgoing(context.Background(), domain.Message{TenantID: "tenant-a", MessageID: "wamid.X", Phone: "+51999", Text: "hi"})
	require.NoError(t, err)

	status, env := doJSON(t, app, http.MethodPut, "/api/messages/wamid.X/status", map[string]string{"status": "delivered"})
	require.Equal(t, http.StatusOK, status)
	var msg domain.Message
	require.NoError(t, json.Unmarshal(env.Results, &msg))
	assert.Equal(t, domain.StatusDelivered, msg.Status)

	status, env = doJSON(t, app, http.MethodPut, "/api/messages/wamid.MISSING/status", map[string]string{"status": "read"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND_ERROR", env.Code)

	status, _ = doJSON(t, app, http.MethodPut, "/api/messages/wamid.X/status", map[string]string{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTemplates_Endpoints(t *testing.T) {
	app, _ := setupApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/messages/templates", map[string]string{"name": "welcome", "content": "Hola {{name}}"})
	require.Equal(t, http.StatusCreated, status)

	status, env := doJSON(t, app, http.MethodPost, "/api/messages/templates", map[string]string{"name": "welcome", "content": "dup"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT_ERROR", env.Code)

	status, _ = doJSON(t, app, http.MethodPost, "/api/messages/templates/send", map[string]any{
		"template_name": "welcome",
		"to":            "+51999888777",
		"variables":     map[string]string{"name": "Ana"},
	})
	assert.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, app, http.MethodPost, "/api/messages/templates/send", map[string]any{
		"template_name": "nope",
		"to":            "+51999888777",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND_ERROR", env.Code)
}

func TestStatsAndDeleteConversation(t *testing.T) {
	app, svc := setupApp(t)
	ctx := context.Background()

	_, _, err := svc.SaveIncoming(ctx, domain.Message{TenantID: "tenant-a", MessageID: "wamid.1", Phone: "51999", Text: "a"})
	require.NoError(t, err)
	_, _, err = svc.SaveIncoming(ctx, domain.Message{TenantID: "tenant-b", MessageID: "wamid.2", Phone: "51999", Text: "b"})
	require.NoError(t, err)

	status, env := doJSON(t, app, http.MethodGet, "/api/messages/stats", nil)
	require.Equal(t, http.StatusOK, status)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(env.Results, &stats))
	assert.Equal(t, int64(1), stats.TotalMessages)

	status, env = doJSON(t, app, http.MethodDelete, "/api/messages/conversations/51999", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deleted_count":1}`, string(env.Results))
}

func TestSendApprovedTemplate_Endpoint(t *testing.T) {
	app, _ := setupApp(t)

	status, env := doJSON(t, app, http.MethodPost, "/api/messages/templates/approved/send", map[string]any{
		"template_name": "order_ready",
		"to":            "51999888777",
		"parameters":    []string{"Ana"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Message sent", env.Message)

	var result domain.SendResult
	require.NoError(t, json.Unmarshal(env.Results, &result))
	assert.Equal(t, "wamid.TPL", result.MessageID)
	assert.Equal(t, "template", result.Message.MessageType)

	status, env = doJSON(t, app, http.MethodPost, "/api/messages/templates/approved/send", map[string]any{"to": "51999888777"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)
}
