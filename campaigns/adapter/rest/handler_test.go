package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatspy/whatspy/campaigns/application"
	"github.com/whatspy/whatspy/campaigns/repository"
	"github.com/whatspy/whatspy/core/database"
	msgDomain "github.com/whatspy/whatspy/messaging/domain"
	"github.com/whatspy/whatspy/pkg/msgworker"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/ui/rest/middleware"
)

type okSender struct{}

func (okSender) SendText(_ context.Context, _ string, req msgDomain.SendTextRequest) (*msgDomain.SendResult, error) {
	return &msgDomain.SendResult{MessageID: "wamid." + req.To, Sent: true}, nil
}

type inlinePool struct{}

func (inlinePool) TryDispatch(job msgworker.Job) bool {
	_ = job.Handler(context.Background())
	return true
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := database.NewInMemoryDatabase()
	require.NoError(t, err)
	repo := repository.NewCampaignGormRepository(db)
	require.NoError(t, repo.InitSchema())

	app := fiber.New()
	app.Use(middleware.Recovery())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(utils.TenantLocalKey, "t1")
		return c.Next()
	})
	NewCampaignHandler(application.NewCampaignService(repo, okSender{}, inlinePool{})).RegisterRoutes(app.Group("/api"))
	return app
}

func request(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var env map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&env)
	resp.Body.Close()
	return resp, env
}

func TestCampaignEndpoints(t *testing.T) {
	app := setupApp(t)

	resp, env := request(t, app, http.MethodPost, "/api/campaigns/broadcast",
		`{"campaign_name":"promo","message_text":"hola","recipients":["51911111111","51922222222"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.EqualValues(t, 202, env["status"])
	created := env["results"].(map[string]any)
	id := created["campaign_id"].(string)
	assert.EqualValues(t, 2, created["total_recipients"])

	resp, env = request(t, app, http.MethodGet, "/api/campaigns/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := env["results"].(map[string]any)
	assert.Equal(t, "completed", got["status"])
	assert.EqualValues(t, 2, got["sent_count"])
	results := got["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "wamid.+51911111111", results[0].(map[string]any)["message_id"])

	resp, env = request(t, app, http.MethodGet, "/api/campaigns?limit=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, env["results"].(map[string]any)["total"])

	resp, env = request(t, app, http.MethodGet, "/api/campaigns/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND_ERROR", env["code"])

	resp, env = request(t, app, http.MethodPost, "/api/campaigns/broadcast", `{"message_text":"hola","recipients":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", env["code"])
}
