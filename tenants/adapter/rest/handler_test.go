package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/pkg/crypto"
	"github.com/whatspy/whatspy/pkg/utils"
	"github.com/whatspy/whatspy/tenants/application"
	"github.com/whatspy/whatspy/tenants/repository"
	"github.com/whatspy/whatspy/tenants/security"
	"github.com/whatspy/whatspy/ui/rest/middleware"
)

type testEnv struct {
	app    *fiber.App
	auth   *application.AuthService
	issuer *security.Issuer
}

func setupApp(t *testing.T, allowHeader bool) testEnv {
	t.Helper()
	db, err := database.NewInMemoryDatabase()
	require.NoError(t, err)
	box, err := crypto.NewBox("k")
	require.NoError(t, err)

	cfgRepo := repository.NewTenantConfigGormRepository(db, box)
	adminRepo := repository.NewAdminGormRepository(db)
	require.NoError(t, database.Migrate(cfgRepo, adminRepo))

	issuer := security.NewIssuer("jwt", time.Hour)
	auth := application.NewAuthService(adminRepo, issuer)
	cfgSvc := application.NewConfigService(cfgRepo, application.Defaults{TenantID: "default"})

	app := fiber.New()
	app.Use(middleware.Recovery())
	api := app.Group("/api")
	NewAuthHandler(auth).RegisterRoutes(api)

	protected := api.Group("", NewTenantMiddleware(TenantMiddlewareConfig{
		Next:              OnlyUnder("/api/tenant", "/api/whoami"),
		Tokens:            issuer,
		AllowTenantHeader: allowHeader,
		DefaultTenantID:   "default",
	}))
	NewConfigHandler(cfgSvc).RegisterRoutes(protected)
	protected.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(utils.TenantID(c))
	})
	api.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(utils.ResponseData{Status: 404, Code: "NOT_FOUND", Message: "API Endpoint not found"})
	})

	return testEnv{app: app, auth: auth, issuer: issuer}
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, utils.ResponseData) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var env utils.ResponseData
	_ = json.NewDecoder(resp.Body).Decode(&env)
	resp.Body.Close()
	return resp, env
}

func whoami(t *testing.T, app *fiber.App, headers map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestLoginAndBearerTenant(t *testing.T) {
	env := setupApp(t, false)
	_, err := env.auth.CreateAdmin(context.Background(), "admin", "password1", "acme")
	require.NoError(t, err)

	resp, body := do(t, env.app, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope-nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_ERROR", body.Code)

	resp, body = do(t, env.app, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"password1"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body.Results.(map[string]any)
	token := results["token"].(string)

	status, tenant := whoami(t, env.app, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "acme", tenant)

	status, _ = whoami(t, env.app, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = whoami(t, env.app, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "header fallback disabled")
}

func TestTenantHeaderFallback(t *testing.T) {
	env := setupApp(t, true)

	status, tenant := whoami(t, env.app, map[string]string{TenantHeader: "t9"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "t9", tenant)

	status, tenant = whoami(t, env.app, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "default", tenant)

	status, _ = whoami(t, env.app, map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTenantConfigEndpoints(t *testing.T) {
	env := setupApp(t, true)
	h := map[string]string{TenantHeader: "t1"}

	resp, _ := do(t, env.app, http.MethodGet, "/api/tenant/config", "", h)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, env.app, http.MethodPut, "/api/tenant/config",
		`{"phone_number_id":"111","access_token":"EAAG-secret-9999"}`, h)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body.Results.(map[string]any)
	assert.Equal(t, "***9999", results["access_token"])

	resp, body = do(t, env.app, http.MethodGet, "/api/tenant/config", "", h)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results = body.Results.(map[string]any)
	assert.Equal(t, "111", results["phone_number_id"])
	assert.Equal(t, "***9999", results["access_token"])

	resp, _ = do(t, env.app, http.MethodPut, "/api/tenant/config", `{"phone_number_id":"111"}`, map[string]string{TenantHeader: "t2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, env.app, http.MethodPut, "/api/tenant/config", `{"phone_number_id":"abc"}`, h)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestTenantMiddleware_UnknownRouteIsNotFound(t *testing.T) {
	env := setupApp(t, false)

	resp, body := do(t, env.app, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body.Code)

	resp, _ = do(t, env.app, http.MethodGet, "/api/tenantx", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, env.app, http.MethodGet, "/api/tenant/config", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTHENTICATION_ERROR", body.Code)
}
