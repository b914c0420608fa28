package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCounters(t *testing.T) {
	Init()
	Init()

	WebhookEvents.WithLabelValues("message").Inc()
	MessagesSaved.WithLabelValues("incoming").Add(2)

	assert.GreaterOrEqual(t, testutil.ToFloat64(MessagesSaved.WithLabelValues("incoming")), float64(2))

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "whatspy_webhook_events_total")
	assert.Contains(t, string(body), "whatspy_messages_saved_total")
}
