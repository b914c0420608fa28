package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WSConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whatspy_ws_connections",
			Help: "Open WebSocket connections per tenant on this node",
		},
		[]string{"tenant"},
	)

	WSBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatspy_ws_broadcasts_total",
			Help: "Broadcast passes executed per tenant",
		},
		[]string{"tenant"},
	)

	WSSendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatspy_ws_send_failures_total",
			Help: "Sockets removed after a failed send, per tenant",
		},
		[]string{"tenant"},
	)

	WSNotifyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatspy_ws_notify_dropped_total",
			Help: "Events dropped because the hub queue was full or stopped",
		},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatspy_webhook_events_total",
			Help: "Webhook events received, by type (message, status, error)",
		},
		[]string{"type"},
	)

	MessagesSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatspy_messages_saved_total",
			Help: "Messages persisted, by direction",
		},
		[]string{"direction"},
	)

	WorkerBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "whatspy_worker_busy",
			Help: "Webhook workers currently running a job",
		},
	)

	WorkerDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatspy_worker_dropped_total",
			Help: "Webhook jobs dropped by the worker pool",
		},
	)

	CampaignRecipients = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatspy_campaign_recipients_total",
			Help: "Campaign recipients processed, by result (sent, failed)",
		},
		[]string{"result"},
	)
)

// Registry holds every whatspy collector plus the Go/process collectors.
var Registry = prometheus.NewRegistry()

var initOnce sync.Once

// Init registers metrics with the registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			WSConnections,
			WSBroadcasts,
			WSSendFailures,
			WSNotifyDropped,
			WebhookEvents,
			MessagesSaved,
			WorkerBusy,
			WorkerDropped,
			CampaignRecipients,
		)
	})
}

// Handler exposes the registry in the Prometheus text format as a fiber handler.
func Handler() fiber.Handler {
	Init()
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
