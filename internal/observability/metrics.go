package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveContexts    prometheus.Gauge
	ContextsSwept     prometheus.Counter
	WebhookDeliveries *prometheus.CounterVec
	OrdersRecorded    prometheus.Counter
	AttributedRevenue *prometheus.CounterVec
	CartsCreated      prometheus.Counter
	ChatTurns         prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveContexts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_contexts",
			Help:      "Number of conversation contexts currently registered.",
		}),
		ContextsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contexts_swept_total",
			Help:      "Conversation contexts removed by TTL sweeps.",
		}),
		WebhookDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Order webhook deliveries by outcome.",
		}, []string{"outcome"}),
		OrdersRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_recorded_total",
			Help:      "Orders attributed to agent conversations.",
		}),
		AttributedRevenue: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attributed_revenue_total",
			Help:      "Revenue attributed to agent conversations by currency.",
		}, []string{"currency"}),
		CartsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_created_total",
			Help:      "Carts created through the agent.",
		}),
		ChatTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Completed chat turns (user message plus assistant reply).",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
