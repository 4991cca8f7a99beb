package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "orders_created_total",
		Help:      "Orders successfully assembled from carts.",
	})
	OrderStockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "order_stock_conflicts_total",
		Help:      "Order attempts aborted because stock changed since add-time.",
	})
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "payment_webhook_events_total",
		Help:      "Payment webhook deliveries by outcome.",
	}, []string{"outcome"}) // applied, duplicate, ignored, bad_signature, error
	NotificationsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "notifications_published_total",
		Help:      "Order confirmations handed to the queue.",
	})
	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "notifications_failed_total",
		Help:      "Order confirmations the queue refused; logged and dropped.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
