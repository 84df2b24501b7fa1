// Package metrics holds the Prometheus instruments for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all counters so they can be injected and registered
// against a test registry.
type Metrics struct {
	NotificationsDispatched prometheus.Counter
	NotificationsDenied     *prometheus.CounterVec
	ProviderFailures        prometheus.Counter
	RelayRequests           prometheus.Counter
	RelayFailures           prometheus.Counter
	RelayedBytes            prometheus.Counter
}

// New creates and registers all metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NotificationsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_notifications_dispatched_total",
			Help: "Notifications successfully handed to the messaging provider",
		}),
		NotificationsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "platewatch_notifications_denied_total",
			Help: "Notification requests denied before dispatch, by reason",
		}, []string{"reason"}),
		ProviderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_provider_failures_total",
			Help: "Messaging provider calls that failed after admission",
		}),
		RelayRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_relay_requests_total",
			Help: "Media relay requests accepted",
		}),
		RelayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_relay_failures_total",
			Help: "Media relay requests that failed before or during streaming",
		}),
		RelayedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_relayed_bytes_total",
			Help: "Response bytes piped back from the detection backend",
		}),
	}
}
