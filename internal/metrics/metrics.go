package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine instrumentation. Registered on the default registry; exposed by
// Handler on /metrics.
var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simshield_ticks_total",
		Help: "Number of simulation ticks executed.",
	})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simshield_events_total",
		Help: "Number of simulation events emitted, by type.",
	}, []string{"type"})

	CompromisedDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simshield_compromised_devices",
		Help: "Number of devices currently compromised.",
	})

	AttackIntensity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simshield_attack_intensity",
		Help: "Configured attack intensity (0-100), by vector.",
	}, []string{"vector"})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simshield_connected_clients",
		Help: "Number of connected WebSocket dashboard clients.",
	})
)

// Handler returns the Prometheus exposition handler
func Handler() http.Handler {
	return promhttp.Handler()
}
