// Package metrics exposes the simulation engine's operational counters
// and gauges as a Prometheus registry, grounded on 99souls-ariadne's
// direct prometheus/client_golang usage (engine/telemetry/metrics) rather
// than its generic multi-backend Provider abstraction, which this engine
// has no use for.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the simulation engine publishes.
type Registry struct {
	reg *prometheus.Registry

	devicesRunning   *prometheus.GaugeVec
	deviceErrors     *prometheus.CounterVec
	messagesPublished *prometheus.CounterVec
	ticksProduced    *prometheus.CounterVec
	portUtilization  *prometheus.GaugeVec
	healthPercentage prometheus.Gauge
}

// New builds a Registry with every metric registered, ready to serve.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		devicesRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simengine",
			Name:      "devices_running",
			Help:      "Number of devices currently running, by protocol.",
		}, []string{"protocol"}),
		deviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simengine",
			Name:      "device_errors_total",
			Help:      "Errors encountered updating a device's simulated state, by protocol and device.",
		}, []string{"protocol", "device_id"}),
		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simengine",
			Name:      "messages_published_total",
			Help:      "MQTT messages published, by device.",
		}, []string{"device_id"}),
		ticksProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simengine",
			Name:      "generator_ticks_total",
			Help:      "Data generation ticks produced, by protocol and device type.",
		}, []string{"protocol", "device_type"}),
		portUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simengine",
			Name:      "port_pool_utilization_percent",
			Help:      "Percent of a protocol's port pool currently allocated.",
		}, []string{"protocol"}),
		healthPercentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simengine",
			Name:      "health_percentage",
			Help:      "Percent of devices currently healthy, per the orchestrator's last health check.",
		}),
	}

	reg.MustRegister(r.devicesRunning, r.deviceErrors, r.messagesPublished, r.ticksProduced, r.portUtilization, r.healthPercentage)
	return r
}

// Handler returns the /metrics HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SetDevicesRunning records how many devices are running for protocol.
func (r *Registry) SetDevicesRunning(protocol string, count int) {
	r.devicesRunning.WithLabelValues(protocol).Set(float64(count))
}

// IncDeviceError records one device update error.
func (r *Registry) IncDeviceError(protocol, deviceID string) {
	r.deviceErrors.WithLabelValues(protocol, deviceID).Inc()
}

// IncMessagesPublished records one MQTT publish for deviceID.
func (r *Registry) IncMessagesPublished(deviceID string) {
	r.messagesPublished.WithLabelValues(deviceID).Inc()
}

// IncTick records one generator tick for a protocol/device-type pair.
func (r *Registry) IncTick(protocol, deviceType string) {
	r.ticksProduced.WithLabelValues(protocol, deviceType).Inc()
}

// SetPortUtilization records a protocol pool's current percent-allocated.
func (r *Registry) SetPortUtilization(protocol string, percent float64) {
	r.portUtilization.WithLabelValues(protocol).Set(percent)
}

// SetHealthPercentage records the orchestrator's last computed health
// percentage.
func (r *Registry) SetHealthPercentage(percent float64) {
	r.healthPercentage.Set(percent)
}
