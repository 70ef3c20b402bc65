// Package metrics exposes Prometheus counters for the TLCS client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "tlcs").
	Namespace string

	// Registry receives the collectors. Default: a fresh registry.
	Registry *prometheus.Registry
}

// Option configures the collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Collector records client activity. A nil *Collector is valid and records
// nothing, so callers never need to check for it.
type Collector struct {
	registry *prometheus.Registry

	connectAttempts   prometheus.Counter
	statusTransitions *prometheus.CounterVec
	linesReceived     *prometheus.CounterVec
	linesUnrecognized prometheus.Counter
	protocolAnomalies *prometheus.CounterVec
	actionsSent       *prometheus.CounterVec
	actionsRejected   *prometheus.CounterVec
	bridgeClients     prometheus.Gauge
	bridgeThrottled   *prometheus.CounterVec
}

// New creates a collector and registers it.
func New(opts ...Option) *Collector {
	cfg := Config{Namespace: "tlcs"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	ns := cfg.Namespace

	return &Collector{
		registry: cfg.Registry,

		connectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts to the relay, explicit and automatic",
		}),

		statusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "status_transitions_total",
			Help:      "Connection status transitions by target status",
		}, []string{"status"}),

		linesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "lines_received_total",
			Help:      "Recognized protocol lines by message kind",
		}, []string{"kind"}),

		linesUnrecognized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "lines_unrecognized_total",
			Help:      "Protocol lines the parser did not recognize",
		}),

		protocolAnomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "protocol_anomalies_total",
			Help:      "Dropped or rejected protocol input by reason",
		}, []string{"reason"}),

		actionsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "actions_sent_total",
			Help:      "Player actions written to the relay",
		}, []string{"action"}),

		actionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "actions_rejected_total",
			Help:      "Player actions that were not written",
		}, []string{"action", "reason"}),

		bridgeClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "bridge_clients",
			Help:      "Open WebSocket bridge connections",
		}),

		bridgeThrottled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "bridge_commands_throttled_total",
			Help:      "Bridge commands refused by the rate limiter by reason",
		}, []string{"reason"}),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) ConnectAttempt() {
	if c == nil {
		return
	}
	c.connectAttempts.Inc()
}

func (c *Collector) StatusTransition(status string) {
	if c == nil {
		return
	}
	c.statusTransitions.WithLabelValues(status).Inc()
}

func (c *Collector) LineReceived(kind string) {
	if c == nil {
		return
	}
	c.linesReceived.WithLabelValues(kind).Inc()
}

func (c *Collector) LineUnrecognized() {
	if c == nil {
		return
	}
	c.linesUnrecognized.Inc()
}

func (c *Collector) ProtocolAnomaly(reason string) {
	if c == nil {
		return
	}
	c.protocolAnomalies.WithLabelValues(reason).Inc()
}

func (c *Collector) ActionSent(action string) {
	if c == nil {
		return
	}
	c.actionsSent.WithLabelValues(action).Inc()
}

func (c *Collector) ActionRejected(action, reason string) {
	if c == nil {
		return
	}
	c.actionsRejected.WithLabelValues(action, reason).Inc()
}

func (c *Collector) BridgeClientOpened() {
	if c == nil {
		return
	}
	c.bridgeClients.Inc()
}

func (c *Collector) BridgeClientClosed() {
	if c == nil {
		return
	}
	c.bridgeClients.Dec()
}

func (c *Collector) BridgeCommandThrottled(reason string) {
	if c == nil {
		return
	}
	c.bridgeThrottled.WithLabelValues(reason).Inc()
}
