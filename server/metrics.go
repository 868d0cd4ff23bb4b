package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broker's Prometheus instruments. All methods are
// nil-safe so components can run without a metrics registry in tests.
type Metrics struct {
	published          prometheus.Counter
	delivered          prometheus.Counter
	deliveryFailures   prometheus.Counter
	malformedDatagrams prometheus.Counter
	activeConnections  prometheus.Gauge
	subscriptions      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		published: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "busline",
			Name:      "published_total",
			Help:      "PUBLISH frames accepted by the dispatcher.",
		}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "busline",
			Name:      "delivered_total",
			Help:      "MSG frames handed to subscriber sends.",
		}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "busline",
			Name:      "delivery_failures_total",
			Help:      "Fan-out sends that returned an error.",
		}),
		malformedDatagrams: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "busline",
			Name:      "malformed_datagrams_total",
			Help:      "Datagrams dropped for failing frame validation.",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "busline",
			Name:      "active_connections",
			Help:      "Currently connected stream clients.",
		}),
		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "busline",
			Name:      "subscriptions",
			Help:      "Live (topic, subscriber) pairs in the registry.",
		}),
	}
}

func (m *Metrics) IncPublished() {
	if m != nil {
		m.published.Inc()
	}
}

func (m *Metrics) IncDelivered() {
	if m != nil {
		m.delivered.Inc()
	}
}

func (m *Metrics) IncDeliveryFailures() {
	if m != nil {
		m.deliveryFailures.Inc()
	}
}

func (m *Metrics) IncMalformedDatagrams() {
	if m != nil {
		m.malformedDatagrams.Inc()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.activeConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.activeConnections.Dec()
	}
}

func (m *Metrics) AddSubscriptions(n int) {
	if m != nil {
		m.subscriptions.Add(float64(n))
	}
}
