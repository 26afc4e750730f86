package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics are the controller-wide metrics owned by the registry itself.
type CoreMetrics struct {
	FramesReceived   *prometheus.CounterVec
	FramesSent       *prometheus.CounterVec
	ConnectionCloses *prometheus.CounterVec
	Devices          *prometheus.GaugeVec
	LVAPs            prometheus.Gauge
	UEs              prometheus.Gauge
	Modules          *prometheus.GaugeVec
	Events           *prometheus.CounterVec
}

func newCoreMetrics() *CoreMetrics {
	return &CoreMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "southbound",
			Name:      "frames_received_total",
			Help:      "Frames decoded from devices",
		}, []string{"protocol", "type"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "southbound",
			Name:      "frames_sent_total",
			Help:      "Frames queued towards devices",
		}, []string{"protocol", "type"}),
		ConnectionCloses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "southbound",
			Name:      "connection_closes_total",
			Help:      "Device sessions closed, by reason",
		}, []string{"protocol", "reason"}),
		Devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "runtime",
			Name:      "devices",
			Help:      "Registered devices by kind and state",
		}, []string{"kind", "state"}),
		LVAPs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "runtime",
			Name:      "lvaps",
			Help:      "Live LVAPs",
		}),
		UEs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "runtime",
			Name:      "ues",
			Help:      "Attached UEs",
		}),
		Modules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "modules",
			Name:      "active",
			Help:      "Loaded modules by type",
		}, []string{"type"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events fanned out on the bus",
		}, []string{"type"}),
	}
}

func (m *CoreMetrics) mustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		m.FramesReceived, m.FramesSent, m.ConnectionCloses, m.Devices,
		m.LVAPs, m.UEs, m.Modules, m.Events,
	)
}
