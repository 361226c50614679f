package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: метрики сетевой подсистемы и проходов синхронизации.
//
// Метрики:
// * voxelgate_connections: gauge открытых соединений
// * voxelgate_state_transitions_total{from,to}, counter
// * voxelgate_packets_total{direction,state,name}, counter
// * voxelgate_bytes_total{direction,state}: counter, размер кадров без длины
// * voxelgate_decode_errors_total{state}: counter
// * voxelgate_sync_pass_seconds: histogram
// * voxelgate_sync_packets: histogram пакетов за проход
type Metrics struct {
	Connections  prometheus.Gauge
	Transitions  *prometheus.CounterVec
	Packets      *prometheus.CounterVec
	Bytes        *prometheus.CounterVec
	DecodeErrors *prometheus.CounterVec
	SyncDuration prometheus.Histogram
	SyncPackets  prometheus.Histogram
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil
// метрики работают, но не экспортируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelgate",
			Name:      "connections",
			Help:      "Открытые соединения.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgate",
			Name:      "state_transitions_total",
			Help:      "Переходы между состояниями протокола.",
		}, []string{"from", "to"}),
		Packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgate",
			Name:      "packets_total",
			Help:      "Пакеты по направлению, состоянию и имени.",
		}, []string{"direction", "state", "name"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgate",
			Name:      "bytes_total",
			Help:      "Байты кадров по направлению и состоянию.",
		}, []string{"direction", "state"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgate",
			Name:      "decode_errors_total",
			Help:      "Кадры, которые не удалось разобрать.",
		}, []string{"state"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxelgate",
			Name:      "sync_pass_seconds",
			Help:      "Длительность прохода синхронизации.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		SyncPackets: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxelgate",
			Name:      "sync_packets",
			Help:      "Пакетов за проход синхронизации.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Transitions, m.Packets, m.Bytes,
			m.DecodeErrors, m.SyncDuration, m.SyncPackets)
	}
	return m
}

func (m *Metrics) packet(dir, state, name string, size int) {
	if name == "" {
		name = "unknown"
	}
	m.Packets.WithLabelValues(dir, state, name).Inc()
	m.Bytes.WithLabelValues(dir, state).Add(float64(size))
}
