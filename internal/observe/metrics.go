package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the relay counters. Each Server owns its own registry so tests
// can build many servers in one process.
type Metrics struct {
	Registry *prometheus.Registry

	onlineUsers     prometheus.Gauge
	connections     prometheus.Counter
	messagesTotal   *prometheus.CounterVec
	laggedTotal     prometheus.Counter
	bridgedMessages *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pegrelay_online_users",
			Help: "Number of registered users",
		}),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegrelay_connections_total",
			Help: "Total accepted connections",
		}),
		messagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pegrelay_messages_total",
				Help: "Total published messages by kind",
			},
			[]string{"kind"}, // chat|board
		),
		laggedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pegrelay_lagged_messages_total",
			Help: "Messages skipped by subscribers that fell behind the backlog",
		}),
		bridgedMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pegrelay_bridged_messages_total",
				Help: "Messages exchanged with other relay instances",
			},
			[]string{"direction"}, // in|out
		),
	}
	m.Registry.MustRegister(
		m.onlineUsers,
		m.connections,
		m.messagesTotal,
		m.laggedTotal,
		m.bridgedMessages,
	)
	return m
}

func (m *Metrics) AddOnline(delta float64) { m.onlineUsers.Add(delta) }
func (m *Metrics) IncConnection()          { m.connections.Inc() }
func (m *Metrics) IncMessage(kind string)  { m.messagesTotal.WithLabelValues(kind).Inc() }
func (m *Metrics) AddLagged(n uint64)      { m.laggedTotal.Add(float64(n)) }
func (m *Metrics) IncBridged(dir string)   { m.bridgedMessages.WithLabelValues(dir).Inc() }
