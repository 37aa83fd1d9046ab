package observerip

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the poll loop collectors. A nil *Metrics records nothing.
type Metrics struct {
	cycles         *prometheus.CounterVec
	fetchAttempts  *prometheus.CounterVec
	lastPacketTime prometheus.Gauge
	lastRainTotal  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observerip_poll_cycles_total",
			Help: "Poll cycles by outcome (emitted, discarded, nodata)",
		}, []string{"outcome"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "observerip_fetch_attempts_total",
			Help: "Device and transfer file fetch attempts by source and result",
		}, []string{"source", "result"}),
		lastPacketTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observerip_last_packet_timestamp_seconds",
			Help: "dateTime of the last emitted packet",
		}),
		lastRainTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "observerip_rain_counter",
			Help: "Last cumulative rain counter reported by the station",
		}),
	}

	reg.MustRegister(m.cycles, m.fetchAttempts, m.lastPacketTime, m.lastRainTotal)
	return m
}

func (m *Metrics) observeCycle(o Outcome) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeAttempt(source string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchAttempts.WithLabelValues(source, result).Inc()
}

func (m *Metrics) observePacket(p Packet, state *PollState) {
	if m == nil {
		return
	}
	m.lastPacketTime.Set(float64(p.DateTime))
	if state.LastRain != nil {
		m.lastRainTotal.Set(*state.LastRain)
	}
}
