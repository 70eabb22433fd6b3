// Package metrics exposes replica and relay counters to Prometheus.
package metrics

import (
	"strconv"

	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bracket_mesh"

type Metrics struct {
	merges        *prometheus.CounterVec
	mergeItems    *prometheus.CounterVec
	reports       *prometheus.CounterVec
	relayMessages *prometheus.CounterVec
	relayDropped  *prometheus.CounterVec
	rooms         prometheus.Gauge
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Remote snapshots merged, by whether local state changed.",
		}, []string{"changed"}),
		mergeItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_items_total",
			Help:      "Matches and games considered during merges.",
		}, []string{"kind", "outcome"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Single match or game reports, applied or dropped as stale.",
		}, []string{"kind", "outcome"}),
		relayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "WebSocket relay messages by direction.",
		}, []string{"direction"}),
		relayDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Relay messages dropped before reaching the replica or a peer.",
		}, []string{"reason"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_rooms",
			Help:      "Rooms with at least one connected peer.",
		}),
	}
	reg.MustRegister(m.merges, m.mergeItems, m.reports, m.relayMessages, m.relayDropped, m.rooms)
	return m
}

var _ replica.Observer = (*Metrics)(nil)

func (m *Metrics) ObserveMerge(_ string, res replica.MergeResult) {
	m.merges.WithLabelValues(strconv.FormatBool(res.Changed())).Inc()
	m.mergeItems.WithLabelValues("match", "adopted").Add(float64(res.MatchesAdopted))
	m.mergeItems.WithLabelValues("match", "rejected").Add(float64(res.MatchesRejected))
	m.mergeItems.WithLabelValues("game", "adopted").Add(float64(res.GamesAdopted))
	m.mergeItems.WithLabelValues("game", "rejected").Add(float64(res.GamesRejected))
}

func (m *Metrics) ObserveReport(_ string, kind string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "stale"
	}
	m.reports.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RelayMessage(direction string) {
	m.relayMessages.WithLabelValues(direction).Inc()
}

func (m *Metrics) RelayDropped(reason string) {
	m.relayDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetRooms(n int) {
	m.rooms.Set(float64(n))
}
