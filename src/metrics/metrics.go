// Package metrics holds the Prometheus counters of the gossip layer. The
// handle is created once per node and injected into the components that
// update it, so tests can use their own registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hyperdag"

// Drop reasons, used as the label of the dropped counter.
const (
	ReasonBlacklisted = "blacklisted"
	ReasonRate        = "rate"
	ReasonOversize    = "oversize"
	ReasonMalformed   = "malformed"
	ReasonAuth        = "auth"
	ReasonRejected    = "rejected"
	ReasonOverload    = "overload"
)

// Metrics is the set of counters maintained by a node.
type Metrics struct {
	MessagesReceived prometheus.Counter
	MessagesSent     prometheus.Counter
	PeersBlacklisted prometheus.Counter
	MessagesDropped  *prometheus.CounterVec
}

// New creates the counters and registers them with reg. A nil registerer
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Gossip messages that passed validation and were dispatched.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages successfully published or sent to a peer.",
		}),
		PeersBlacklisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_blacklisted_total",
			Help:      "Peers added to the blacklist.",
		}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Gossip messages dropped by the validation pipeline.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.MessagesReceived,
			m.MessagesSent,
			m.PeersBlacklisted,
			m.MessagesDropped,
		)
	}

	return m
}

// Dropped increments the drop counter for the given reason.
func (m *Metrics) Dropped(reason string) {
	m.MessagesDropped.WithLabelValues(reason).Inc()
}
