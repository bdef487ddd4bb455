package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_rooms_active",
		Help: "Number of rooms currently holding at least one participant.",
	})

	participantsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_participants_active",
		Help: "Number of participants currently joined to a room.",
	})

	envelopesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_envelopes_relayed_total",
		Help: "Negotiation envelopes forwarded to their target session.",
	})

	envelopesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_envelopes_dropped_total",
		Help: "Negotiation envelopes dropped because the target was gone or slow.",
	})
)
