// Package stats exposes pipeline and transport metrics via Prometheus.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the pipeline updates. Pass a nil registerer
// to keep the collectors unregistered (tests, short-lived tools).
type Metrics struct {
	FramesSent       prometheus.Counter
	FramesReceived   prometheus.Counter
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	BytesRaw         prometheus.Counter
	BytesCompressed  prometheus.Counter
	Reconnects       prometheus.Counter
	DroppedMessages  prometheus.Counter
	CoalescedCommits prometheus.Counter
	InFlightFrames   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "frames_sent_total",
			Help: "Wire frames written, object and raw.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "frames_received_total",
			Help: "Wire frames read, object and raw.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "bytes_sent_total",
			Help: "Payload bytes written to the transport.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "bytes_received_total",
			Help: "Payload bytes read from the transport.",
		}),
		BytesRaw: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "pixels_bytes_total",
			Help: "Uncompressed pixel bytes entering the compression pipeline.",
		}),
		BytesCompressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "pixels_compressed_bytes_total",
			Help: "Compressed pixel bytes leaving the compression pipeline.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "reconnects_total",
			Help: "Client endpoint reconnect attempts that succeeded.",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "dropped_messages_total",
			Help: "Structured messages dropped from the send queue on overflow.",
		}),
		CoalescedCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wprs", Name: "coalesced_commits_total",
			Help: "Commits merged into the pending state while a frame was in flight.",
		}),
		InFlightFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wprs", Name: "inflight_frames",
			Help: "Surfaces with an unacknowledged frame.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.FramesSent, m.FramesReceived, m.BytesSent, m.BytesReceived,
			m.BytesRaw, m.BytesCompressed, m.Reconnects, m.DroppedMessages,
			m.CoalescedCommits, m.InFlightFrames,
		)
	}
	return m
}
