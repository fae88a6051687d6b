package surface

import (
	"time"

	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/cmn/mono"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/stats"
)

// MinCallbackDeadline is the floor for abandoning an unacknowledged frame.
const MinCallbackDeadline = 50 * time.Millisecond

// CallbackDeadline derives the pacing deadline from the configured
// framerate: two frame intervals, floored at MinCallbackDeadline.
func CallbackDeadline(framerate uint32) time.Duration {
	if framerate == 0 {
		framerate = 60
	}
	d := 2 * time.Second / time.Duration(framerate)
	if d < MinCallbackDeadline {
		d = MinCallbackDeadline
	}
	return d
}

// Pacer enforces the per-surface at-most-one-in-flight discipline: one
// unacknowledged compression-plus-transport cycle per surface. Commits that
// arrive while a frame is in flight are coalesced; the acknowledgement is
// the frame callback from the viewer. A surface whose callback does not
// arrive within the deadline is released so packet loss cannot deadlock the
// pipeline.
type Pacer struct {
	lg       *zap.Logger
	mx       *stats.Metrics
	deadline time.Duration
	m        map[proto.SurfaceID]*paceState
}

type paceState struct {
	inFlight bool
	sentAt   int64
	pending  bool
}

func NewPacer(deadline time.Duration, lg *zap.Logger, mx *stats.Metrics) *Pacer {
	if lg == nil {
		lg = zap.NewNop()
	}
	if mx == nil {
		mx = stats.New(nil)
	}
	if deadline <= 0 {
		deadline = CallbackDeadline(0)
	}
	return &Pacer{lg: lg, mx: mx, deadline: deadline, m: make(map[proto.SurfaceID]*paceState)}
}

// TrySend reports whether a frame for the surface may be sent now. When a
// frame is already in flight and the deadline has not passed, the commit is
// recorded as pending (coalesced) and false is returned.
func (p *Pacer) TrySend(id proto.SurfaceID) bool {
	st := p.m[id]
	if st == nil {
		st = &paceState{}
		p.m[id] = st
	}
	if st.inFlight {
		if mono.Since(st.sentAt) <= p.deadline {
			st.pending = true
			p.mx.CoalescedCommits.Inc()
			return false
		}
		// deadline passed without a callback: force-release pacing
		p.lg.Warn("frame callback overdue, releasing pacing",
			zap.Uint32("surface", uint32(id.Surface)),
			zap.Duration("deadline", p.deadline))
		p.mx.InFlightFrames.Dec()
	}
	st.inFlight = true
	st.sentAt = mono.NanoTime()
	st.pending = false
	p.mx.InFlightFrames.Inc()
	return true
}

// Ack records the frame callback for the surface. It returns true when a
// coalesced commit is waiting, in which case the caller sends the latest
// current state now.
func (p *Pacer) Ack(id proto.SurfaceID) (sendPending bool) {
	st := p.m[id]
	if st == nil || !st.inFlight {
		return false
	}
	st.inFlight = false
	p.mx.InFlightFrames.Dec()
	sendPending = st.pending
	st.pending = false
	return sendPending
}

// InFlight reports whether the surface has an unacknowledged frame.
func (p *Pacer) InFlight(id proto.SurfaceID) bool {
	st := p.m[id]
	return st != nil && st.inFlight
}

// Forget drops the pacing state of a destroyed surface.
func (p *Pacer) Forget(id proto.SurfaceID) {
	if st := p.m[id]; st != nil && st.inFlight {
		p.mx.InFlightFrames.Dec()
	}
	delete(p.m, id)
}

// Reset clears all pacing state; called when the transport reconnects and
// outstanding acknowledgements can never arrive.
func (p *Pacer) Reset() {
	for id, st := range p.m {
		if st.inFlight {
			p.mx.InFlightFrames.Dec()
		}
		delete(p.m, id)
	}
}
