// Package transport implements the serializer endpoint: it owns the stream
// connection, serializes structured objects and raw buffers onto it from a
// writer goroutine, and reconstructs typed messages on a reader goroutine.
// The event loop never blocks on a socket; it talks to the endpoint through
// the send queue and the bounded receive channel.
package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/stats"
)

const (
	defaultSendQueueBound = 512
	defaultRecvQueueBound = 64

	reconnectBackoffStart      = 100 * time.Millisecond
	defaultReconnectBackoffCap = 5 * time.Second
)

// termination reasons
const (
	reasonError   = "error"
	reasonStopped = "stopped"
)

type (
	// Extra carries optional endpoint configuration.
	Extra struct {
		Logger  *zap.Logger
		Metrics *stats.Metrics

		// OnConnect is replayed, in order, after the protocol-hash exchange
		// on every successful (re)connect.
		OnConnect []*proto.Event

		SendQueueBound int
		RecvQueueBound int

		// LZ4 enables whole-stream lz4 framing on top of the socket.
		LZ4             bool
		LZ4BlockMaxSize int

		// AutoReconnect applies to client endpoints only.
		AutoReconnect bool
		BackoffCap    time.Duration
	}

	// Inbound is one received item: a typed message or a raw-buffer frame.
	Inbound struct {
		Event *proto.Event
		Raw   []byte
	}

	// Stats are cumulative transfer counters for one endpoint.
	Stats struct {
		FramesSent atomic.Int64
		FramesRcvd atomic.Int64
		BytesSent  atomic.Int64
		BytesRcvd  atomic.Int64
		Reconnects atomic.Int64
		Dropped    atomic.Int64
	}

	// StatsSnapshot is a point-in-time copy of Stats.
	StatsSnapshot struct {
		FramesSent int64
		FramesRcvd int64
		BytesSent  int64
		BytesRcvd  int64
		Reconnects int64
		Dropped    int64
	}

	outItem struct {
		ev  *proto.Event
		raw [][]byte // when non-nil, framed as one raw buffer directly before ev
	}

	// Endpoint is one half of a connection. Server endpoints wrap an
	// accepted socket and terminate on failure; client endpoints own a dial
	// function and may auto-reconnect.
	Endpoint struct {
		lg    *zap.Logger
		mx    *stats.Metrics
		extra Extra
		stats Stats

		dial dialFunc // nil for server endpoints

		qmu     sync.Mutex
		queue   []outItem
		sendSig chan struct{}

		recvCh chan Inbound
		stopCh chan struct{}
		doneCh chan struct{}

		term struct {
			mu         sync.Mutex
			terminated bool
			err        error
			reason     string
		}
	}
)

func (ep *Endpoint) init(extra Extra, dial dialFunc) {
	ep.extra = extra
	ep.dial = dial
	ep.lg = extra.Logger
	if ep.lg == nil {
		ep.lg = zap.NewNop()
	}
	ep.mx = extra.Metrics
	if ep.mx == nil {
		ep.mx = stats.New(nil)
	}
	if ep.extra.SendQueueBound <= 0 {
		ep.extra.SendQueueBound = defaultSendQueueBound
	}
	if ep.extra.RecvQueueBound <= 0 {
		ep.extra.RecvQueueBound = defaultRecvQueueBound
	}
	if ep.extra.BackoffCap <= 0 {
		ep.extra.BackoffCap = defaultReconnectBackoffCap
	}
	ep.sendSig = make(chan struct{}, 1)
	ep.recvCh = make(chan Inbound, ep.extra.RecvQueueBound)
	ep.stopCh = make(chan struct{})
	ep.doneCh = make(chan struct{})
}

// Send enqueues one structured object.
func (ep *Endpoint) Send(ev *proto.Event) error { return ep.enqueue(outItem{ev: ev}) }

// SendWithRaw enqueues a raw buffer (the concatenation of parts) and the
// structured object referencing it. The two are framed adjacently, raw
// first, never interleaved with other frames. The parts must not be mutated
// until the object is on the wire.
func (ep *Endpoint) SendWithRaw(ev *proto.Event, parts ...[]byte) error {
	return ep.enqueue(outItem{ev: ev, raw: parts})
}

func (ep *Endpoint) enqueue(item outItem) error {
	if ep.Terminated() {
		return cmn.NewErr(cmn.Transport, "endpoint terminated (%s): cannot send %s", ep.termReason(), item.ev.Kind)
	}
	ep.qmu.Lock()
	if len(ep.queue) >= ep.extra.SendQueueBound {
		// Overflow policy: drop the oldest structured-only message. Raw
		// frames are never dropped silently; a queue full of them is a
		// protocol error that tears the connection down.
		dropped := false
		for i, it := range ep.queue {
			if it.raw == nil {
				ep.queue = append(ep.queue[:i], ep.queue[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			ep.qmu.Unlock()
			err := cmn.NewErr(cmn.ResourceExhaustion,
				"send queue holds %d raw-buffer frames; refusing to drop", ep.extra.SendQueueBound)
			ep.terminate(err, reasonError)
			return err
		}
		ep.stats.Dropped.Add(1)
		ep.mx.DroppedMessages.Inc()
		ep.lg.Warn("send queue overflow, dropped oldest structured message",
			zap.Int("bound", ep.extra.SendQueueBound))
	}
	ep.queue = append(ep.queue, item)
	ep.qmu.Unlock()

	select {
	case ep.sendSig <- struct{}{}:
	default:
	}
	return nil
}

func (ep *Endpoint) popAll(buf []outItem) []outItem {
	ep.qmu.Lock()
	buf = append(buf[:0], ep.queue...)
	ep.queue = ep.queue[:0]
	ep.qmu.Unlock()
	return buf
}

// Recv returns the channel of inbound messages. It is closed when the
// endpoint terminates; check Err afterwards.
func (ep *Endpoint) Recv() <-chan Inbound { return ep.recvCh }

// Done is closed when the endpoint has fully shut down.
func (ep *Endpoint) Done() <-chan struct{} { return ep.doneCh }

// Err returns the terminal error, if any, once the endpoint is terminated.
func (ep *Endpoint) Err() error {
	ep.term.mu.Lock()
	defer ep.term.mu.Unlock()
	return ep.term.err
}

// GetStats snapshots the endpoint's transfer counters.
func (ep *Endpoint) GetStats() StatsSnapshot {
	return StatsSnapshot{
		FramesSent: ep.stats.FramesSent.Load(),
		FramesRcvd: ep.stats.FramesRcvd.Load(),
		BytesSent:  ep.stats.BytesSent.Load(),
		BytesRcvd:  ep.stats.BytesRcvd.Load(),
		Reconnects: ep.stats.Reconnects.Load(),
		Dropped:    ep.stats.Dropped.Load(),
	}
}

// Close stops the endpoint and releases the connection.
func (ep *Endpoint) Close() {
	ep.terminate(nil, reasonStopped)
	<-ep.doneCh
}

func (ep *Endpoint) Terminated() bool {
	ep.term.mu.Lock()
	defer ep.term.mu.Unlock()
	return ep.term.terminated
}

func (ep *Endpoint) termReason() string {
	ep.term.mu.Lock()
	defer ep.term.mu.Unlock()
	return ep.term.reason
}

func (ep *Endpoint) terminate(err error, reason string) {
	ep.term.mu.Lock()
	if ep.term.terminated {
		ep.term.mu.Unlock()
		return
	}
	ep.term.terminated = true
	ep.term.err = err
	ep.term.reason = reason
	ep.term.mu.Unlock()
	close(ep.stopCh)

	if err != nil {
		ep.lg.Error("endpoint terminating", zap.String("reason", reason), zap.Error(err))
	}
}
