package transport

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/cmn"
)

type dialFunc func() (net.Conn, error)

// Dial connects a client endpoint to the server's socket. The first dial is
// synchronous so configuration errors surface immediately; subsequent
// reconnects (when enabled) happen in the background with exponential
// backoff.
func Dial(path string, extra Extra) (*Endpoint, error) {
	dial := func() (net.Conn, error) {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return nil, cmn.WrapErr(cmn.Transport, err, "dial %s", path)
		}
		return conn, nil
	}
	return DialFunc(dial, extra)
}

// DialFunc is Dial over an arbitrary stream transport, e.g. a connection
// tunneled by an external process.
func DialFunc(dial dialFunc, extra Extra) (*Endpoint, error) {
	conn, err := dial()
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{}
	ep.init(extra, dial)
	go ep.runClient(conn)
	return ep, nil
}

func (ep *Endpoint) runClient(conn net.Conn) {
	defer close(ep.doneCh)
	defer close(ep.recvCh)

	backoff := reconnectBackoffStart
	for {
		err := ep.session(conn)
		switch {
		case ep.Terminated():
			return
		case err != nil && cmn.Fatal(err):
			ep.terminate(err, reasonError)
			return
		case !ep.extra.AutoReconnect:
			ep.terminate(err, reasonError)
			return
		}
		ep.lg.Warn("connection lost, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))

		for {
			select {
			case <-time.After(backoff):
			case <-ep.stopCh:
				return
			}
			if backoff *= 2; backoff > ep.extra.BackoffCap {
				backoff = ep.extra.BackoffCap
			}
			next, derr := ep.dial()
			if derr != nil {
				ep.lg.Warn("reconnect failed", zap.Error(derr), zap.Duration("backoff", backoff))
				continue
			}
			conn = next
			backoff = reconnectBackoffStart
			ep.stats.Reconnects.Add(1)
			ep.mx.Reconnects.Inc()
			break
		}
	}
}
