package transport

import (
	"bufio"
	"io"
	"net"

	"github.com/pierrec/lz4/v3"
	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/wire"
)

const sockBufSize = 64 << 10

// session runs the reader and writer loops over one connection until either
// fails or the endpoint is stopped. It returns the loop error (nil on clean
// stop).
func (ep *Endpoint) session(conn net.Conn) error {
	defer conn.Close()

	bw := bufio.NewWriterSize(conn, sockBufSize)
	br := bufio.NewReaderSize(conn, sockBufSize)
	var w io.Writer = bw
	var r io.Reader = br
	var lzw *lz4.Writer
	if ep.extra.LZ4 {
		lzw = lz4.NewWriter(bw)
		if ep.extra.LZ4BlockMaxSize > 0 {
			lzw.Header.BlockMaxSize = ep.extra.LZ4BlockMaxSize
		}
		w = lzw
		r = lz4.NewReader(br)
	}
	flush := func() error {
		if lzw != nil {
			if err := lzw.Flush(); err != nil {
				return cmn.WrapErr(cmn.Transport, err, "lz4 flush")
			}
		}
		if err := bw.Flush(); err != nil {
			return cmn.WrapErr(cmn.Transport, err, "flush")
		}
		return nil
	}

	var (
		sessDone = make(chan struct{})
		hashOK   = make(chan error, 1)
		errCh    = make(chan error, 2)
	)
	go ep.readLoop(wire.NewReader(r), hashOK, sessDone, errCh)
	go ep.writeLoop(wire.NewWriter(w), flush, hashOK, sessDone, errCh)

	var (
		err      error
		received = 0
	)
	select {
	case err = <-errCh:
		received = 1
	case <-ep.stopCh:
	}
	close(sessDone)
	conn.Close() // unblocks the loop still inside a socket call
	for ; received < 2; received++ {
		if e := <-errCh; err == nil {
			err = e
		}
	}
	return err
}

// readLoop validates the peer's protocol hash, then forwards frames into the
// receive channel until the connection fails.
func (ep *Endpoint) readLoop(fr *wire.Reader, hashOK chan<- error, sessDone <-chan struct{}, errCh chan<- error) {
	err := ep.expectHash(fr)
	hashOK <- err
	if err != nil {
		errCh <- err
		return
	}

	for {
		f, err := fr.Next()
		if err != nil {
			errCh <- err
			return
		}
		ep.stats.FramesRcvd.Add(1)
		ep.stats.BytesRcvd.Add(int64(len(f.Payload)))
		ep.mx.FramesReceived.Inc()
		ep.mx.BytesReceived.Add(float64(len(f.Payload)))

		var in Inbound
		switch f.Tag {
		case wire.TagRaw:
			in = Inbound{Raw: f.Payload}
		case wire.TagObject:
			ev, err := wire.DecodeObject(f)
			if err != nil {
				errCh <- err
				return
			}
			in = Inbound{Event: ev}
		}
		select {
		case ep.recvCh <- in:
		case <-sessDone:
			errCh <- nil
			return
		case <-ep.stopCh:
			errCh <- nil
			return
		}
	}
}

func (ep *Endpoint) expectHash(fr *wire.Reader) error {
	f, err := fr.Next()
	if err != nil {
		return err
	}
	if f.Tag != wire.TagObject {
		return cmn.NewErr(cmn.ProtocolMismatch, "first frame has tag 0x%02x, want an object", f.Tag)
	}
	ev, err := wire.DecodeObject(f)
	if err != nil {
		return cmn.WrapErr(cmn.ProtocolMismatch, err, "first object is not decodable")
	}
	if ev.Kind != proto.EvProtocolHash {
		return cmn.NewErr(cmn.ProtocolMismatch, "first object is %s, want %s", ev.Kind, proto.EvProtocolHash)
	}
	if ev.Hash.Hash != proto.SchemaHash() {
		return cmn.NewErr(cmn.ProtocolMismatch, "peer schema %s, this build %s",
			ev.Hash, &proto.ProtocolHash{Hash: proto.SchemaHash()})
	}
	ep.lg.Debug("protocol hash verified", zap.Stringer("hash", ev.Hash))
	return nil
}

// writeLoop sends this side's protocol hash, waits for the peer's hash to
// verify, replays the on-connect list, then drains the send queue.
func (ep *Endpoint) writeLoop(fw *wire.Writer, flush func() error, hashOK <-chan error, sessDone <-chan struct{}, errCh chan<- error) {
	if err := fw.WriteObject(proto.HashEvent()); err != nil {
		errCh <- err
		return
	}
	if err := flush(); err != nil {
		errCh <- err
		return
	}
	select {
	case err := <-hashOK:
		if err != nil {
			// the reader already reported it; just stop writing
			errCh <- nil
			return
		}
	case <-sessDone:
		errCh <- nil
		return
	case <-ep.stopCh:
		errCh <- nil
		return
	}

	for _, ev := range ep.extra.OnConnect {
		if err := fw.WriteObject(ev); err != nil {
			errCh <- err
			return
		}
	}
	if err := flush(); err != nil {
		errCh <- err
		return
	}

	var buf []outItem
	for {
		select {
		case <-ep.stopCh:
			errCh <- nil
			return
		case <-sessDone:
			errCh <- nil
			return
		case <-ep.sendSig:
		}
		buf = ep.popAll(buf)
		for i, item := range buf {
			if err := ep.writeItem(fw, item); err != nil {
				ep.requeueFront(buf[i:])
				errCh <- err
				return
			}
		}
		if err := flush(); err != nil {
			errCh <- err
			return
		}
	}
}

func (ep *Endpoint) writeItem(fw *wire.Writer, item outItem) error {
	if item.raw != nil {
		if err := fw.WriteRawParts(item.raw); err != nil {
			return err
		}
		total := 0
		for _, p := range item.raw {
			total += len(p)
		}
		ep.stats.FramesSent.Add(1)
		ep.stats.BytesSent.Add(int64(total))
		ep.mx.FramesSent.Inc()
		ep.mx.BytesSent.Add(float64(total))
	}
	if err := fw.WriteObject(item.ev); err != nil {
		return err
	}
	ep.stats.FramesSent.Add(1)
	ep.mx.FramesSent.Inc()
	return nil
}

// requeueFront puts unsent items back so they survive a reconnect.
func (ep *Endpoint) requeueFront(items []outItem) {
	if len(items) == 0 {
		return
	}
	ep.qmu.Lock()
	ep.queue = append(append(make([]outItem, 0, len(items)+len(ep.queue)), items...), ep.queue...)
	ep.qmu.Unlock()

	// the failed pass consumed the send signal; re-arm it so the next
	// session's writer drains the requeued items
	select {
	case ep.sendSig <- struct{}{}:
	default:
	}
}
