// Package wire implements the length-delimited frame layout: an 8-byte
// big-endian payload length, a 1-byte tag, then the payload. A frame carries
// either a serialized structured object or a raw opaque buffer; raw frames
// are written and read without copying into any intermediate representation.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/cmn/debug"
	"github.com/wayland-transpositor/wprs/proto"
)

const (
	// TagObject frames a serialized structured object.
	TagObject byte = 0x01
	// TagRaw frames a raw opaque buffer.
	TagRaw byte = 0x02

	headerSize = 9

	// maxFrameSize bounds a single frame; larger lengths indicate a corrupt
	// or hostile peer.
	maxFrameSize = 1 << 30
)

// Writer frames objects and raw buffers onto an io.Writer. Not safe for
// concurrent use; the transport's writer loop is the only caller.
type Writer struct {
	w          io.Writer
	hdr        [headerSize]byte
	scratch    []byte // reused object-marshal buffer
	rawPending bool
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) writeFrame(tag byte, payload []byte) error {
	binary.BigEndian.PutUint64(w.hdr[:8], uint64(len(payload)))
	w.hdr[8] = tag
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return cmn.WrapErr(cmn.Transport, err, "write frame header")
	}
	if _, err := w.w.Write(payload); err != nil {
		return cmn.WrapErr(cmn.Transport, err, "write frame payload")
	}
	return nil
}

// WriteObject serializes and frames one structured object. An object frame
// must directly follow any raw frame, completing the pair.
func (w *Writer) WriteObject(e *proto.Event) error {
	b, err := e.MarshalMsg(w.scratch[:0])
	if err != nil {
		return cmn.WrapErr(cmn.Codec, err, "marshal %s", e.Kind)
	}
	w.scratch = b[:0]
	w.rawPending = false
	return w.writeFrame(TagObject, b)
}

// WriteRaw frames a raw buffer. The payload slice is written directly; the
// caller must not mutate it until the call returns. The very next frame must
// be the structured object referencing this payload.
func (w *Writer) WriteRaw(payload []byte) error {
	debug.Assert(!w.rawPending, "two raw frames without an intervening object frame")
	w.rawPending = true
	return w.writeFrame(TagRaw, payload)
}

// WriteRawParts frames the concatenation of parts as one raw buffer, writing
// each part directly from its own storage. The receiver sees a single
// contiguous payload.
func (w *Writer) WriteRawParts(parts [][]byte) error {
	debug.Assert(!w.rawPending, "two raw frames without an intervening object frame")
	w.rawPending = true

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	binary.BigEndian.PutUint64(w.hdr[:8], uint64(total))
	w.hdr[8] = TagRaw
	if _, err := w.w.Write(w.hdr[:]); err != nil {
		return cmn.WrapErr(cmn.Transport, err, "write frame header")
	}
	for _, p := range parts {
		if _, err := w.w.Write(p); err != nil {
			return cmn.WrapErr(cmn.Transport, err, "write frame payload")
		}
	}
	return nil
}

// Frame is one decoded wire frame. Payload is owned by the receiver.
type Frame struct {
	Tag     byte
	Payload []byte
}

// Reader decodes frames from an io.Reader. Each payload is read into a fresh
// owned buffer; structured objects are later unmarshaled zero-copy over it.
type Reader struct {
	r   io.Reader
	hdr [headerSize]byte
}

func NewReader(r io.Reader) *Reader { return &Reader{r: r} }

// Next reads one frame. A short read on the header or the payload surfaces
// as a transport error and closes the connection upstream.
func (r *Reader) Next() (Frame, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		return Frame{}, cmn.WrapErr(cmn.Transport, err, "read frame header")
	}
	l := binary.BigEndian.Uint64(r.hdr[:8])
	tag := r.hdr[8]
	if tag != TagObject && tag != TagRaw {
		return Frame{}, cmn.NewErr(cmn.ProtocolMismatch, "unknown frame tag 0x%02x", tag)
	}
	if l > maxFrameSize {
		return Frame{}, cmn.NewErr(cmn.ProtocolMismatch, "frame length %d exceeds limit", l)
	}
	payload := make([]byte, l)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Frame{}, cmn.WrapErr(cmn.Transport, err, "read frame payload")
	}
	return Frame{Tag: tag, Payload: payload}, nil
}

// DecodeObject unmarshals a structured-object frame. The returned event
// borrows byte payloads from the frame buffer.
func DecodeObject(f Frame) (*proto.Event, error) {
	debug.Assert(f.Tag == TagObject, "not an object frame")
	e := &proto.Event{}
	if _, err := e.UnmarshalMsg(f.Payload); err != nil {
		return nil, cmn.WrapErr(cmn.Codec, err, "unmarshal object frame")
	}
	return e, nil
}
