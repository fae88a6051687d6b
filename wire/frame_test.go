package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
)

func TestObjectFrameRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	ev := &proto.Event{
		Kind:     proto.EvFrameCallback,
		Callback: &proto.FrameCallback{ID: proto.SurfaceID{Client: "c1", Surface: 7}},
	}
	if err := w.WriteObject(ev); err != nil {
		t.Fatal(err)
	}

	f, err := NewReader(buf).Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Tag != TagObject {
		t.Fatalf("tag = 0x%02x", f.Tag)
	}
	got, err := DecodeObject(f)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != proto.EvFrameCallback || got.Callback.ID != ev.Callback.ID {
		t.Fatalf("decoded %+v", got)
	}
}

func TestRawFramePassthrough(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)

	payload := make([]byte, 1<<16)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	if err := w.WriteRaw(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteObject(&proto.Event{
		Kind:    proto.EvClientConnect,
		Connect: &proto.ClientConnect{Client: "c1"},
	}); err != nil {
		t.Fatal(err)
	}

	r := NewReader(buf)
	f, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Tag != TagRaw || !bytes.Equal(f.Payload, payload) {
		t.Fatal("raw payload corrupted")
	}
	f, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Tag != TagObject {
		t.Fatal("expected object frame after raw frame")
	}
}

func TestTwoRawFramesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	w := NewWriter(&bytes.Buffer{})
	_ = w.WriteRaw([]byte{1})
	_ = w.WriteRaw([]byte{2})
}

func TestShortReadIsTransportError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)
	if err := w.WriteObject(proto.HashEvent()); err != nil {
		t.Fatal(err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := NewReader(bytes.NewReader(truncated)).Next()
	if !cmn.IsKind(err, cmn.Transport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestUnknownTagIsProtocolMismatch(t *testing.T) {
	var hdr [9]byte
	binary.BigEndian.PutUint64(hdr[:8], 0)
	hdr[8] = 0x7f

	_, err := NewReader(bytes.NewReader(hdr[:])).Next()
	if !cmn.IsKind(err, cmn.ProtocolMismatch) {
		t.Fatalf("expected protocol mismatch, got %v", err)
	}
}

func TestSurfaceStateCodecBorrowsPayload(t *testing.T) {
	st := &proto.SurfaceState{
		Buffer: proto.BufferAssignment{
			Kind: proto.BufferAttached,
			Buffer: &proto.BufferRecord{
				Metadata: proto.BufferMetadata{Width: 2, Height: 2, Stride: 8, Format: proto.FormatBGRA8},
				Data:     proto.BufferData{Kind: proto.BufferUncompressed, Bytes: bytes.Repeat([]byte{9}, 16)},
			},
		},
		BufferScale: 1,
		Damage:      []proto.Rect{{X: 0, Y: 0, W: 2, H: 2}},
		Children:    []proto.ZChild{{ID: 4, Position: proto.Point{X: 1, Y: 1}}},
	}
	b, err := st.MarshalMsg(nil)
	if err != nil {
		t.Fatal(err)
	}

	out := &proto.SurfaceState{}
	if _, err := out.UnmarshalMsg(b); err != nil {
		t.Fatal(err)
	}
	got := out.Buffer.Buffer.Data.Bytes
	if !bytes.Equal(got, st.Buffer.Buffer.Data.Bytes) {
		t.Fatal("payload mismatch")
	}
	// Zero-copy: the decoded payload must alias the serialized buffer.
	if len(got) > 0 {
		aliased := false
		for i := range b {
			if &b[i] == &got[0] {
				aliased = true
				break
			}
		}
		if !aliased {
			t.Fatal("decoded payload does not borrow from the input buffer")
		}
	}
}
