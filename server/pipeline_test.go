package server

import (
	"testing"
	"time"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/shard"
)

type recordingSender struct {
	events []*proto.Event
	raws   [][][]byte
}

func (r *recordingSender) Send(ev *proto.Event) error {
	r.events = append(r.events, ev)
	r.raws = append(r.raws, nil)
	return nil
}

func (r *recordingSender) SendWithRaw(ev *proto.Event, parts ...[]byte) error {
	r.events = append(r.events, ev)
	r.raws = append(r.raws, parts)
	return nil
}

func (r *recordingSender) commits() []*proto.SurfaceCommit {
	var out []*proto.SurfaceCommit
	for _, ev := range r.events {
		if ev.Kind == proto.EvSurfaceCommit {
			out = append(out, ev.Commit)
		}
	}
	return out
}

func sid(n uint32) proto.SurfaceID {
	return proto.SurfaceID{Client: "c1", Surface: proto.WlSurfaceID(n)}
}

func meta(w, h int) *proto.BufferMetadata {
	return &proto.BufferMetadata{Width: int32(w), Height: int32(h), Stride: int32(w * 4), Format: proto.FormatBGRA8}
}

func fill(n int, marker byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = marker
	}
	return b
}

func newPipeline(t *testing.T, deadline time.Duration) (*Pipeline, *recordingSender) {
	t.Helper()
	comp, err := shard.NewCompressor(2, 1)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recordingSender{}
	return New(rec, comp, Options{Shards: 2, Deadline: deadline}), rec
}

func TestCommitSendsFramePair(t *testing.T) {
	p, rec := newPipeline(t, time.Minute)

	if err := p.Commit(sid(1), meta(16, 16), fill(16*16*4, 3)); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("sent %d events", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Kind != proto.EvSurfaceCommit || !ev.Commit.State.External() {
		t.Fatalf("unexpected event %+v", ev)
	}
	if rec.raws[0] == nil {
		t.Fatal("external commit without a raw frame")
	}
	d := ev.Commit.State.Buffer.Buffer.Data
	if d.UncompressedLen != 16*16*4 || len(d.ShardLens) != 2 {
		t.Fatalf("unexpected external layout %+v", d)
	}
}

// Three commits arrive while a frame is unacknowledged: all coalesce, and
// the callback flushes exactly one more frame carrying the last state.
func TestCoalescingUnderBackpressure(t *testing.T) {
	p, rec := newPipeline(t, time.Minute)
	id := sid(1)

	if err := p.Commit(id, meta(8, 8), fill(8*8*4, 1)); err != nil {
		t.Fatal(err)
	}
	for i := byte(2); i <= 4; i++ {
		if err := p.Commit(id, meta(8, 8), fill(8*8*4, i)); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(rec.commits()); got != 1 {
		t.Fatalf("%d frames on the wire while unacknowledged, want 1", got)
	}

	if err := p.OnFrameCallback(id); err != nil {
		t.Fatal(err)
	}
	commits := rec.commits()
	if len(commits) != 2 {
		t.Fatalf("%d frames after callback, want 2", len(commits))
	}
	// the flushed frame carries the third pending state (marker 4)
	raw := rec.raws[1]
	if raw == nil {
		t.Fatal("flushed frame has no raw payload")
	}

	// a further callback with nothing pending stays quiet
	if err := p.OnFrameCallback(id); err != nil {
		t.Fatal(err)
	}
	if len(rec.commits()) != 2 {
		t.Fatal("spurious frame after idle callback")
	}
}

func TestBadFormatDropsFrame(t *testing.T) {
	p, rec := newPipeline(t, time.Minute)

	badMeta := &proto.BufferMetadata{Width: 4, Height: 4, Stride: 16, Format: 99}
	err := p.Commit(sid(1), badMeta, fill(64, 1))
	if !cmn.IsKind(err, cmn.BadInput) {
		t.Fatalf("got %v", err)
	}
	if cmn.Fatal(err) {
		t.Fatal("bad input must not be fatal")
	}
	if len(rec.events) != 0 {
		t.Fatal("frame sent despite bad input")
	}
	if p.Surfaces().Get(sid(1)).Healthy() {
		t.Fatal("surface still healthy after bad input")
	}
}

func TestShortBufferDropsFrame(t *testing.T) {
	p, _ := newPipeline(t, time.Minute)

	err := p.Commit(sid(1), meta(8, 8), fill(8, 1))
	if !cmn.IsKind(err, cmn.BadInput) {
		t.Fatalf("got %v", err)
	}
}

func TestDestroySendsEventAndForgets(t *testing.T) {
	p, rec := newPipeline(t, time.Minute)
	id := sid(1)

	if err := p.Commit(id, meta(8, 8), fill(8*8*4, 1)); err != nil {
		t.Fatal(err)
	}
	if err := p.Destroy(id); err != nil {
		t.Fatal(err)
	}

	last := rec.events[len(rec.events)-1]
	if last.Kind != proto.EvSurfaceDestroy || last.Destroy.ID != id {
		t.Fatalf("unexpected last event %+v", last)
	}
	if p.Surfaces().Get(id) != nil {
		t.Fatal("surface survived destroy")
	}
	_, err := p.Surfaces().Commit(id)
	if !cmn.IsKind(err, cmn.InvalidState) {
		t.Fatalf("commit to destroyed surface: got %v", err)
	}
}

func TestSyncSubsurfaceRidesParentFrame(t *testing.T) {
	p, rec := newPipeline(t, time.Minute)
	parent, child := sid(1), sid(2)

	st := p.Surfaces()
	st.GetOrCreate(parent)
	st.GetOrCreate(child)
	if err := st.SetRole(child, &proto.Role{
		Kind:       proto.RoleSubSurface,
		SubSurface: &proto.SubSurfaceRole{Parent: 1, Sync: true},
	}); err != nil {
		t.Fatal(err)
	}
	st.Get(parent).Pending.Children = []proto.ZChild{{ID: 2}}

	// the child's commit does not take effect and nothing hits the wire
	if err := p.Commit(child, meta(4, 4), fill(4*4*4, 9)); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 0 {
		t.Fatal("sync subsurface commit reached the wire")
	}

	// the parent's commit carries both states in one structured frame
	if err := p.Commit(parent, meta(8, 8), fill(8*8*4, 8)); err != nil {
		t.Fatal(err)
	}
	commits := rec.commits()
	if len(commits) != 1 {
		t.Fatalf("%d frames, want 1", len(commits))
	}
	c := commits[0]
	if len(c.Synced) != 1 || c.Synced[0].ID != 2 {
		t.Fatalf("synced children %+v", c.Synced)
	}
	child0 := c.Synced[0].State
	if child0.Buffer.Kind != proto.BufferAttached || child0.Buffer.Buffer.Data.Kind != proto.BufferUncompressed {
		t.Fatal("synced child buffer must ride inline")
	}
	if child0.Buffer.Buffer.Data.Bytes[0] != 9 {
		t.Fatal("synced child carries the wrong pixels")
	}
}
