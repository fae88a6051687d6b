package client

import (
	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/arcslice"
	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/filter"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/shard"
	"github.com/wayland-transpositor/wprs/stats"
	"github.com/wayland-transpositor/wprs/transport"
)

// Presenter is the integration point to the local display stack. Present is
// called with the reassembled interleaved pixels, or nil for a state-only
// commit; implementations paint synchronously or copy.
type Presenter interface {
	Present(id proto.SurfaceID, state *proto.SurfaceState, pixels []byte) error
	DestroySurface(id proto.SurfaceID)
	SetCursor(client proto.ClientID, meta proto.BufferMetadata, hotspot proto.Point, pixels []byte)
	Selection(client proto.ClientID, mimeType string, data []byte)
}

// Sender is the transport half the pipeline acknowledges frames on.
type Sender interface {
	Send(ev *proto.Event) error
}

var _ Sender = (*transport.Endpoint)(nil)

// Options configures a client pipeline.
type Options struct {
	Logger  *zap.Logger
	Metrics *stats.Metrics
}

// Pipeline consumes inbound transport items on the viewer event loop. Not
// safe for concurrent use; the only parallelism underneath is the
// decompressor's worker pool.
type Pipeline struct {
	lg        *zap.Logger
	mx        *stats.Metrics
	dec       *shard.Decompressor
	out       Sender
	presenter Presenter

	cache  bufferCache
	states map[proto.SurfaceID]*proto.SurfaceState
	pixbuf []byte // reused interleaved output buffer
}

func New(out Sender, dec *shard.Decompressor, presenter Presenter, opts Options) *Pipeline {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	mx := opts.Metrics
	if mx == nil {
		mx = stats.New(nil)
	}
	return &Pipeline{
		lg:        lg,
		mx:        mx,
		dec:       dec,
		out:       out,
		presenter: presenter,
		states:    make(map[proto.SurfaceID]*proto.SurfaceState),
	}
}

// Run drains the endpoint until it terminates, returning the endpoint's
// terminal error.
func (p *Pipeline) Run(ep *transport.Endpoint) error {
	for in := range ep.Recv() {
		if err := p.Handle(in); err != nil {
			if cmn.Fatal(err) {
				return err
			}
			p.lg.Warn("frame dropped", zap.Error(err))
		}
	}
	return ep.Err()
}

// Handle processes one inbound item. Non-fatal errors drop the frame; fatal
// ones must tear down the endpoint.
func (p *Pipeline) Handle(in transport.Inbound) error {
	if in.Event == nil {
		p.cache.store(in.Raw)
		return nil
	}

	ev := in.Event
	if !ev.ConsumesRaw() {
		// out-of-band data is only for the object directly following it
		p.cache.drop()
	}

	switch ev.Kind {
	case proto.EvClientConnect:
		p.reset()
		return nil
	case proto.EvSurfaceCommit:
		return p.handleCommit(ev.Commit)
	case proto.EvSurfaceDestroy:
		delete(p.states, ev.Destroy.ID)
		p.presenter.DestroySurface(ev.Destroy.ID)
		return nil
	case proto.EvCursorImage:
		raw, ok := p.cache.take()
		if !ok {
			return cmn.NewErr(cmn.ResourceExhaustion, "cursor image with no cached raw buffer")
		}
		p.presenter.SetCursor(ev.Cursor.Client, ev.Cursor.Metadata, ev.Cursor.Hotspot, raw)
		return nil
	case proto.EvSelection:
		raw, ok := p.cache.take()
		if !ok {
			return cmn.NewErr(cmn.ResourceExhaustion, "selection with no cached raw buffer")
		}
		p.presenter.Selection(ev.Selection.Client, ev.Selection.MimeType, raw)
		return nil
	}
	p.lg.Debug("ignoring event", zap.Stringer("kind", ev.Kind))
	return nil
}

func (p *Pipeline) reset() {
	p.cache.drop()
	for id := range p.states {
		delete(p.states, id)
	}
}

func (p *Pipeline) handleCommit(c *proto.SurfaceCommit) error {
	// synced children first: bottom of the atomic batch, never external
	for i := range c.Synced {
		childID := proto.SurfaceID{Client: c.ID.Client, Surface: c.Synced[i].ID}
		if err := p.applyState(childID, &c.Synced[i].State, nil); err != nil {
			return err
		}
	}

	var raw []byte
	if c.State.External() {
		var ok bool
		if raw, ok = p.cache.take(); !ok {
			return cmn.NewErr(cmn.ResourceExhaustion, "surface %v: external buffer with no cached raw frame", c.ID)
		}
	}
	if err := p.applyState(c.ID, &c.State, raw); err != nil {
		return err
	}

	// frame presented: release the server's pacing gate
	return p.out.Send(&proto.Event{Kind: proto.EvFrameCallback, Callback: &proto.FrameCallback{ID: c.ID}})
}

// applyState stores the surface's new current state and presents its pixels.
func (p *Pipeline) applyState(id proto.SurfaceID, st *proto.SurfaceState, raw []byte) error {
	stored := *st
	p.states[id] = &stored

	if st.Buffer.Kind != proto.BufferAttached {
		return p.presenter.Present(id, st, nil)
	}

	rec := st.Buffer.Buffer
	pixels, err := p.reassemble(id, rec, raw)
	if err != nil {
		return err
	}
	return p.presenter.Present(id, st, pixels)
}

// reassemble produces interleaved pixels from whichever representation the
// buffer record carries.
func (p *Pipeline) reassemble(id proto.SurfaceID, rec *proto.BufferRecord, raw []byte) ([]byte, error) {
	want := rec.Metadata.TotalSize()
	switch rec.Data.Kind {
	case proto.BufferUncompressed:
		if len(rec.Data.Bytes) != want {
			return nil, p.unhealthy(id, "inline buffer is %d bytes, want %d", len(rec.Data.Bytes), want)
		}
		return rec.Data.Bytes, nil

	case proto.BufferCompressed:
		return p.decodeShards(id, want, len(rec.Data.Shards), func() (shard.Compressed, error) {
			sh := rec.Data.Shards[0]
			rec.Data.Shards = rec.Data.Shards[1:]
			return shard.Compressed{Index: sh.Index, Data: arcslice.New(sh.Data)}, nil
		}, int(rec.Data.UncompressedLen))

	case proto.BufferExternal:
		if raw == nil {
			return nil, p.unhealthy(id, "external buffer without raw payload")
		}
		total := 0
		for _, l := range rec.Data.ShardLens {
			total += int(l)
		}
		if total != len(raw) {
			return nil, p.unhealthy(id, "raw frame is %d bytes, shard lengths sum to %d", len(raw), total)
		}
		slice := arcslice.New(raw)
		var (
			idx = uint32(0)
			off = 0
		)
		return p.decodeShards(id, want, len(rec.Data.ShardLens), func() (shard.Compressed, error) {
			l := int(rec.Data.ShardLens[idx])
			sh := shard.Compressed{Index: idx, Data: slice.Index(off, off+l)}
			idx++
			off += l
			return sh, nil
		}, int(rec.Data.UncompressedLen))
	}
	return nil, p.unhealthy(id, "unknown buffer data kind %d", rec.Data.Kind)
}

// decodeShards runs the sharded decompressor and unfilters the planes back
// into the reused interleaved buffer.
func (p *Pipeline) decodeShards(id proto.SurfaceID, want, nShards int, next func() (shard.Compressed, error), uncompressedLen int) ([]byte, error) {
	if uncompressedLen != want {
		return nil, p.unhealthy(id, "frame decodes to %d bytes, stride*height is %d", uncompressedLen, want)
	}
	if cap(p.pixbuf) < want {
		p.pixbuf = make([]byte, want)
	}
	out := p.pixbuf[:want]

	err := p.dec.DecompressWith(nShards, uncompressedLen, next, func(planesBuf arcslice.Slice) error {
		filter.Unfilter(filter.PlanesFromConcat(planesBuf.Bytes()), out)
		return nil
	})
	if err != nil {
		return nil, p.unhealthy(id, "frame decompression: %v", err)
	}
	return out, nil
}

// unhealthy wraps a per-frame failure: the frame is dropped and the surface
// resynchronizes on the server's next commit.
func (p *Pipeline) unhealthy(id proto.SurfaceID, format string, a ...any) error {
	return cmn.NewErr(cmn.Codec, "surface (%s, %d): "+format,
		append([]any{string(id.Client), uint32(id.Surface)}, a...)...)
}
