// Package server implements the application-side pipeline: it captures
// committed surface state, filters and shard-compresses the pixel buffer,
// and ships each frame as a raw-buffer frame plus the structured commit
// referencing it, under the per-surface pacing discipline.
package server

import (
	"time"

	"github.com/OneOfOne/xxhash"
	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/arcslice"
	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/cmn/mono"
	"github.com/wayland-transpositor/wprs/filter"
	"github.com/wayland-transpositor/wprs/proto"
	"github.com/wayland-transpositor/wprs/shard"
	"github.com/wayland-transpositor/wprs/stats"
	"github.com/wayland-transpositor/wprs/surface"
	"github.com/wayland-transpositor/wprs/transport"
)

// Sender is the transport half the pipeline writes to.
type Sender interface {
	Send(ev *proto.Event) error
	SendWithRaw(ev *proto.Event, parts ...[]byte) error
}

var _ Sender = (*transport.Endpoint)(nil)

// Options configures a pipeline.
type Options struct {
	Logger  *zap.Logger
	Metrics *stats.Metrics

	Shards int

	// Deadline is the frame-callback deadline; zero derives the default
	// from a 60 Hz framerate.
	Deadline time.Duration
}

// Pipeline drives surfaces from application commits to wire frames. It is
// owned by the event loop and is not safe for concurrent use; the only
// parallelism underneath is the compressor's worker pool.
type Pipeline struct {
	lg    *zap.Logger
	mx    *stats.Metrics
	store *surface.Store
	pacer *surface.Pacer
	comp  *shard.Compressor
	out   Sender

	nShards int
	planes  *filter.Planes
	sources map[proto.SurfaceID]*frameSource
}

// frameSource retains the latest committed pixels for a surface so a
// coalesced commit can be compressed when the frame callback finally
// arrives.
type frameSource struct {
	meta   proto.BufferMetadata
	pixels []byte
}

func New(out Sender, comp *shard.Compressor, opts Options) *Pipeline {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	mx := opts.Metrics
	if mx == nil {
		mx = stats.New(nil)
	}
	nShards := opts.Shards
	if nShards <= 0 {
		nShards = 8
	}
	return &Pipeline{
		lg:      lg,
		mx:      mx,
		store:   surface.NewStore(lg),
		pacer:   surface.NewPacer(opts.Deadline, lg, mx),
		comp:    comp,
		out:     out,
		nShards: nShards,
		planes:  filter.NewPlanes(0),
		sources: make(map[proto.SurfaceID]*frameSource),
	}
}

// Surfaces exposes the store for role and lifecycle operations.
func (p *Pipeline) Surfaces() *surface.Store { return p.store }

// Commit ingests one application commit. A nil meta commits state only; with
// meta, pixels is the interleaved buffer of exactly meta.TotalSize() bytes.
// Invalid input marks the surface unhealthy and drops the frame without
// tearing anything down.
func (p *Pipeline) Commit(id proto.SurfaceID, meta *proto.BufferMetadata, pixels []byte) error {
	sf := p.store.GetOrCreate(id)

	if meta != nil {
		if !meta.Format.Valid() {
			sf.MarkUnhealthy()
			return cmn.NewErr(cmn.BadInput, "surface %v: unsupported pixel format %d", id, meta.Format)
		}
		if len(pixels) != meta.TotalSize() {
			sf.MarkUnhealthy()
			return cmn.NewErr(cmn.BadInput, "surface %v: buffer is %d bytes, stride*height is %d",
				id, len(pixels), meta.TotalSize())
		}
		src := p.sources[id]
		if src == nil {
			src = &frameSource{}
			p.sources[id] = src
		}
		src.meta = *meta
		src.pixels = append(src.pixels[:0], pixels...)

		sf.Pending.Buffer = proto.BufferAssignment{
			Kind:   proto.BufferAttached,
			Buffer: &proto.BufferRecord{Metadata: *meta, Data: proto.BufferData{Kind: proto.BufferExternal}},
		}
	}

	applied, err := p.store.Commit(id)
	if err != nil {
		p.lg.Warn("commit dropped", zap.Error(err))
		return err
	}
	if applied == nil {
		// sync subsurface: takes effect on the ancestor commit
		return nil
	}
	if !p.pacer.TrySend(id) {
		// a frame is in flight; latest state is coalesced and sent on ack
		return nil
	}
	return p.send(id, applied)
}

// OnFrameCallback records the viewer's acknowledgement and flushes the
// coalesced commit, if any.
func (p *Pipeline) OnFrameCallback(id proto.SurfaceID) error {
	if !p.pacer.Ack(id) {
		return nil
	}
	sf := p.store.Get(id)
	if sf == nil {
		return nil
	}
	if !p.pacer.TrySend(id) {
		return nil
	}
	return p.send(id, &surface.Applied{ID: id, State: &sf.Current})
}

// Destroy tears the surface down on both ends.
func (p *Pipeline) Destroy(id proto.SurfaceID) error {
	if err := p.store.Destroy(id); err != nil {
		return err
	}
	p.pacer.Forget(id)
	delete(p.sources, id)
	return p.out.Send(&proto.Event{Kind: proto.EvSurfaceDestroy, Destroy: &proto.SurfaceDestroy{ID: id}})
}

// Reset clears pacing after a transport reconnect; outstanding callbacks
// will never arrive.
func (p *Pipeline) Reset() { p.pacer.Reset() }

// send compresses the surface's latest pixels and ships the frame pair:
// raw-buffer frame first, then the structured commit referencing it.
func (p *Pipeline) send(id proto.SurfaceID, applied *surface.Applied) error {
	ev := &proto.Event{Kind: proto.EvSurfaceCommit, Commit: &proto.SurfaceCommit{ID: id}}
	ev.Commit.State = *applied.State

	for _, sc := range applied.Synced {
		childID := proto.SurfaceID{Client: id.Client, Surface: sc.ID}
		ev.Commit.Synced = append(ev.Commit.Synced, proto.SyncedChild{
			ID:    sc.ID,
			State: p.inlineState(childID, sc.State),
		})
	}

	src := p.sources[id]
	if applied.State.Buffer.Kind != proto.BufferAttached || src == nil {
		return p.out.Send(ev)
	}

	started := mono.NanoTime()
	filter.Filter(src.pixels, p.planes)
	concat := p.planes.Concat()

	shards, err := p.comp.Compress(p.nShards, arcslice.New(concat))
	if err != nil {
		sf := p.store.Get(id)
		if sf != nil {
			sf.MarkUnhealthy()
		}
		p.pacer.Ack(id)
		return cmn.WrapErr(cmn.Codec, err, "surface %v: frame compression", id)
	}

	var (
		parts      = make([][]byte, len(shards))
		lens       = make([]uint32, len(shards))
		compressed = 0
	)
	for i, sh := range shards {
		parts[i] = sh.Data.Bytes()
		lens[i] = uint32(sh.Data.Len())
		compressed += sh.Data.Len()
	}

	rec := *applied.State.Buffer.Buffer
	rec.Data = proto.BufferData{
		Kind:            proto.BufferExternal,
		UncompressedLen: uint64(len(concat)),
		ShardLens:       lens,
	}
	ev.Commit.State.Buffer = proto.BufferAssignment{Kind: proto.BufferAttached, Buffer: &rec}

	p.mx.BytesRaw.Add(float64(len(concat)))
	p.mx.BytesCompressed.Add(float64(compressed))
	p.lg.Debug("frame sent",
		zap.Uint32("surface", uint32(id.Surface)),
		zap.Int("shards", len(shards)),
		zap.Int("uncompressed", len(concat)),
		zap.Int("compressed", compressed),
		zap.Duration("elapsed", mono.Since(started)),
		zap.Uint64("fingerprint", xxhash.Checksum64(src.pixels)))

	return p.out.SendWithRaw(ev, parts...)
}

// inlineState rewrites a synced child's buffer to ride inline: only the
// committing surface's payload may use the out-of-band channel.
func (p *Pipeline) inlineState(id proto.SurfaceID, st proto.SurfaceState) proto.SurfaceState {
	if st.Buffer.Kind != proto.BufferAttached {
		return st
	}
	src := p.sources[id]
	if src == nil {
		st.Buffer = proto.BufferAssignment{Kind: proto.BufferAbsent}
		return st
	}
	rec := *st.Buffer.Buffer
	rec.Data = proto.BufferData{
		Kind:  proto.BufferUncompressed,
		Bytes: append([]byte(nil), src.pixels...),
	}
	st.Buffer = proto.BufferAssignment{Kind: proto.BufferAttached, Buffer: &rec}
	return st
}
