package proto

import (
	"github.com/tinylib/msgp/msgp"
)

// Hand-written msgp codecs. Every struct is framed as a fixed-size msgpack
// array; all byte payload fields are read with ReadBytesZC, so unmarshaled
// objects borrow from the input buffer and must not outlive it unless copied.

// interface guards
var (
	_ msgp.Marshaler   = (*Event)(nil)
	_ msgp.Unmarshaler = (*Event)(nil)
	_ msgp.Marshaler   = (*SurfaceState)(nil)
	_ msgp.Unmarshaler = (*SurfaceState)(nil)
)

func readArray(bts []byte, want uint32) ([]byte, error) {
	sz, o, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return o, err
	}
	if sz != want {
		return o, msgp.ArrayError{Wanted: want, Got: sz}
	}
	return o, nil
}

//
// geometry
//

func appendPoint(b []byte, p Point) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt32(b, p.X)
	return msgp.AppendInt32(b, p.Y)
}

func readPoint(bts []byte) (p Point, o []byte, err error) {
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	if p.X, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	p.Y, o, err = msgp.ReadInt32Bytes(o)
	return
}

func appendSize(b []byte, s Size) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt32(b, s.W)
	return msgp.AppendInt32(b, s.H)
}

func readSize(bts []byte) (s Size, o []byte, err error) {
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	if s.W, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	s.H, o, err = msgp.ReadInt32Bytes(o)
	return
}

func appendRect(b []byte, r Rect) []byte {
	b = msgp.AppendArrayHeader(b, 4)
	b = msgp.AppendInt32(b, r.X)
	b = msgp.AppendInt32(b, r.Y)
	b = msgp.AppendInt32(b, r.W)
	return msgp.AppendInt32(b, r.H)
}

func readRect(bts []byte) (r Rect, o []byte, err error) {
	if o, err = readArray(bts, 4); err != nil {
		return
	}
	if r.X, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	if r.Y, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	if r.W, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	r.H, o, err = msgp.ReadInt32Bytes(o)
	return
}

func appendRects(b []byte, rs []Rect) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(rs)))
	for _, r := range rs {
		b = appendRect(b, r)
	}
	return b
}

func readRects(bts []byte) (rs []Rect, o []byte, err error) {
	var sz uint32
	if sz, o, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return
	}
	if sz > 0 {
		rs = make([]Rect, sz)
		for i := range rs {
			if rs[i], o, err = readRect(o); err != nil {
				return
			}
		}
	}
	return
}

//
// identity
//

func appendSurfaceID(b []byte, id SurfaceID) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendString(b, string(id.Client))
	return msgp.AppendUint32(b, uint32(id.Surface))
}

func readSurfaceID(bts []byte) (id SurfaceID, o []byte, err error) {
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	var s string
	if s, o, err = msgp.ReadStringBytes(o); err != nil {
		return
	}
	id.Client = ClientID(s)
	var u uint32
	u, o, err = msgp.ReadUint32Bytes(o)
	id.Surface = WlSurfaceID(u)
	return
}

//
// buffers
//

func appendBufferMetadata(b []byte, m BufferMetadata) []byte {
	b = msgp.AppendArrayHeader(b, 4)
	b = msgp.AppendInt32(b, m.Width)
	b = msgp.AppendInt32(b, m.Height)
	b = msgp.AppendInt32(b, m.Stride)
	return msgp.AppendUint8(b, uint8(m.Format))
}

func readBufferMetadata(bts []byte) (m BufferMetadata, o []byte, err error) {
	if o, err = readArray(bts, 4); err != nil {
		return
	}
	if m.Width, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	if m.Height, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	if m.Stride, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	var f uint8
	f, o, err = msgp.ReadUint8Bytes(o)
	m.Format = BufferFormat(f)
	return
}

func appendShards(b []byte, shards []CompressedShard) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(shards)))
	for _, sh := range shards {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendUint32(b, sh.Index)
		b = msgp.AppendBytes(b, sh.Data)
	}
	return b
}

func readShards(bts []byte) (shards []CompressedShard, o []byte, err error) {
	var sz uint32
	if sz, o, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return
	}
	if sz > 0 {
		shards = make([]CompressedShard, sz)
		for i := range shards {
			if o, err = readArray(o, 2); err != nil {
				return
			}
			if shards[i].Index, o, err = msgp.ReadUint32Bytes(o); err != nil {
				return
			}
			if shards[i].Data, o, err = msgp.ReadBytesZC(o); err != nil {
				return
			}
		}
	}
	return
}

func appendShardLens(b []byte, lens []uint32) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(lens)))
	for _, l := range lens {
		b = msgp.AppendUint32(b, l)
	}
	return b
}

func readShardLens(bts []byte) (lens []uint32, o []byte, err error) {
	var sz uint32
	if sz, o, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return
	}
	if sz > 0 {
		lens = make([]uint32, sz)
		for i := range lens {
			if lens[i], o, err = msgp.ReadUint32Bytes(o); err != nil {
				return
			}
		}
	}
	return
}

func appendBufferData(b []byte, d BufferData) []byte {
	b = msgp.AppendArrayHeader(b, 5)
	b = msgp.AppendUint8(b, uint8(d.Kind))
	b = msgp.AppendBytes(b, d.Bytes)
	b = appendShards(b, d.Shards)
	b = msgp.AppendUint64(b, d.UncompressedLen)
	return appendShardLens(b, d.ShardLens)
}

func readBufferData(bts []byte) (d BufferData, o []byte, err error) {
	if o, err = readArray(bts, 5); err != nil {
		return
	}
	var k uint8
	if k, o, err = msgp.ReadUint8Bytes(o); err != nil {
		return
	}
	d.Kind = BufferKind(k)
	if d.Bytes, o, err = msgp.ReadBytesZC(o); err != nil {
		return
	}
	if d.Shards, o, err = readShards(o); err != nil {
		return
	}
	if d.UncompressedLen, o, err = msgp.ReadUint64Bytes(o); err != nil {
		return
	}
	d.ShardLens, o, err = readShardLens(o)
	return
}

func appendBufferAssignment(b []byte, ba BufferAssignment) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendUint8(b, uint8(ba.Kind))
	if ba.Kind != BufferAttached {
		return msgp.AppendNil(b)
	}
	b = msgp.AppendArrayHeader(b, 2)
	b = appendBufferMetadata(b, ba.Buffer.Metadata)
	return appendBufferData(b, ba.Buffer.Data)
}

func readBufferAssignment(bts []byte) (ba BufferAssignment, o []byte, err error) {
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	var k uint8
	if k, o, err = msgp.ReadUint8Bytes(o); err != nil {
		return
	}
	ba.Kind = BufferAssignmentKind(k)
	if msgp.IsNil(o) {
		o, err = msgp.ReadNilBytes(o)
		return
	}
	if o, err = readArray(o, 2); err != nil {
		return
	}
	rec := &BufferRecord{}
	if rec.Metadata, o, err = readBufferMetadata(o); err != nil {
		return
	}
	if rec.Data, o, err = readBufferData(o); err != nil {
		return
	}
	ba.Buffer = rec
	return
}

//
// regions, z-order
//

func appendRegion(b []byte, r Region) []byte {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendBool(b, r.Present)
	return appendRects(b, r.Rects)
}

func readRegion(bts []byte) (r Region, o []byte, err error) {
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	if r.Present, o, err = msgp.ReadBoolBytes(o); err != nil {
		return
	}
	r.Rects, o, err = readRects(o)
	return
}

func appendChildren(b []byte, cs []ZChild) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(cs)))
	for _, c := range cs {
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendUint32(b, uint32(c.ID))
		b = appendPoint(b, c.Position)
	}
	return b
}

func readChildren(bts []byte) (cs []ZChild, o []byte, err error) {
	var sz uint32
	if sz, o, err = msgp.ReadArrayHeaderBytes(bts); err != nil {
		return
	}
	if sz > 0 {
		cs = make([]ZChild, sz)
		for i := range cs {
			if o, err = readArray(o, 2); err != nil {
				return
			}
			var u uint32
			if u, o, err = msgp.ReadUint32Bytes(o); err != nil {
				return
			}
			cs[i].ID = WlSurfaceID(u)
			if cs[i].Position, o, err = readPoint(o); err != nil {
				return
			}
		}
	}
	return
}

//
// roles
//

func appendRole(b []byte, r *Role) []byte {
	if r == nil {
		return msgp.AppendNil(b)
	}
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendUint8(b, uint8(r.Kind))
	switch r.Kind {
	case RoleSubSurface:
		s := r.SubSurface
		b = msgp.AppendArrayHeader(b, 3)
		b = msgp.AppendUint32(b, uint32(s.Parent))
		b = msgp.AppendBool(b, s.Sync)
		return appendPoint(b, s.Position)
	case RoleToplevel:
		t := r.Toplevel
		b = msgp.AppendArrayHeader(b, 5)
		b = msgp.AppendString(b, t.Title)
		b = msgp.AppendString(b, t.AppID)
		b = msgp.AppendBool(b, t.Decorated)
		b = appendSize(b, t.MinSize)
		return appendSize(b, t.MaxSize)
	case RolePopup:
		p := r.Popup
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendUint32(b, uint32(p.Parent))
		return appendPositioner(b, p.Positioner)
	}
	return msgp.AppendNil(b) // RoleCursor carries no payload
}

func readRole(bts []byte) (r *Role, o []byte, err error) {
	if msgp.IsNil(bts) {
		o, err = msgp.ReadNilBytes(bts)
		return
	}
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	var k uint8
	if k, o, err = msgp.ReadUint8Bytes(o); err != nil {
		return
	}
	r = &Role{Kind: RoleKind(k)}
	switch r.Kind {
	case RoleSubSurface:
		s := &SubSurfaceRole{}
		if o, err = readArray(o, 3); err != nil {
			return
		}
		var u uint32
		if u, o, err = msgp.ReadUint32Bytes(o); err != nil {
			return
		}
		s.Parent = WlSurfaceID(u)
		if s.Sync, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		if s.Position, o, err = readPoint(o); err != nil {
			return
		}
		r.SubSurface = s
	case RoleToplevel:
		t := &ToplevelRole{}
		if o, err = readArray(o, 5); err != nil {
			return
		}
		if t.Title, o, err = msgp.ReadStringBytes(o); err != nil {
			return
		}
		if t.AppID, o, err = msgp.ReadStringBytes(o); err != nil {
			return
		}
		if t.Decorated, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		if t.MinSize, o, err = readSize(o); err != nil {
			return
		}
		if t.MaxSize, o, err = readSize(o); err != nil {
			return
		}
		r.Toplevel = t
	case RolePopup:
		p := &PopupRole{}
		if o, err = readArray(o, 2); err != nil {
			return
		}
		var u uint32
		if u, o, err = msgp.ReadUint32Bytes(o); err != nil {
			return
		}
		p.Parent = WlSurfaceID(u)
		if p.Positioner, o, err = readPositioner(o); err != nil {
			return
		}
		r.Popup = p
	default:
		o, err = msgp.ReadNilBytes(o)
	}
	return
}

func appendPositioner(b []byte, p Positioner) []byte {
	b = msgp.AppendArrayHeader(b, 6)
	b = appendRect(b, p.AnchorRect)
	b = appendSize(b, p.Size)
	b = appendPoint(b, p.Offset)
	b = msgp.AppendUint32(b, p.Anchor)
	b = msgp.AppendUint32(b, p.Gravity)
	return msgp.AppendUint32(b, p.ConstraintAdjustment)
}

func readPositioner(bts []byte) (p Positioner, o []byte, err error) {
	if o, err = readArray(bts, 6); err != nil {
		return
	}
	if p.AnchorRect, o, err = readRect(o); err != nil {
		return
	}
	if p.Size, o, err = readSize(o); err != nil {
		return
	}
	if p.Offset, o, err = readPoint(o); err != nil {
		return
	}
	if p.Anchor, o, err = msgp.ReadUint32Bytes(o); err != nil {
		return
	}
	if p.Gravity, o, err = msgp.ReadUint32Bytes(o); err != nil {
		return
	}
	p.ConstraintAdjustment, o, err = msgp.ReadUint32Bytes(o)
	return
}

func appendXdgSurfaceState(b []byte, x *XdgSurfaceState) []byte {
	if x == nil {
		return msgp.AppendNil(b)
	}
	b = msgp.AppendArrayHeader(b, 3)
	if x.WindowGeometry == nil {
		b = msgp.AppendNil(b)
	} else {
		b = appendRect(b, *x.WindowGeometry)
	}
	b = appendSize(b, x.MinSize)
	return appendSize(b, x.MaxSize)
}

func readXdgSurfaceState(bts []byte) (x *XdgSurfaceState, o []byte, err error) {
	if msgp.IsNil(bts) {
		o, err = msgp.ReadNilBytes(bts)
		return
	}
	if o, err = readArray(bts, 3); err != nil {
		return
	}
	x = &XdgSurfaceState{}
	if msgp.IsNil(o) {
		if o, err = msgp.ReadNilBytes(o); err != nil {
			return
		}
	} else {
		var r Rect
		if r, o, err = readRect(o); err != nil {
			return
		}
		x.WindowGeometry = &r
	}
	if x.MinSize, o, err = readSize(o); err != nil {
		return
	}
	x.MaxSize, o, err = readSize(o)
	return
}

//
// surface state
//

// MarshalMsg implements msgp.Marshaler.
func (st *SurfaceState) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 9)
	b = appendBufferAssignment(b, st.Buffer)
	b = msgp.AppendInt32(b, st.BufferScale)
	b = msgp.AppendUint8(b, uint8(st.Transform))
	b = appendRects(b, st.Damage)
	b = appendRegion(b, st.InputRegion)
	b = appendRegion(b, st.OpaqueRegion)
	b = appendChildren(b, st.Children)
	b = appendRole(b, st.Role)
	return appendXdgSurfaceState(b, st.XdgSurfaceState), nil
}

// UnmarshalMsg implements msgp.Unmarshaler. Byte payloads borrow from bts.
func (st *SurfaceState) UnmarshalMsg(bts []byte) (o []byte, err error) {
	if o, err = readArray(bts, 9); err != nil {
		return
	}
	if st.Buffer, o, err = readBufferAssignment(o); err != nil {
		return
	}
	if st.BufferScale, o, err = msgp.ReadInt32Bytes(o); err != nil {
		return
	}
	var tr uint8
	if tr, o, err = msgp.ReadUint8Bytes(o); err != nil {
		return
	}
	st.Transform = Transform(tr)
	if st.Damage, o, err = readRects(o); err != nil {
		return
	}
	if st.InputRegion, o, err = readRegion(o); err != nil {
		return
	}
	if st.OpaqueRegion, o, err = readRegion(o); err != nil {
		return
	}
	if st.Children, o, err = readChildren(o); err != nil {
		return
	}
	if st.Role, o, err = readRole(o); err != nil {
		return
	}
	st.XdgSurfaceState, o, err = readXdgSurfaceState(o)
	return
}
