package proto

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/wayland-transpositor/wprs/cmn"
)

// MarshalMsg implements msgp.Marshaler.
func (e *Event) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendUint8(b, uint8(e.Kind))
	switch e.Kind {
	case EvProtocolHash:
		return msgp.AppendBytes(b, e.Hash.Hash[:]), nil
	case EvClientConnect:
		return msgp.AppendString(b, string(e.Connect.Client)), nil
	case EvSurfaceCommit:
		c := e.Commit
		b = msgp.AppendArrayHeader(b, 3)
		b = appendSurfaceID(b, c.ID)
		b, err := c.State.MarshalMsg(b)
		if err != nil {
			return b, err
		}
		b = msgp.AppendArrayHeader(b, uint32(len(c.Synced)))
		for i := range c.Synced {
			b = msgp.AppendArrayHeader(b, 2)
			b = msgp.AppendUint32(b, uint32(c.Synced[i].ID))
			if b, err = c.Synced[i].State.MarshalMsg(b); err != nil {
				return b, err
			}
		}
		return b, nil
	case EvSurfaceDestroy:
		return appendSurfaceID(b, e.Destroy.ID), nil
	case EvFrameCallback:
		return appendSurfaceID(b, e.Callback.ID), nil
	case EvToplevelConfigure:
		t := e.Toplevel
		b = msgp.AppendArrayHeader(b, 6)
		b = appendSurfaceID(b, t.ID)
		b = appendSize(b, t.Size)
		b = msgp.AppendBool(b, t.Activated)
		b = msgp.AppendBool(b, t.Maximized)
		b = msgp.AppendBool(b, t.Fullscreen)
		return msgp.AppendBool(b, t.Suspended), nil
	case EvPopupConfigure:
		p := e.Popup
		b = msgp.AppendArrayHeader(b, 3)
		b = appendSurfaceID(b, p.ID)
		b = appendRect(b, p.Rect)
		return msgp.AppendBool(b, p.Dismissed), nil
	case EvCursorImage:
		c := e.Cursor
		b = msgp.AppendArrayHeader(b, 3)
		b = msgp.AppendString(b, string(c.Client))
		b = appendBufferMetadata(b, c.Metadata)
		return appendPoint(b, c.Hotspot), nil
	case EvSelection:
		s := e.Selection
		b = msgp.AppendArrayHeader(b, 2)
		b = msgp.AppendString(b, string(s.Client))
		return msgp.AppendString(b, s.MimeType), nil
	}
	return b, cmn.NewErr(cmn.Codec, "cannot marshal event of kind %d", e.Kind)
}

// UnmarshalMsg implements msgp.Unmarshaler. Byte payloads borrow from bts.
func (e *Event) UnmarshalMsg(bts []byte) (o []byte, err error) {
	*e = Event{}
	if o, err = readArray(bts, 2); err != nil {
		return
	}
	var k uint8
	if k, o, err = msgp.ReadUint8Bytes(o); err != nil {
		return
	}
	e.Kind = EventKind(k)
	switch e.Kind {
	case EvProtocolHash:
		var raw []byte
		if raw, o, err = msgp.ReadBytesZC(o); err != nil {
			return
		}
		if len(raw) != HashSize {
			return o, cmn.NewErr(cmn.ProtocolMismatch, "protocol hash is %d bytes, want %d", len(raw), HashSize)
		}
		h := &ProtocolHash{}
		copy(h.Hash[:], raw)
		e.Hash = h
	case EvClientConnect:
		var s string
		if s, o, err = msgp.ReadStringBytes(o); err != nil {
			return
		}
		e.Connect = &ClientConnect{Client: ClientID(s)}
	case EvSurfaceCommit:
		c := &SurfaceCommit{}
		if o, err = readArray(o, 3); err != nil {
			return
		}
		if c.ID, o, err = readSurfaceID(o); err != nil {
			return
		}
		if o, err = c.State.UnmarshalMsg(o); err != nil {
			return
		}
		var sz uint32
		if sz, o, err = msgp.ReadArrayHeaderBytes(o); err != nil {
			return
		}
		if sz > 0 {
			c.Synced = make([]SyncedChild, sz)
			for i := range c.Synced {
				if o, err = readArray(o, 2); err != nil {
					return
				}
				var u uint32
				if u, o, err = msgp.ReadUint32Bytes(o); err != nil {
					return
				}
				c.Synced[i].ID = WlSurfaceID(u)
				if o, err = c.Synced[i].State.UnmarshalMsg(o); err != nil {
					return
				}
			}
		}
		e.Commit = c
	case EvSurfaceDestroy:
		d := &SurfaceDestroy{}
		if d.ID, o, err = readSurfaceID(o); err != nil {
			return
		}
		e.Destroy = d
	case EvFrameCallback:
		cb := &FrameCallback{}
		if cb.ID, o, err = readSurfaceID(o); err != nil {
			return
		}
		e.Callback = cb
	case EvToplevelConfigure:
		t := &ToplevelConfigure{}
		if o, err = readArray(o, 6); err != nil {
			return
		}
		if t.ID, o, err = readSurfaceID(o); err != nil {
			return
		}
		if t.Size, o, err = readSize(o); err != nil {
			return
		}
		if t.Activated, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		if t.Maximized, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		if t.Fullscreen, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		if t.Suspended, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		e.Toplevel = t
	case EvPopupConfigure:
		p := &PopupConfigure{}
		if o, err = readArray(o, 3); err != nil {
			return
		}
		if p.ID, o, err = readSurfaceID(o); err != nil {
			return
		}
		if p.Rect, o, err = readRect(o); err != nil {
			return
		}
		if p.Dismissed, o, err = msgp.ReadBoolBytes(o); err != nil {
			return
		}
		e.Popup = p
	case EvCursorImage:
		c := &CursorImage{}
		if o, err = readArray(o, 3); err != nil {
			return
		}
		var s string
		if s, o, err = msgp.ReadStringBytes(o); err != nil {
			return
		}
		c.Client = ClientID(s)
		if c.Metadata, o, err = readBufferMetadata(o); err != nil {
			return
		}
		if c.Hotspot, o, err = readPoint(o); err != nil {
			return
		}
		e.Cursor = c
	case EvSelection:
		s := &Selection{}
		var cl, mime string
		if o, err = readArray(o, 2); err != nil {
			return
		}
		if cl, o, err = msgp.ReadStringBytes(o); err != nil {
			return
		}
		if mime, o, err = msgp.ReadStringBytes(o); err != nil {
			return
		}
		s.Client = ClientID(cl)
		s.MimeType = mime
		e.Selection = s
	default:
		return o, cmn.NewErr(cmn.ProtocolMismatch, "unknown event kind %d", k)
	}
	return
}
