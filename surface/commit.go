package surface

import (
	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
)

// Applied is the result of a non-deferred commit: the snapshot to transmit,
// plus the cached states of sync descendants that took effect atomically
// with it, in pre-order.
type Applied struct {
	ID     proto.SurfaceID
	State  *proto.SurfaceState
	Synced []proto.SyncedChild
}

// Commit atomically applies the surface's pending state. A commit on a
// sync-mode subsurface (own flag or any sync ancestor) is deferred: the
// pending snapshot is cached and nil is returned; it takes effect on the
// closest desync ancestor's commit. Commits apply in FIFO order per surface;
// ordering between surfaces is not preserved and not required.
func (s *Store) Commit(id proto.SurfaceID) (*Applied, error) {
	sf := s.m[id]
	if sf == nil {
		return nil, cmn.NewErr(cmn.InvalidState, "commit to unknown or destroyed surface %v", id)
	}
	if sf.role != nil && sf.role.Kind == proto.RolePopup && sf.popup == PopupDismissed {
		return nil, cmn.NewErr(cmn.InvalidState, "commit to dismissed popup %v", id)
	}

	if s.effectiveSync(sf) {
		snap := snapshot(&sf.Pending)
		sf.cached = &snap
		clearTransient(&sf.Pending)
		return nil, nil
	}

	s.apply(sf, &sf.Pending)
	clearTransient(&sf.Pending)
	sf.healthy = true

	applied := &Applied{ID: id, State: &sf.Current}
	applied.Synced = s.applySyncDescendants(sf, nil)
	return applied, nil
}

// effectiveSync reports whether the surface's committed state is deferred:
// a subsurface is effectively sync if its own flag is set or any ancestor
// subsurface is sync.
func (s *Store) effectiveSync(sf *Surface) bool {
	for sf != nil && sf.role != nil && sf.role.Kind == proto.RoleSubSurface {
		if sf.role.SubSurface.Sync {
			return true
		}
		sf = s.childSurface(sf.ID, sf.role.SubSurface.Parent)
	}
	return false
}

// applySyncDescendants applies the cached states of sync children in
// pre-order, recursing through nested sync subtrees.
func (s *Store) applySyncDescendants(sf *Surface, out []proto.SyncedChild) []proto.SyncedChild {
	for _, child := range sf.Current.Children {
		cs := s.childSurface(sf.ID, child.ID)
		if cs == nil || cs.role == nil || cs.role.Kind != proto.RoleSubSurface {
			continue
		}
		if !s.effectiveSync(cs) {
			// a child that is not effectively sync applies its own commits;
			// its subtree is not ours
			continue
		}
		if cs.cached != nil {
			s.apply(cs, cs.cached)
			cs.cached = nil
			out = append(out, proto.SyncedChild{ID: cs.ID.Surface, State: cs.Current})
		}
		out = s.applySyncDescendants(cs, out)
	}
	return out
}

// apply snapshots a pending state into the surface's current state. A
// buffer assignment of Absent keeps the current buffer; Removed clears it.
func (s *Store) apply(sf *Surface, pending *proto.SurfaceState) {
	keep := sf.Current.Buffer
	sf.Current = snapshot(pending)
	switch pending.Buffer.Kind {
	case proto.BufferAbsent, 0:
		sf.Current.Buffer = keep
	case proto.BufferRemoved:
		sf.Current.Buffer = proto.BufferAssignment{Kind: proto.BufferRemoved}
	}

	// a toplevel's buffer commits take effect only once it is configured
	if sf.role != nil && sf.role.Kind == proto.RoleToplevel && sf.toplevel == ToplevelCreated {
		sf.Current.Buffer = keep
	}

	// first buffer commit on a configured toplevel maps it
	if sf.role != nil && sf.role.Kind == proto.RoleToplevel &&
		sf.toplevel == ToplevelConfigured && sf.Current.Buffer.Kind == proto.BufferAttached {
		sf.toplevel = ToplevelMapped
	}
}

// snapshot copies a state value; slice fields are cloned so later pending
// mutations cannot alias the current state.
func snapshot(st *proto.SurfaceState) proto.SurfaceState {
	out := *st
	out.Damage = append([]proto.Rect(nil), st.Damage...)
	out.Children = append([]proto.ZChild(nil), st.Children...)
	out.InputRegion.Rects = append([]proto.Rect(nil), st.InputRegion.Rects...)
	out.OpaqueRegion.Rects = append([]proto.Rect(nil), st.OpaqueRegion.Rects...)
	return out
}

// clearTransient resets the per-commit fields of a pending state; persistent
// fields (scale, transform, regions, children, role) survive to the next
// commit.
func clearTransient(st *proto.SurfaceState) {
	st.Buffer = proto.BufferAssignment{Kind: proto.BufferAbsent}
	st.Damage = st.Damage[:0]
}
