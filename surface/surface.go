// Package surface implements the per-surface double-buffered state model and
// the frame-pacing discipline. A single map owns every surface; parent and
// child links are identifiers, never references, which makes destruction a
// plain map removal. The store is owned by the event loop and is not safe
// for concurrent use.
package surface

import (
	"go.uber.org/zap"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
)

// Surface is one surface's record: the pending state mutated by incoming
// requests, the current state snapshotted on commit, and the role lifecycle.
type Surface struct {
	ID proto.SurfaceID

	Pending proto.SurfaceState
	Current proto.SurfaceState

	// cached holds the pending snapshot of a sync subsurface between its
	// own commit and the commit of its closest desync ancestor.
	cached *proto.SurfaceState

	// role is assigned at most once; it may be cleared on destroy but never
	// reassigned.
	role      *proto.Role
	roleSpent bool
	toplevel  ToplevelPhase
	popup     PopupPhase
	parent    proto.WlSurfaceID // subsurfaces only; 0 = none
	destroyed bool
	healthy   bool
}

// Role returns the assigned role, nil before assignment.
func (sf *Surface) Role() *proto.Role { return sf.role }

// Healthy reports whether the last pipeline pass over this surface
// succeeded. An unhealthy surface is resynchronized on its next commit.
func (sf *Surface) Healthy() bool { return sf.healthy }

// MarkUnhealthy flags the surface after a codec or ingestion failure.
func (sf *Surface) MarkUnhealthy() { sf.healthy = false }

// Store owns every surface of a server instance, keyed by the globally
// unique (client, surface) pair.
type Store struct {
	lg *zap.Logger
	m  map[proto.SurfaceID]*Surface
}

func NewStore(lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Store{lg: lg, m: make(map[proto.SurfaceID]*Surface)}
}

func (s *Store) Len() int { return len(s.m) }

// Get returns the surface record, or nil when the id is unknown.
func (s *Store) Get(id proto.SurfaceID) *Surface { return s.m[id] }

// GetOrCreate returns the surface, creating it on first reference.
func (s *Store) GetOrCreate(id proto.SurfaceID) *Surface {
	if sf := s.m[id]; sf != nil {
		return sf
	}
	sf := &Surface{
		ID:      id,
		healthy: true,
		Pending: proto.SurfaceState{BufferScale: 1},
		Current: proto.SurfaceState{BufferScale: 1},
	}
	s.m[id] = sf
	s.lg.Debug("surface created", zap.String("client", string(id.Client)), zap.Uint32("surface", uint32(id.Surface)))
	return sf
}

// Destroy removes the surface: it is unlinked from its parent's z-order
// list, its role resources are released, and further commits to it fail
// with an invalid-state error.
func (s *Store) Destroy(id proto.SurfaceID) error {
	sf := s.m[id]
	if sf == nil {
		return cmn.NewErr(cmn.InvalidState, "destroy of unknown surface %v", id)
	}
	if sf.parent != 0 {
		if parent := s.m[proto.SurfaceID{Client: id.Client, Surface: sf.parent}]; parent != nil {
			parent.Pending.Children = removeChild(parent.Pending.Children, id.Surface)
			parent.Current.Children = removeChild(parent.Current.Children, id.Surface)
		}
	}
	sf.destroyed = true
	sf.role = nil
	sf.cached = nil
	delete(s.m, id)
	s.lg.Debug("surface destroyed", zap.String("client", string(id.Client)), zap.Uint32("surface", uint32(id.Surface)))
	return nil
}

// DropClient removes every surface belonging to a disconnected client.
func (s *Store) DropClient(client proto.ClientID) {
	for id := range s.m {
		if id.Client == client {
			delete(s.m, id)
		}
	}
}

func removeChild(cs []proto.ZChild, id proto.WlSurfaceID) []proto.ZChild {
	for i := range cs {
		if cs[i].ID == id {
			return append(cs[:i], cs[i+1:]...)
		}
	}
	return cs
}

// childSurface resolves a child id within the same client.
func (s *Store) childSurface(parent proto.SurfaceID, child proto.WlSurfaceID) *Surface {
	return s.m[proto.SurfaceID{Client: parent.Client, Surface: child}]
}
