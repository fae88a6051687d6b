package surface

import (
	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
)

// ToplevelPhase is the toplevel lifecycle:
//
//	None -> Created -> Configured <-> Mapped <-> Suspended -> Destroyed
type ToplevelPhase uint8

const (
	ToplevelNone ToplevelPhase = iota
	ToplevelCreated
	ToplevelConfigured
	ToplevelMapped
	ToplevelSuspended
)

func (p ToplevelPhase) String() string {
	switch p {
	case ToplevelCreated:
		return "created"
	case ToplevelConfigured:
		return "configured"
	case ToplevelMapped:
		return "mapped"
	case ToplevelSuspended:
		return "suspended"
	}
	return "none"
}

// PopupPhase is the popup lifecycle: None -> Created -> Configured ->
// Dismissed.
type PopupPhase uint8

const (
	PopupNone PopupPhase = iota
	PopupCreated
	PopupConfigured
	PopupDismissed
)

// SetRole assigns a role to the surface. A role may be assigned at most once
// in a surface's lifetime; a second assignment, even of the same kind, is an
// invalid-state error. A popup's parent must exist and be at least
// configured.
func (s *Store) SetRole(id proto.SurfaceID, role *proto.Role) error {
	sf := s.m[id]
	if sf == nil {
		return cmn.NewErr(cmn.InvalidState, "role for unknown surface %v", id)
	}
	if sf.roleSpent {
		return cmn.NewErr(cmn.InvalidState, "surface %v: role reassignment (already %s)", id, sf.role.Kind)
	}

	switch role.Kind {
	case proto.RoleSubSurface:
		parent := s.childSurface(id, role.SubSurface.Parent)
		if parent == nil {
			return cmn.NewErr(cmn.InvalidState, "subsurface %v: unknown parent %d", id, role.SubSurface.Parent)
		}
		sf.parent = role.SubSurface.Parent
	case proto.RoleToplevel:
		sf.toplevel = ToplevelCreated
	case proto.RolePopup:
		parent := s.childSurface(id, role.Popup.Parent)
		if parent == nil {
			return cmn.NewErr(cmn.InvalidState, "popup %v: unknown parent %d", id, role.Popup.Parent)
		}
		configured := (parent.role != nil && parent.role.Kind == proto.RoleToplevel && parent.toplevel >= ToplevelConfigured) ||
			(parent.role != nil && parent.role.Kind == proto.RolePopup && parent.popup >= PopupConfigured)
		if !configured {
			return cmn.NewErr(cmn.InvalidState, "popup %v: parent %d not configured yet", id, role.Popup.Parent)
		}
		sf.parent = role.Popup.Parent
		sf.popup = PopupCreated
	case proto.RoleCursor:
		// no lifecycle beyond assignment
	default:
		return cmn.NewErr(cmn.BadInput, "surface %v: unknown role kind %d", id, role.Kind)
	}

	sf.role = role
	sf.roleSpent = true
	sf.Pending.Role = role
	return nil
}

// SetSync flips a subsurface between sync and desync mode.
func (s *Store) SetSync(id proto.SurfaceID, sync bool) error {
	sf := s.m[id]
	if sf == nil || sf.role == nil || sf.role.Kind != proto.RoleSubSurface {
		return cmn.NewErr(cmn.InvalidState, "set-sync on non-subsurface %v", id)
	}
	sf.role.SubSurface.Sync = sync
	return nil
}

// ToplevelConfigured records the first (or a subsequent) configure; buffer
// commits take effect only afterwards.
func (s *Store) ToplevelConfigured(id proto.SurfaceID) error {
	sf, err := s.toplevelSurface(id)
	if err != nil {
		return err
	}
	if sf.toplevel == ToplevelCreated {
		sf.toplevel = ToplevelConfigured
	}
	return nil
}

// ToplevelSuspended records that the remote side reports the window
// minimized or fully occluded; no frame callbacks fire until resume.
func (s *Store) ToplevelSuspended(id proto.SurfaceID) error {
	sf, err := s.toplevelSurface(id)
	if err != nil {
		return err
	}
	if sf.toplevel != ToplevelMapped {
		return cmn.NewErr(cmn.InvalidState, "toplevel %v: suspend in phase %s", id, sf.toplevel)
	}
	sf.toplevel = ToplevelSuspended
	return nil
}

// ToplevelResumed leaves the suspended phase.
func (s *Store) ToplevelResumed(id proto.SurfaceID) error {
	sf, err := s.toplevelSurface(id)
	if err != nil {
		return err
	}
	if sf.toplevel != ToplevelSuspended {
		return cmn.NewErr(cmn.InvalidState, "toplevel %v: resume in phase %s", id, sf.toplevel)
	}
	sf.toplevel = ToplevelMapped
	return nil
}

// ToplevelPhaseOf exposes the lifecycle phase for tests and diagnostics.
func (s *Store) ToplevelPhaseOf(id proto.SurfaceID) ToplevelPhase {
	if sf := s.m[id]; sf != nil {
		return sf.toplevel
	}
	return ToplevelNone
}

func (s *Store) toplevelSurface(id proto.SurfaceID) (*Surface, error) {
	sf := s.m[id]
	if sf == nil || sf.role == nil || sf.role.Kind != proto.RoleToplevel {
		return nil, cmn.NewErr(cmn.InvalidState, "surface %v is not a toplevel", id)
	}
	return sf, nil
}

// PopupConfigured applies a popup configure. A non-nil pos replaces the
// positioner in place. The store only records the new positioner and phase;
// it sends no configure event itself.
func (s *Store) PopupConfigured(id proto.SurfaceID, pos *proto.Positioner) error {
	sf := s.m[id]
	if sf == nil || sf.role == nil || sf.role.Kind != proto.RolePopup {
		return cmn.NewErr(cmn.InvalidState, "surface %v is not a popup", id)
	}
	if sf.popup == PopupDismissed {
		return cmn.NewErr(cmn.InvalidState, "popup %v: configure after dismissal", id)
	}
	if pos != nil {
		sf.role.Popup.Positioner = *pos
	}
	sf.popup = PopupConfigured
	return nil
}

// PopupDismiss dismisses the popup; only destruction may follow.
func (s *Store) PopupDismiss(id proto.SurfaceID) error {
	sf := s.m[id]
	if sf == nil || sf.role == nil || sf.role.Kind != proto.RolePopup {
		return cmn.NewErr(cmn.InvalidState, "surface %v is not a popup", id)
	}
	sf.popup = PopupDismissed
	return nil
}
