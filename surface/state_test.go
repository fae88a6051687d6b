package surface

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/proto"
)

func sid(n uint32) proto.SurfaceID {
	return proto.SurfaceID{Client: "c1", Surface: proto.WlSurfaceID(n)}
}

func attach(sf *Surface, marker byte) {
	sf.Pending.Buffer = proto.BufferAssignment{
		Kind: proto.BufferAttached,
		Buffer: &proto.BufferRecord{
			Metadata: proto.BufferMetadata{Width: 1, Height: 1, Stride: 4, Format: proto.FormatBGRA8},
			Data:     proto.BufferData{Kind: proto.BufferUncompressed, Bytes: []byte{marker, 0, 0, 255}},
		},
	}
}

var _ = Describe("Store", func() {
	var store *Store

	BeforeEach(func() {
		store = NewStore(nil)
	})

	Describe("lifecycle", func() {
		It("creates a surface on first reference", func() {
			sf := store.GetOrCreate(sid(1))
			Expect(sf).NotTo(BeNil())
			Expect(sf.Pending.BufferScale).To(BeEquivalentTo(1))
			Expect(store.Len()).To(Equal(1))
		})

		It("rejects commits to a destroyed surface", func() {
			store.GetOrCreate(sid(1))
			Expect(store.Destroy(sid(1))).To(Succeed())

			_, err := store.Commit(sid(1))
			Expect(cmn.IsKind(err, cmn.InvalidState)).To(BeTrue())
		})

		It("unlinks a destroyed subsurface from its parent's z-order", func() {
			parent := store.GetOrCreate(sid(1))
			store.GetOrCreate(sid(2))
			Expect(store.SetRole(sid(2), &proto.Role{
				Kind:       proto.RoleSubSurface,
				SubSurface: &proto.SubSurfaceRole{Parent: 1},
			})).To(Succeed())
			parent.Pending.Children = []proto.ZChild{{ID: 2}}
			_, err := store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Destroy(sid(2))).To(Succeed())
			Expect(parent.Current.Children).To(BeEmpty())
		})
	})

	Describe("roles", func() {
		It("assigns a role at most once", func() {
			store.GetOrCreate(sid(1))
			top := &proto.Role{Kind: proto.RoleToplevel, Toplevel: &proto.ToplevelRole{Title: "term"}}
			Expect(store.SetRole(sid(1), top)).To(Succeed())

			err := store.SetRole(sid(1), &proto.Role{Kind: proto.RoleCursor})
			Expect(cmn.IsKind(err, cmn.InvalidState)).To(BeTrue())
			err = store.SetRole(sid(1), top)
			Expect(cmn.IsKind(err, cmn.InvalidState)).To(BeTrue())
		})

		It("walks the toplevel lifecycle", func() {
			store.GetOrCreate(sid(1))
			Expect(store.SetRole(sid(1), &proto.Role{Kind: proto.RoleToplevel, Toplevel: &proto.ToplevelRole{}})).To(Succeed())
			Expect(store.ToplevelPhaseOf(sid(1))).To(Equal(ToplevelCreated))

			Expect(store.ToplevelConfigured(sid(1))).To(Succeed())
			Expect(store.ToplevelPhaseOf(sid(1))).To(Equal(ToplevelConfigured))

			sf := store.Get(sid(1))
			attach(sf, 1)
			_, err := store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(store.ToplevelPhaseOf(sid(1))).To(Equal(ToplevelMapped))

			Expect(store.ToplevelSuspended(sid(1))).To(Succeed())
			Expect(store.ToplevelPhaseOf(sid(1))).To(Equal(ToplevelSuspended))
			Expect(store.ToplevelResumed(sid(1))).To(Succeed())
			Expect(store.ToplevelPhaseOf(sid(1))).To(Equal(ToplevelMapped))
		})

		It("rejects suspend before mapping", func() {
			store.GetOrCreate(sid(1))
			Expect(store.SetRole(sid(1), &proto.Role{Kind: proto.RoleToplevel, Toplevel: &proto.ToplevelRole{}})).To(Succeed())
			err := store.ToplevelSuspended(sid(1))
			Expect(cmn.IsKind(err, cmn.InvalidState)).To(BeTrue())
		})

		It("requires a configured parent for popups", func() {
			store.GetOrCreate(sid(1))
			Expect(store.SetRole(sid(1), &proto.Role{Kind: proto.RoleToplevel, Toplevel: &proto.ToplevelRole{}})).To(Succeed())
			store.GetOrCreate(sid(2))

			popup := &proto.Role{Kind: proto.RolePopup, Popup: &proto.PopupRole{Parent: 1}}
			err := store.SetRole(sid(2), popup)
			Expect(cmn.IsKind(err, cmn.InvalidState)).To(BeTrue())

			Expect(store.ToplevelConfigured(sid(1))).To(Succeed())
			Expect(store.SetRole(sid(2), popup)).To(Succeed())
		})

		It("rejects commits to a dismissed popup", func() {
			store.GetOrCreate(sid(1))
			Expect(store.SetRole(sid(1), &proto.Role{Kind: proto.RoleToplevel, Toplevel: &proto.ToplevelRole{}})).To(Succeed())
			Expect(store.ToplevelConfigured(sid(1))).To(Succeed())
			store.GetOrCreate(sid(2))
			Expect(store.SetRole(sid(2), &proto.Role{Kind: proto.RolePopup, Popup: &proto.PopupRole{Parent: 1}})).To(Succeed())
			Expect(store.PopupConfigured(sid(2), nil)).To(Succeed())
			Expect(store.PopupDismiss(sid(2))).To(Succeed())

			_, err := store.Commit(sid(2))
			Expect(cmn.IsKind(err, cmn.InvalidState)).To(BeTrue())
		})
	})

	Describe("commit", func() {
		It("snapshots pending into current and clears transient fields", func() {
			sf := store.GetOrCreate(sid(1))
			attach(sf, 7)
			sf.Pending.Damage = []proto.Rect{{W: 1, H: 1}}

			applied, err := store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).NotTo(BeNil())
			Expect(applied.State.Buffer.Kind).To(Equal(proto.BufferAttached))
			Expect(applied.State.Damage).To(HaveLen(1))

			Expect(sf.Pending.Buffer.Kind).To(Equal(proto.BufferAbsent))
			Expect(sf.Pending.Damage).To(BeEmpty())
		})

		It("keeps the current buffer when the next commit has none", func() {
			sf := store.GetOrCreate(sid(1))
			attach(sf, 7)
			_, err := store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())

			sf.Pending.Damage = []proto.Rect{{W: 2, H: 2}}
			applied, err := store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied.State.Buffer.Kind).To(Equal(proto.BufferAttached))
		})

		It("defers a sync subsurface commit until the parent commits", func() {
			parent := store.GetOrCreate(sid(1))
			store.GetOrCreate(sid(2))
			Expect(store.SetRole(sid(2), &proto.Role{
				Kind:       proto.RoleSubSurface,
				SubSurface: &proto.SubSurfaceRole{Parent: 1, Sync: true},
			})).To(Succeed())
			parent.Pending.Children = []proto.ZChild{{ID: 2}}

			child := store.Get(sid(2))
			attach(child, 9)
			applied, err := store.Commit(sid(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeNil())
			Expect(child.Current.Buffer.Kind).NotTo(Equal(proto.BufferAttached))

			attach(parent, 8)
			applied, err = store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).NotTo(BeNil())
			Expect(applied.Synced).To(HaveLen(1))
			Expect(applied.Synced[0].ID).To(BeEquivalentTo(2))
			Expect(applied.Synced[0].State.Buffer.Kind).To(Equal(proto.BufferAttached))
			Expect(child.Current.Buffer.Buffer.Data.Bytes[0]).To(BeEquivalentTo(9))
		})

		It("applies a desync subsurface commit immediately", func() {
			parent := store.GetOrCreate(sid(1))
			store.GetOrCreate(sid(2))
			Expect(store.SetRole(sid(2), &proto.Role{
				Kind:       proto.RoleSubSurface,
				SubSurface: &proto.SubSurfaceRole{Parent: 1, Sync: false},
			})).To(Succeed())
			parent.Pending.Children = []proto.ZChild{{ID: 2}}

			child := store.Get(sid(2))
			attach(child, 9)
			applied, err := store.Commit(sid(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).NotTo(BeNil())
			Expect(child.Current.Buffer.Kind).To(Equal(proto.BufferAttached))
		})

		It("treats a sync ancestor as making the whole subtree sync", func() {
			top := store.GetOrCreate(sid(1))
			store.GetOrCreate(sid(2))
			Expect(store.SetRole(sid(2), &proto.Role{
				Kind:       proto.RoleSubSurface,
				SubSurface: &proto.SubSurfaceRole{Parent: 1, Sync: true},
			})).To(Succeed())
			store.GetOrCreate(sid(3))
			Expect(store.SetRole(sid(3), &proto.Role{
				Kind:       proto.RoleSubSurface,
				SubSurface: &proto.SubSurfaceRole{Parent: 2, Sync: false},
			})).To(Succeed())
			top.Pending.Children = []proto.ZChild{{ID: 2}}
			mid := store.Get(sid(2))
			mid.Pending.Children = []proto.ZChild{{ID: 3}}

			// the desync grandchild still defers because its parent is sync
			grand := store.Get(sid(3))
			attach(grand, 5)
			applied, err := store.Commit(sid(3))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeNil())
		})

		It("carries the full z-order list on commit", func() {
			parent := store.GetOrCreate(sid(1))
			for _, n := range []uint32{2, 3, 4} {
				store.GetOrCreate(sid(n))
				Expect(store.SetRole(sid(n), &proto.Role{
					Kind:       proto.RoleSubSurface,
					SubSurface: &proto.SubSurfaceRole{Parent: 1},
				})).To(Succeed())
			}
			parent.Pending.Children = []proto.ZChild{{ID: 3}, {ID: 2}, {ID: 4}}

			applied, err := store.Commit(sid(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(applied.State.Children).To(Equal([]proto.ZChild{{ID: 3}, {ID: 2}, {ID: 4}}))
		})
	})
})
