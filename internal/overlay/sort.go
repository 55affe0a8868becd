package overlay

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/sharedmem"
)

// scanAndSort reconciles slots against the shared store (opening and
// closing overlays as handles appear and vanish) and rebuilds the draw
// order, farthest from the head first.
func (m *Manager) scanAndSort() {
	type entry struct {
		distance float32
		index    int
	}
	entries := make([]entry, 0, len(m.slots))

	for i := range m.slots {
		s := &m.slots[i]
		d := m.store.Read(i)

		if !s.valid() {
			if d.Handle == 0 {
				continue
			}
			m.openSlot(i, d)
			if !s.valid() {
				continue
			}
		} else if d.Handle == 0 {
			m.closeSlot(i)
			continue
		}

		dist := s.pose.Position.Sub(m.lastHeadPose.Position).Len()
		entries = append(entries, entry{distance: dist, index: i})
	}

	// Back to front. Stable so equidistant overlays keep slot order.
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].distance > entries[b].distance
	})
	m.sorted = m.sorted[:0]
	for _, e := range entries {
		m.sorted = append(m.sorted, e.index)
	}
}

// openSlot creates engine resources for a newly assigned handle and pulls
// its descriptor. A NaN pose means the overlay was never placed and spawns
// one meter in front of the user.
func (m *Manager) openSlot(i int, d sharedmem.Descriptor) {
	s := &m.slots[i]

	session, err := m.source.SessionFor(d.Handle, d.IsMonitor, m.compositionDevice)
	if err != nil {
		m.log.Warn().
			Err(err).
			Int("slot", i).
			Uint64("handle", d.Handle).
			Msg("Failed to open capture session")
		return
	}

	s.handle = d.Handle
	s.isMonitor = d.IsMonitor
	s.session = session
	s.pose = d.Pose
	s.scale = d.Scale
	s.opacity = float32(d.Opacity) / 100
	s.placement = d.Placement
	s.interactable = d.IsInteractable
	s.frozen = d.IsFrozen
	s.minimized = d.IsMinimized
	s.hasFocus = false
	s.swapchain = nil
	s.compositionImages = nil
	s.swapchainW, s.swapchainH = 0, 0

	if s.pose.IsNaN() {
		front := geom.Pose(mgl32.QuatIdent(), mgl32.Vec3{0, 0, -1})
		switch s.placement {
		case sharedmem.HeadLocked:
			s.pose = front
		default:
			s.pose = geom.AlignToGravity(m.lastHeadPose.Mul(front))
		}
	}

	m.log.Info().
		Int("slot", i).
		Uint64("handle", d.Handle).
		Bool("monitor", d.IsMonitor).
		Msg("Opened overlay")
}

// closeSlot releases a slot whose handle was cleared in the store.
func (m *Manager) closeSlot(i int) {
	m.log.Info().Int("slot", i).Msg("Closed overlay")
	m.slots[i].clear()
}

// syncSlot exchanges state with the shared store: the engine pushes the
// fields it owns (pose, scale, minimized) and pulls the rest.
func (m *Manager) syncSlot(i int) {
	s := &m.slots[i]

	m.store.WritePose(i, s.pose)
	m.store.WriteScale(i, s.scale)
	m.store.WriteMinimized(i, s.minimized)

	d := m.store.Read(i)
	s.opacity = float32(d.Opacity) / 100
	s.placement = d.Placement
	s.interactable = d.IsInteractable
	s.frozen = d.IsFrozen
}
