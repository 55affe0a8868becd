// Package overlay runs the overlay engine: it scans the shared slot store,
// handles controller interactions with the overlay quads, composites the
// captured content into runtime swapchains and produces the layer list for
// the host to submit each frame.
package overlay

import (
	"fmt"
	"image"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog"

	"github.com/vrdesk/ovrly/internal/capture"
	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/gpu"
	"github.com/vrdesk/ovrly/internal/input"
	"github.com/vrdesk/ovrly/internal/logger"
	"github.com/vrdesk/ovrly/internal/sharedmem"
	"github.com/vrdesk/ovrly/internal/vr"
)

// Manager owns the per-frame overlay pipeline. The host calls Initialize
// whenever it (re)creates its runtime session and device, then Update once
// per frame followed by Layers.
type Manager struct {
	mu     sync.Mutex
	params Params
	log    *zerolog.Logger

	store   *sharedmem.Store
	source  capture.Source
	pointer input.Pointer

	// A nil store disables the engine; every call becomes a no-op.
	disabled bool

	session vr.Session
	caps    vr.CapabilityTable

	submissionDevice  gpu.Device
	submissionCtx     gpu.Context
	compositionDevice gpu.Device
	compositionCtx    gpu.Context

	// The fence is created on the composition device and imported on the
	// submission device. Composition signals, submission waits.
	fenceOnComposition gpu.Fence
	fenceOnSubmission  gpu.Fence
	fenceValue         uint64

	slots  [sharedmem.OverlayCount]slot
	sorted []int // back to front

	cursorSwapchain vr.Swapchain
	cursorViewport  image.Rectangle
	cursorPose      *geom.Posef
	hoveredSlot     int

	lastHeadPose        geom.Posef
	lastSide            int
	lastControllerPoses [2]geom.Posef
	lastCursorPosition  mgl32.Vec3

	triggerPressed bool
	thumbPressed   bool
	dragging       bool
	resizing       bool
}

// New creates a manager. A nil store disables the engine: the host keeps
// running and every engine call is a no-op.
func New(params Params, store *sharedmem.Store, source capture.Source, pointer input.Pointer) *Manager {
	log := logger.WithComponent("overlay")
	m := &Manager{
		params:       params,
		log:          log,
		store:        store,
		source:       source,
		pointer:      pointer,
		lastHeadPose: geom.PoseIdentity(),
		lastControllerPoses: [2]geom.Posef{
			geom.PoseIdentity(),
			geom.PoseIdentity(),
		},
	}
	if store == nil {
		m.disabled = true
		log.Warn().Msg("Overlay state store unavailable - engine disabled")
	}
	return m
}

// Initialize binds the manager to a runtime session and the host's
// submission device. Safe to call again on session rebind: in-flight
// composition work is flushed and all per-session resources are recreated.
func (m *Manager) Initialize(session vr.Session, caps vr.CapabilityTable, dev gpu.Device) error {
	if m.disabled {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info().Msg("Acquiring runtime session")

	if m.compositionCtx != nil {
		m.flushComposition()
	}
	if m.cursorSwapchain != nil {
		m.cursorSwapchain.Destroy()
		m.cursorSwapchain = nil
	}
	for i := range m.slots {
		if m.slots[i].valid() {
			m.slots[i].clear()
		}
	}
	m.cursorPose = nil
	if m.compositionDevice != nil {
		if err := m.compositionDevice.Close(); err != nil {
			m.log.Warn().Err(err).Msg("Failed to close previous composition device")
		}
		m.compositionDevice = nil
	}

	m.session = session
	m.caps = caps
	m.submissionDevice = dev

	ctx, err := dev.NewContext()
	if err != nil {
		return fmt.Errorf("failed to create submission context: %w", err)
	}
	m.submissionCtx = ctx

	comp, err := dev.Sibling()
	if err != nil {
		return fmt.Errorf("failed to create composition device: %w", err)
	}
	m.compositionDevice = comp
	if m.compositionCtx, err = comp.NewContext(); err != nil {
		return fmt.Errorf("failed to create composition context: %w", err)
	}

	if m.fenceOnComposition, err = comp.CreateFence(); err != nil {
		return fmt.Errorf("failed to create composition fence: %w", err)
	}
	handle, err := m.fenceOnComposition.Handle()
	if err != nil {
		return fmt.Errorf("failed to share composition fence: %w", err)
	}
	if m.fenceOnSubmission, err = dev.ImportFence(handle); err != nil {
		return fmt.Errorf("failed to import fence on submission device: %w", err)
	}
	m.fenceValue = 0

	return m.createCursor()
}

// Update runs one frame of the pipeline: slot lifecycle and depth sort,
// interaction handling, composition, cross-device serialization, then state
// sync and swapchain commits.
func (m *Manager) Update(predictedSeconds float64) error {
	if m.disabled {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return fmt.Errorf("overlay manager not initialized")
	}

	m.scanAndSort()
	if err := m.handleInteractions(predictedSeconds); err != nil {
		return err
	}
	m.composite()

	// Serialize composition work ahead of the commits.
	m.fenceValue++
	if err := m.compositionCtx.Signal(m.fenceOnComposition, m.fenceValue); err != nil {
		return fmt.Errorf("failed to signal composition fence: %w", err)
	}
	if err := m.submissionCtx.Wait(m.fenceOnSubmission, m.fenceValue); err != nil {
		return fmt.Errorf("failed to wait on submission fence: %w", err)
	}

	for i := range m.slots {
		s := &m.slots[i]
		if !s.valid() {
			continue
		}
		m.syncSlot(i)
		if s.swapchain != nil {
			if err := s.swapchain.Commit(); err != nil {
				return fmt.Errorf("failed to commit slot %d swapchain: %w", i, err)
			}
		}
	}
	return nil
}

// Layers returns the layer list for this frame, back to front, with the
// cursor appended last when an overlay is hovered.
func (m *Manager) Layers() []Layer {
	if m.disabled {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var layers []Layer
	for _, idx := range m.sorted {
		s := &m.slots[idx]
		if !s.valid() || s.swapchain == nil {
			continue
		}
		layers = append(layers, Layer{
			Swapchain:  s.swapchain,
			Pose:       s.pose,
			Size:       s.size,
			Viewport:   s.viewport,
			HeadLocked: s.placement == sharedmem.HeadLocked,
		})
	}

	if m.cursorPose != nil && m.cursorSwapchain != nil {
		half := m.params.CursorSize / 2
		pose := geom.Pose(m.cursorPose.Orientation, mgl32.Vec3{
			m.cursorPose.Position.X() + half,
			m.cursorPose.Position.Y() - half,
			m.cursorPose.Position.Z(),
		})
		layers = append(layers, Layer{
			Swapchain:  m.cursorSwapchain,
			Pose:       pose,
			Size:       mgl32.Vec2{m.params.CursorSize, m.params.CursorSize},
			Viewport:   m.cursorViewport,
			HeadLocked: m.slots[m.hoveredSlot].placement == sharedmem.HeadLocked,
		})
	}
	return layers
}

// HasFocus reports whether the cursor is on an overlay this frame, which
// tells the host to withhold controller input from the main application.
func (m *Manager) HasFocus() bool {
	if m.disabled {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursorPose != nil
}

// Slots returns a snapshot of all slots for the API and CLI.
func (m *Manager) Slots() []SlotInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]SlotInfo, 0, len(m.slots))
	for i := range m.slots {
		s := &m.slots[i]
		info := SlotInfo{Slot: i, Handle: s.handle}
		if s.valid() {
			info.IsMonitor = s.isMonitor
			info.Scale = s.scale
			info.Opacity = s.opacity
			info.Placement = s.placement
			info.Interactable = s.interactable
			info.Frozen = s.frozen
			info.Minimized = s.minimized
			info.HasFocus = s.hasFocus
			if s.session != nil {
				info.ContentW, info.ContentH = s.session.ContentSize()
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// Snapshot reads back the most recently committed content of a slot.
// Preview use only.
func (m *Manager) Snapshot(slotIndex int) (*image.RGBA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slotIndex < 0 || slotIndex >= len(m.slots) {
		return nil, fmt.Errorf("slot %d out of range", slotIndex)
	}
	s := &m.slots[slotIndex]
	if !s.valid() || s.swapchain == nil || len(s.compositionImages) == 0 {
		return nil, fmt.Errorf("slot %d has no content", slotIndex)
	}
	idx, err := s.swapchain.Index()
	if err != nil {
		return nil, err
	}
	// The current index is the buffer being written; the previous one holds
	// the last committed frame.
	last := (idx + len(s.compositionImages) - 1) % len(s.compositionImages)
	return m.compositionDevice.Snapshot(s.compositionImages[last])
}

// Close flushes composition work and releases all engine resources.
func (m *Manager) Close() error {
	if m.disabled {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info().Msg("Shutting down overlay engine")
	if m.compositionCtx != nil {
		m.flushComposition()
	}
	for i := range m.slots {
		if m.slots[i].valid() {
			m.slots[i].clear()
		}
	}
	if m.cursorSwapchain != nil {
		m.cursorSwapchain.Destroy()
		m.cursorSwapchain = nil
	}
	if m.compositionDevice != nil {
		if err := m.compositionDevice.Close(); err != nil {
			return fmt.Errorf("failed to close composition device: %w", err)
		}
		m.compositionDevice = nil
	}
	m.session = nil
	return nil
}

// flushComposition blocks until every command enqueued on the composition
// context has executed. Only used at rebind and teardown.
func (m *Manager) flushComposition() {
	m.fenceValue++
	if err := m.compositionCtx.Signal(m.fenceOnComposition, m.fenceValue); err != nil {
		m.log.Warn().Err(err).Msg("Failed to signal flush fence")
		return
	}
	m.fenceOnComposition.WaitCPU(m.fenceValue)
}
