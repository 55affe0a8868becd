package overlay

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vrdesk/ovrly/internal/capture"
	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/gpu"
	"github.com/vrdesk/ovrly/internal/sharedmem"
	"github.com/vrdesk/ovrly/internal/vr"
)

// slot is the engine-side state for one overlay. It mirrors a shared store
// record and owns the capture session and swapchain for its handle.
type slot struct {
	handle    uint64
	isMonitor bool
	session   capture.Session

	swapchain vr.Swapchain
	// swapchain buffers imported on the composition device, by index.
	compositionImages []gpu.Texture
	swapchainW        int
	swapchainH        int

	pose     geom.Posef
	size     mgl32.Vec2
	viewport image.Rectangle

	scale        float32
	opacity      float32 // 0-1
	placement    sharedmem.Placement
	interactable bool
	frozen       bool
	minimized    bool
	hasFocus     bool
}

func (s *slot) valid() bool {
	return s.handle != 0
}

// clear releases the slot's resources and resets it to empty.
func (s *slot) clear() {
	if s.session != nil {
		s.session.Close()
	}
	if s.swapchain != nil {
		s.swapchain.Destroy()
	}
	*s = slot{}
}

// SlotInfo is a read-only snapshot of a slot for the API and CLI.
type SlotInfo struct {
	Slot         int                 `json:"slot"`
	Handle       uint64              `json:"handle"`
	IsMonitor    bool                `json:"isMonitor"`
	Scale        float32             `json:"scale"`
	Opacity      float32             `json:"opacity"`
	Placement    sharedmem.Placement `json:"placement"`
	Interactable bool                `json:"interactable"`
	Frozen       bool                `json:"frozen"`
	Minimized    bool                `json:"minimized"`
	HasFocus     bool                `json:"hasFocus"`
	ContentW     int                 `json:"contentWidth"`
	ContentH     int                 `json:"contentHeight"`
}
