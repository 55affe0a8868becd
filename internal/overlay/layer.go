package overlay

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/vr"
)

// Layer is one quad the host submits to the runtime's layer list. Layers
// returns them back to front, cursor last.
type Layer struct {
	Swapchain  vr.Swapchain
	Pose       geom.Posef
	Size       mgl32.Vec2
	Viewport   image.Rectangle
	HeadLocked bool
}
