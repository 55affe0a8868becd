// Package vr defines the engine's contract with the hosting VR runtime.
// The host owns the session; the engine receives the session together with
// a capability table of the few runtime entry points it needs. Everything
// else about the runtime stays on the host's side.
package vr

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/gpu"
)

// Session is the host's opaque runtime session.
type Session any

// ErrFormatUnsupported reports that the runtime cannot create a swapchain
// with the requested texture format.
var ErrFormatUnsupported = errors.New("vr: swapchain format unsupported")

// Hand indexes the two tracked controllers.
type Hand int

const (
	HandLeft Hand = iota
	HandRight
)

// Controller button bits in InputState.Buttons.
const (
	ButtonRightThumb uint32 = 1 << 2
	ButtonLeftThumb  uint32 = 1 << 10
)

// ThumbButton returns the thumbstick-press bit for hand.
func ThumbButton(h Hand) uint32 {
	if h == HandLeft {
		return ButtonLeftThumb
	}
	return ButtonRightThumb
}

// Swapchain is a runtime-owned ring of textures an overlay layer samples
// from. The engine writes the texture at Index and commits to publish it.
type Swapchain interface {
	Len() int
	// Index returns the buffer to write this frame.
	Index() (int, error)
	// Texture returns the i-th buffer as a device texture.
	Texture(i int) (gpu.Texture, error)
	// Commit publishes the current buffer and advances the ring.
	Commit() error
	Destroy()
}

// TrackingState is the predicted head and hand poses for a frame.
type TrackingState struct {
	Head      geom.Posef
	Hands     [2]geom.Posef
	HandValid [2]bool
}

// InputState is the sampled controller state for a frame.
type InputState struct {
	Buttons      uint32
	IndexTrigger [2]float32
	HandTrigger  [2]float32
	Thumbstick   [2]mgl32.Vec2
}

// CapabilityTable carries the runtime entry points the host lends to the
// engine. All functions take the host's session.
type CapabilityTable struct {
	// CreateSwapchain allocates a swapchain whose buffers are importable on
	// dev. Returns ErrFormatUnsupported for formats the runtime rejects.
	CreateSwapchain func(s Session, dev gpu.Device, desc gpu.TextureDesc) (Swapchain, error)

	// Tracking returns poses predicted the given number of seconds ahead.
	Tracking func(s Session, predictedSeconds float64) (TrackingState, error)

	// Input samples the controllers.
	Input func(s Session) (InputState, error)
}
