// Package capture acquires window and monitor content as GPU textures for
// compositing. Sources hand out one Session per overlay slot; a session owns
// the capture resources for a single handle and is polled once per frame.
package capture

import (
	"errors"
	"image"

	"github.com/vrdesk/ovrly/internal/gpu"
)

// ErrNoFrame reports that no new content is available this frame. The
// compositor skips the slot and retries next frame.
var ErrNoFrame = errors.New("capture: no frame available")

// Session captures one window or monitor for the lifetime of an overlay
// slot.
type Session interface {
	// Surface returns the device texture holding the most recent content.
	// Returns ErrNoFrame when nothing has been produced yet. The returned
	// texture stays valid until the next Surface call or Close.
	Surface() (gpu.Texture, error)

	// ContentSize returns the pixel dimensions of the captured content.
	// Zero until the first frame arrives.
	ContentSize() (width, height int)

	// ContentRect returns the region of the surface holding valid content,
	// in surface coordinates. Surfaces may be padded beyond the content.
	ContentRect() image.Rectangle

	// Close releases the session's capture and GPU resources.
	Close() error
}

// Source creates capture sessions. handle identifies a window when monitor
// is false, or a monitor index when monitor is true.
type Source interface {
	SessionFor(handle uint64, monitor bool, dev gpu.Device) (Session, error)
	Close() error
}
