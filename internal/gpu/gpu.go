// Package gpu abstracts the GPU resources the engine needs: textures,
// command contexts and cross-context fences. The host provides the
// submission device; the engine creates a sibling device on the same
// adapter for composition work. The engine never creates a device of its
// own accord — it receives one and derives from it.
//
// Two contexts on sibling devices execute their command streams
// independently; ordering between them is established only through fences.
package gpu

import (
	"image"
	"image/color"
)

// Format enumerates the texture pixel formats the engine understands.
// Formats a capture source reports that are not representable map to
// FormatUnknown, which compositing treats as a non-fatal skip.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8
	FormatRGBA8SRGB
	FormatBGRA8
	FormatBGRA8SRGB
	FormatRGBA16F
)

// String returns the format's short name.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA8SRGB:
		return "rgba8-srgb"
	case FormatBGRA8:
		return "bgra8"
	case FormatBGRA8SRGB:
		return "bgra8-srgb"
	case FormatRGBA16F:
		return "rgba16f"
	default:
		return "unknown"
	}
}

// TextureDesc describes a 2D texture allocation.
type TextureDesc struct {
	Width  int
	Height int
	Format Format
	Label  string
}

// SharedHandle identifies a resource's underlying allocation so a sibling
// device on the same adapter can import it. Opaque to callers.
type SharedHandle any

// Texture is a device-resident 2D image.
type Texture interface {
	Desc() TextureDesc
	// Handle returns a sharing handle for importing this texture on a
	// sibling device.
	Handle() (SharedHandle, error)
}

// Fence is a monotonically increasing synchronization point between
// contexts, optionally shared across sibling devices.
type Fence interface {
	// Completed returns the highest value signaled so far.
	Completed() uint64
	// WaitCPU blocks the calling goroutine until the fence reaches value.
	// Used only at teardown; per-frame ordering goes through Context.Wait.
	WaitCPU(value uint64)
	// Handle returns a sharing handle for importing this fence on a
	// sibling device.
	Handle() (SharedHandle, error)
}

// TransparencyParams configures the transparency kernel: output alpha is
// set to Alpha wherever a pixel's RGB matches Key (or unconditionally when
// HasKey is false), RGB passes through unchanged.
type TransparencyParams struct {
	Alpha  float32
	Key    color.RGBA
	HasKey bool
}

// Context is an ordered GPU command stream. Commands are enqueued and
// executed asynchronously in submission order; completion is observed
// through fences only.
type Context interface {
	// Upload copies CPU pixels into dst.
	Upload(dst Texture, pix *image.RGBA) error
	// CopyRegion copies region (in src coordinates) into dst's origin.
	CopyRegion(dst, src Texture, region image.Rectangle) error
	// Transparency runs the transparency kernel over region of src,
	// writing into dst's origin.
	Transparency(dst, src Texture, region image.Rectangle, params TransparencyParams) error
	// Signal sets the fence to value once all previously enqueued
	// commands on this context have executed.
	Signal(f Fence, value uint64) error
	// Wait stalls this context until the fence reaches value. It does not
	// block the calling goroutine.
	Wait(f Fence, value uint64) error
}

// Device creates and imports GPU resources.
type Device interface {
	CreateTexture(desc TextureDesc) (Texture, error)
	ImportTexture(h SharedHandle) (Texture, error)
	CreateFence() (Fence, error)
	ImportFence(h SharedHandle) (Fence, error)
	// NewContext creates an independent command context on this device.
	NewContext() (Context, error)
	// Sibling creates an independent device on the same adapter. Textures
	// and fences created on either side can be imported by the other.
	Sibling() (Device, error)
	// Snapshot synchronously reads a texture's current pixels. Debug and
	// preview use only; it does not participate in fence ordering.
	Snapshot(t Texture) (*image.RGBA, error)
	// Close releases the device's contexts. Callers must drain in-flight
	// fences first (see Fence.WaitCPU).
	Close() error
}
