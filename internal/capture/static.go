package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/vrdesk/ovrly/internal/gpu"
)

// StaticSource serves fixed images keyed by handle. It backs the simulator
// host loop and tests, where no display server is available.
type StaticSource struct {
	mu     sync.Mutex
	frames map[uint64]*image.RGBA
}

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{frames: make(map[uint64]*image.RGBA)}
}

// SetFrame installs (or replaces) the content served for handle. Sessions
// pick up the new frame on their next Surface call.
func (s *StaticSource) SetFrame(handle uint64, img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[handle] = img
}

// SessionFor creates a session bound to handle. Monitor handles share the
// same frame table.
func (s *StaticSource) SessionFor(handle uint64, monitor bool, dev gpu.Device) (Session, error) {
	ctx, err := dev.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create upload context: %w", err)
	}
	return &staticSession{source: s, handle: handle, dev: dev, ctx: ctx}, nil
}

// Close releases all installed frames.
func (s *StaticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(map[uint64]*image.RGBA)
	return nil
}

type staticSession struct {
	source *StaticSource
	handle uint64
	dev    gpu.Device
	ctx    gpu.Context

	tex    gpu.Texture
	width  int
	height int
}

func (s *staticSession) Surface() (gpu.Texture, error) {
	s.source.mu.Lock()
	img := s.source.frames[s.handle]
	s.source.mu.Unlock()
	if img == nil {
		return nil, ErrNoFrame
	}

	w, h := img.Rect.Dx(), img.Rect.Dy()
	if s.tex == nil || s.width != w || s.height != h {
		tex, err := s.dev.CreateTexture(gpu.TextureDesc{
			Width:  w,
			Height: h,
			Format: gpu.FormatRGBA8,
			Label:  "static-capture",
		})
		if err != nil {
			return nil, err
		}
		s.tex, s.width, s.height = tex, w, h
	}
	if err := s.ctx.Upload(s.tex, img); err != nil {
		return nil, err
	}
	return s.tex, nil
}

func (s *staticSession) ContentSize() (int, int) {
	return s.width, s.height
}

func (s *staticSession) ContentRect() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

func (s *staticSession) Close() error {
	s.tex = nil
	return nil
}
