package overlay

import (
	"errors"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vrdesk/ovrly/internal/capture"
	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/gpu"
	"github.com/vrdesk/ovrly/internal/sharedmem"
	"github.com/vrdesk/ovrly/internal/vr"
)

// composite refreshes every valid slot: poll the capture surface, size the
// swapchain to it, and copy the content in, applying transparency when the
// overlay is not fully opaque. Runs entirely on the composition context.
func (m *Manager) composite() {
	for i := range m.slots {
		s := &m.slots[i]
		if !s.valid() {
			continue
		}

		surface, err := s.session.Surface()
		if err != nil {
			if !errors.Is(err, capture.ErrNoFrame) {
				m.log.Debug().Err(err).Int("slot", i).Msg("Capture surface unavailable")
			}
			continue
		}
		desc := surface.Desc()
		if desc.Format == gpu.FormatUnknown {
			continue
		}

		if s.swapchain == nil || s.swapchainW != desc.Width || s.swapchainH != desc.Height {
			if err := m.recreateSwapchain(i, s, desc); err != nil {
				continue
			}
		}

		rect := s.session.ContentRect()
		idx, err := s.swapchain.Index()
		if err != nil {
			m.log.Warn().Err(err).Int("slot", i).Msg("Swapchain index unavailable")
			continue
		}
		dst := s.compositionImages[idx]

		if s.opacity >= 0.9999 {
			err = m.compositionCtx.CopyRegion(dst, surface, rect)
		} else {
			err = m.compositionCtx.Transparency(dst, surface, rect, gpu.TransparencyParams{
				Alpha: s.opacity,
			})
		}
		if err != nil {
			m.log.Warn().Err(err).Int("slot", i).Msg("Composition copy failed")
			continue
		}

		s.viewport = image.Rect(0, 0, rect.Dx(), rect.Dy())
		if !s.minimized {
			s.size = mgl32.Vec2{
				s.scale,
				s.scale * float32(s.viewport.Dy()) / float32(s.viewport.Dx()),
			}
		} else {
			s.size = mgl32.Vec2{m.params.MinimizedIconSize, m.params.MinimizedIconSize}
		}

		// Minimized world-locked overlays billboard toward the viewer.
		if s.minimized && s.placement != sharedmem.HeadLocked {
			s.pose = geom.AlignToGravity(geom.FaceCamera(s.pose, m.lastHeadPose))
		}
	}
}

// recreateSwapchain replaces a slot's swapchain to match the capture
// surface size and imports every buffer on the composition device. A format
// the runtime rejects skips the slot instead of failing the frame.
func (m *Manager) recreateSwapchain(i int, s *slot, desc gpu.TextureDesc) error {
	if s.swapchain != nil {
		s.swapchain.Destroy()
		s.swapchain = nil
	}
	s.compositionImages = nil

	sc, err := m.caps.CreateSwapchain(m.session, m.submissionDevice, gpu.TextureDesc{
		Width:  desc.Width,
		Height: desc.Height,
		Format: desc.Format,
		Label:  "overlay-content",
	})
	if err != nil {
		if errors.Is(err, vr.ErrFormatUnsupported) {
			m.log.Warn().
				Int("slot", i).
				Stringer("format", desc.Format).
				Msg("Runtime rejected swapchain format")
		} else {
			m.log.Error().Err(err).Int("slot", i).Msg("Failed to create swapchain")
		}
		return err
	}

	images := make([]gpu.Texture, 0, sc.Len())
	for j := 0; j < sc.Len(); j++ {
		tex, err := sc.Texture(j)
		if err != nil {
			sc.Destroy()
			m.log.Error().Err(err).Int("slot", i).Msg("Failed to fetch swapchain buffer")
			return err
		}
		handle, err := tex.Handle()
		if err != nil {
			sc.Destroy()
			m.log.Error().Err(err).Int("slot", i).Msg("Failed to share swapchain buffer")
			return err
		}
		imported, err := m.compositionDevice.ImportTexture(handle)
		if err != nil {
			sc.Destroy()
			m.log.Error().Err(err).Int("slot", i).Msg("Failed to import swapchain buffer")
			return err
		}
		images = append(images, imported)
	}

	s.swapchain = sc
	s.compositionImages = images
	s.swapchainW = desc.Width
	s.swapchainH = desc.Height
	return nil
}
