package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/vrdesk/ovrly/internal/gpu"
)

// createCursor builds the static white cursor swapchain. Committed once;
// the cursor layer reuses the same content every frame.
func (m *Manager) createCursor() error {
	size := m.params.CursorBitmapSize
	sc, err := m.caps.CreateSwapchain(m.session, m.submissionDevice, gpu.TextureDesc{
		Width:  size,
		Height: size,
		Format: gpu.FormatRGBA8,
		Label:  "cursor",
	})
	if err != nil {
		return fmt.Errorf("failed to create cursor swapchain: %w", err)
	}

	bitmap := image.NewRGBA(image.Rect(0, 0, size, size))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			bitmap.SetRGBA(x, y, white)
		}
	}

	idx, err := sc.Index()
	if err != nil {
		sc.Destroy()
		return fmt.Errorf("failed to read cursor swapchain index: %w", err)
	}
	tex, err := sc.Texture(idx)
	if err != nil {
		sc.Destroy()
		return fmt.Errorf("failed to fetch cursor buffer: %w", err)
	}
	if err := m.submissionCtx.Upload(tex, bitmap); err != nil {
		sc.Destroy()
		return fmt.Errorf("failed to upload cursor bitmap: %w", err)
	}
	if err := sc.Commit(); err != nil {
		sc.Destroy()
		return fmt.Errorf("failed to commit cursor swapchain: %w", err)
	}

	m.cursorSwapchain = sc
	m.cursorViewport = image.Rect(0, 0, size, size)
	return nil
}
