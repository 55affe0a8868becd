package gpu

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// drain signals and CPU-waits a throwaway fence so every previously
// enqueued command on ctx has executed.
func drain(t *testing.T, dev Device, ctx Context) {
	t.Helper()
	f, err := dev.CreateFence()
	require.NoError(t, err)
	require.NoError(t, ctx.Signal(f, 1))
	f.WaitCPU(1)
}

func TestSoftDevice_UploadCopySnapshot(t *testing.T) {
	require := require.New(t)

	dev := NewSoftwareDevice()
	defer dev.Close()
	ctx, err := dev.NewContext()
	require.NoError(err)

	src, err := dev.CreateTexture(TextureDesc{Width: 8, Height: 8, Format: FormatRGBA8})
	require.NoError(err)
	dst, err := dev.CreateTexture(TextureDesc{Width: 8, Height: 8, Format: FormatRGBA8})
	require.NoError(err)

	in := solidImage(8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(ctx.Upload(src, in))
	require.NoError(ctx.CopyRegion(dst, src, image.Rect(0, 0, 8, 8)))
	drain(t, dev, ctx)

	out, err := dev.Snapshot(dst)
	require.NoError(err)
	assert.Equal(t, in.Pix, out.Pix, "direct copy must be byte-identical")
}

func TestSoftDevice_TransparencyKernel(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	dev := NewSoftwareDevice()
	defer dev.Close()
	ctx, err := dev.NewContext()
	require.NoError(err)

	src, err := dev.CreateTexture(TextureDesc{Width: 4, Height: 1, Format: FormatRGBA8})
	require.NoError(err)
	dst, err := dev.CreateTexture(TextureDesc{Width: 4, Height: 1, Format: FormatRGBA8})
	require.NoError(err)

	in := image.NewRGBA(image.Rect(0, 0, 4, 1))
	in.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	in.SetRGBA(1, 0, color.RGBA{R: 9, G: 9, B: 9, A: 255}) // key color
	in.SetRGBA(2, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	in.SetRGBA(3, 0, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	require.NoError(ctx.Upload(src, in))

	// No key: every pixel gets the configured alpha, RGB untouched.
	require.NoError(ctx.Transparency(dst, src, image.Rect(0, 0, 4, 1), TransparencyParams{Alpha: 0.5}))
	drain(t, dev, ctx)
	out, err := dev.Snapshot(dst)
	require.NoError(err)
	for x := 0; x < 4; x++ {
		want := in.RGBAAt(x, 0)
		got := out.RGBAAt(x, 0)
		assert.Equal(want.R, got.R)
		assert.Equal(want.G, got.G)
		assert.Equal(want.B, got.B)
		assert.Equal(uint8(128), got.A)
	}

	// Keyed: only matching pixels become translucent.
	require.NoError(ctx.Transparency(dst, src, image.Rect(0, 0, 4, 1), TransparencyParams{
		Alpha:  0.25,
		Key:    color.RGBA{R: 9, G: 9, B: 9},
		HasKey: true,
	}))
	drain(t, dev, ctx)
	out, err = dev.Snapshot(dst)
	require.NoError(err)
	assert.Equal(uint8(255), out.RGBAAt(0, 0).A)
	assert.Equal(uint8(64), out.RGBAAt(1, 0).A)
	assert.Equal(uint8(255), out.RGBAAt(2, 0).A)
	assert.Equal(uint8(64), out.RGBAAt(3, 0).A)
}

func TestSoftDevice_FenceOrdersSiblingContexts(t *testing.T) {
	require := require.New(t)

	submission := NewSoftwareDevice()
	defer submission.Close()
	composition, err := submission.Sibling()
	require.NoError(err)
	defer composition.Close()

	subCtx, err := submission.NewContext()
	require.NoError(err)
	compCtx, err := composition.NewContext()
	require.NoError(err)

	// Fence created on the composition device, imported on the submission
	// device via its sharing handle.
	fence, err := composition.CreateFence()
	require.NoError(err)
	handle, err := fence.Handle()
	require.NoError(err)
	subFence, err := submission.ImportFence(handle)
	require.NoError(err)

	// Shared texture: created on submission, imported on composition.
	tex, err := submission.CreateTexture(TextureDesc{Width: 2, Height: 2, Format: FormatRGBA8})
	require.NoError(err)
	texHandle, err := tex.Handle()
	require.NoError(err)
	compTex, err := composition.ImportTexture(texHandle)
	require.NoError(err)

	var value uint64
	for frame := 0; frame < 100; frame++ {
		c := color.RGBA{R: uint8(frame), A: 255}
		require.NoError(compCtx.Upload(compTex, solidImage(2, 2, c)))

		value++
		require.NoError(compCtx.Signal(fence, value))
		require.NoError(subCtx.Wait(subFence, value))

		// The submission-side read (a copy standing in for commit) must
		// observe the composition write of this frame.
		readback, err := submission.CreateTexture(TextureDesc{Width: 2, Height: 2, Format: FormatRGBA8})
		require.NoError(err)
		require.NoError(subCtx.CopyRegion(readback, tex, image.Rect(0, 0, 2, 2)))
		drain(t, submission, subCtx)

		out, err := submission.Snapshot(readback)
		require.NoError(err)
		require.Equal(uint8(frame), out.RGBAAt(0, 0).R, "commit observed a stale composition write")
		require.GreaterOrEqual(fence.Completed(), value)
	}
}

func TestSoftDevice_FenceMonotonic(t *testing.T) {
	f := newSoftFence()
	f.signal(5)
	f.signal(3) // lower values never regress the fence
	assert.Equal(t, uint64(5), f.Completed())
}

func TestSoftDevice_ClosedDeviceRejectsCommands(t *testing.T) {
	require := require.New(t)

	dev := NewSoftwareDevice()
	ctx, err := dev.NewContext()
	require.NoError(err)
	tex, err := dev.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: FormatRGBA8})
	require.NoError(err)

	require.NoError(dev.Close())
	err = ctx.Upload(tex, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrDeviceClosed)
}

func TestSoftDevice_ForeignHandleRejected(t *testing.T) {
	devA := NewSoftwareDevice()
	defer devA.Close()
	devB := NewSoftwareDevice() // different adapter
	defer devB.Close()

	tex, err := devA.CreateTexture(TextureDesc{Width: 1, Height: 1, Format: FormatRGBA8})
	require.NoError(t, err)
	h, err := tex.Handle()
	require.NoError(t, err)

	_, err = devB.ImportTexture(h)
	assert.Error(t, err)
}
