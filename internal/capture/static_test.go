package capture

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrdesk/ovrly/internal/gpu"
)

func TestStaticSource_NoFrameUntilSet(t *testing.T) {
	dev := gpu.NewSoftwareDevice()
	defer dev.Close()

	src := NewStaticSource()
	sess, err := src.SessionFor(7, false, dev)
	require.NoError(t, err)

	_, err = sess.Surface()
	assert.ErrorIs(t, err, ErrNoFrame)
	w, h := sess.ContentSize()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestStaticSource_ServesAndResizes(t *testing.T) {
	require := require.New(t)

	dev := gpu.NewSoftwareDevice()
	defer dev.Close()

	src := NewStaticSource()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	img.SetRGBA(3, 3, color.RGBA{R: 77, A: 255})
	src.SetFrame(7, img)

	sess, err := src.SessionFor(7, false, dev)
	require.NoError(err)

	tex, err := sess.Surface()
	require.NoError(err)
	assert.Equal(t, 16, tex.Desc().Width)
	w, h := sess.ContentSize()
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)
	assert.Equal(t, image.Rect(0, 0, 16, 8), sess.ContentRect())

	// A larger replacement frame reallocates the staging texture.
	src.SetFrame(7, image.NewRGBA(image.Rect(0, 0, 32, 32)))
	tex2, err := sess.Surface()
	require.NoError(err)
	assert.Equal(t, 32, tex2.Desc().Width)
	assert.Equal(t, 32, tex2.Desc().Height)
}
