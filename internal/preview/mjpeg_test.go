package preview

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamer_Lifecycle(t *testing.T) {
	s := NewStreamer()
	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(), "double start is rejected")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(), "stopping twice is harmless")
}

func TestStreamer_WriteFrameRequiresRunning(t *testing.T) {
	s := NewStreamer()
	err := s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.Error(t, err)
}

func TestStreamer_BroadcastsEncodedFrames(t *testing.T) {
	s := NewStreamer()
	require.NoError(t, s.Start())
	defer s.Stop()

	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 32, 16))))

	data := <-ch
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestStreamer_DownscalesWideFrames(t *testing.T) {
	s := NewStreamer()
	require.NoError(t, s.Start())
	defer s.Stop()

	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	require.NoError(t, s.WriteFrame(image.NewRGBA(image.Rect(0, 0, 2560, 1440))))

	img, err := jpeg.Decode(bytes.NewReader(<-ch))
	require.NoError(t, err)
	assert.Equal(t, maxPreviewWidth, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestStreamer_SlowClientSkipsFrames(t *testing.T) {
	s := NewStreamer()
	require.NoError(t, s.Start())
	defer s.Stop()

	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, s.WriteFrame(frame))
	require.NoError(t, s.WriteFrame(frame), "full client buffer must not block")
	assert.Len(t, ch, 1)
}
