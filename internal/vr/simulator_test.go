package vr

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/gpu"
)

func TestSimulator_TableRoundTrip(t *testing.T) {
	sim := NewSimulator()
	caps := sim.Table()

	tracking, err := caps.Tracking(sim, 0.011)
	require.NoError(t, err)
	assert.False(t, tracking.HandValid[HandRight])

	want := TrackingState{
		Head:      geom.Pose(mgl32.QuatIdent(), mgl32.Vec3{0, 1.6, 0}),
		HandValid: [2]bool{false, true},
	}
	sim.SetTracking(want)
	tracking, err = caps.Tracking(sim, 0.011)
	require.NoError(t, err)
	assert.Equal(t, want.Head.Position, tracking.Head.Position)
	assert.True(t, tracking.HandValid[HandRight])

	sim.SetInput(InputState{Buttons: ButtonRightThumb, HandTrigger: [2]float32{0, 0.9}})
	in, err := caps.Input(sim)
	require.NoError(t, err)
	assert.NotZero(t, in.Buttons&ThumbButton(HandRight))
	assert.Zero(t, in.Buttons&ThumbButton(HandLeft))
	assert.InDelta(t, 0.9, in.HandTrigger[HandRight], 1e-6)
}

func TestSimSwapchain_RingAdvancesOnCommit(t *testing.T) {
	sim := NewSimulator()
	dev := gpu.NewSoftwareDevice()
	defer dev.Close()

	sc, err := sim.Table().CreateSwapchain(sim, dev, gpu.TextureDesc{
		Width: 8, Height: 8, Format: gpu.FormatRGBA8, Label: "test",
	})
	require.NoError(t, err)
	defer sc.Destroy()

	assert.Equal(t, simSwapchainLen, sc.Len())

	for i := 0; i < sc.Len()+1; i++ {
		idx, err := sc.Index()
		require.NoError(t, err)
		assert.Equal(t, i%sc.Len(), idx)

		_, err = sc.Texture(idx)
		require.NoError(t, err)
		require.NoError(t, sc.Commit())
	}
	assert.Equal(t, simSwapchainLen+1, Commits(sc))
}

func TestSimSwapchain_RejectsUnknownFormat(t *testing.T) {
	sim := NewSimulator()
	dev := gpu.NewSoftwareDevice()
	defer dev.Close()

	_, err := sim.Table().CreateSwapchain(sim, dev, gpu.TextureDesc{Width: 8, Height: 8})
	assert.ErrorIs(t, err, ErrFormatUnsupported)
}

func TestSimSwapchain_DestroyedRejectsUse(t *testing.T) {
	sim := NewSimulator()
	dev := gpu.NewSoftwareDevice()
	defer dev.Close()

	sc, err := sim.Table().CreateSwapchain(sim, dev, gpu.TextureDesc{
		Width: 8, Height: 8, Format: gpu.FormatRGBA8,
	})
	require.NoError(t, err)

	sc.Destroy()
	_, err = sc.Index()
	assert.Error(t, err)
	assert.Error(t, sc.Commit())
}
