package sharedmem

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrdesk/ovrly/internal/geom"
)

func testRegion(t *testing.T) (string, *Store) {
	t.Helper()
	name := fmt.Sprintf("ovrly-test-%d-%s", os.Getpid(), t.Name())
	s, err := Create(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		Remove(name)
	})
	return name, s
}

func TestOpen_MissingRegionIsUnavailable(t *testing.T) {
	_, err := Open("ovrly-test-region-that-does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStore_RoundTrip(t *testing.T) {
	assert := assert.New(t)
	_, s := testRegion(t)

	d := Descriptor{
		Handle:         0xdeadbeef,
		Pose:           geom.Pose(mgl32.QuatRotate(0.5, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{1, 1.5, -2}),
		Scale:          1.25,
		IsMonitor:      true,
		Opacity:        60,
		Placement:      HeadLocked,
		IsInteractable: true,
		IsFrozen:       false,
		IsMinimized:    true,
	}
	s.WriteDescriptor(2, d)

	got := s.Read(2)
	assert.Equal(d, got)

	// Other slots untouched.
	assert.Equal(uint64(0), s.Read(0).Handle)
	assert.Equal(uint64(0), s.Read(3).Handle)
}

// TestStore_ByteLayout pins the shared record layout: the configuration
// writer is a separate process, so these offsets must never move.
func TestStore_ByteLayout(t *testing.T) {
	assert := assert.New(t)
	_, s := testRegion(t)

	d := NewDescriptor(0x1122334455667788, false)
	d.Pose = geom.Pose(mgl32.Quat{W: 1}, mgl32.Vec3{0, 0, -1})
	d.Scale = 2
	d.Opacity = 100
	d.Placement = HeadLocked
	s.WriteDescriptor(1, d)

	rec := s.data[recordSize : 2*recordSize]
	assert.Equal(uint64(0x1122334455667788), binary.LittleEndian.Uint64(rec[0:]))
	// Orientation (x, y, z, w) at offset 8.
	assert.Equal(float32(0), math.Float32frombits(binary.LittleEndian.Uint32(rec[8:])))
	assert.Equal(float32(1), math.Float32frombits(binary.LittleEndian.Uint32(rec[20:])))
	// Position at offset 24; z = -1.
	assert.Equal(float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(rec[32:])))
	// Scale at offset 36.
	assert.Equal(float32(2), math.Float32frombits(binary.LittleEndian.Uint32(rec[36:])))
	assert.Equal(byte(0), rec[40])   // isMonitor
	assert.Equal(byte(100), rec[41]) // opacity
	assert.Equal(byte(1), rec[42])   // placement
	assert.Equal(byte(1), rec[43])   // isInteractable
	assert.Equal(byte(0), rec[44])   // isFrozen
	assert.Equal(byte(0), rec[45])   // isMinimized

	assert.Equal(48, recordSize)
	assert.Equal(192, regionSize)
}

func TestNewDescriptor_NaNPoseSentinel(t *testing.T) {
	d := NewDescriptor(42, true)
	assert.True(t, d.Pose.IsNaN())
	assert.Equal(t, float32(1), d.Scale)
	assert.Equal(t, uint8(100), d.Opacity)
	assert.True(t, d.IsInteractable)
}

func TestStore_PlacementOutOfRangeFallsBack(t *testing.T) {
	_, s := testRegion(t)
	s.record(0)[offPlacement] = 7
	assert.Equal(t, WorldLocked, s.Read(0).Placement)
}

// TestStore_ConcurrentWriterReader races a writer mapping against a reader
// mapping of the same region, mirroring the cross-process setup. The store
// is lock-free: the property under test is "no crash, stale data
// tolerated", not consistency.
func TestStore_ConcurrentWriterReader(t *testing.T) {
	name, writer := testRegion(t)

	reader, err := Open(name)
	require.NoError(t, err)
	defer reader.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			d := NewDescriptor(uint64(i+1), false)
			d.Pose = geom.Pose(mgl32.Quat{W: 1}, mgl32.Vec3{float32(i), 0, 0})
			d.Scale = float32(i) * 0.001
			writer.WriteDescriptor(i%OverlayCount, d)
		}
	}()

	for i := 0; i < 5000; i++ {
		d := reader.Read(i % OverlayCount)
		// Whatever was observed must be one of the writer's value domains,
		// possibly torn; only absence of panics and of impossible flag
		// bytes is asserted.
		assert.LessOrEqual(t, d.Opacity, uint8(100))
	}
	<-done
}
