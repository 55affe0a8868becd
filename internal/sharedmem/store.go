// Package sharedmem exposes the overlay descriptor array shared with the
// external configuration process. The region is a fixed-size array of
// OverlayCount fixed-layout records mapped at a well-known name; both sides
// read and write it without locks, and field-level tearing is tolerated
// (stale or mixed values self-heal on the next frame).
package sharedmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sys/unix"

	"github.com/vrdesk/ovrly/internal/geom"
)

// OverlayCount is the number of overlay slots in the shared region.
const OverlayCount = 4

// DefaultName is the well-known shared region name.
const DefaultName = "ovrly.OverlayState"

// Record layout, little-endian, 48-byte stride. This layout is load-bearing
// for interop with the configuration writer and must remain byte-stable.
const (
	offHandle       = 0  // uint64
	offOrientation  = 8  // 4 x float32 (x, y, z, w)
	offPosition     = 24 // 3 x float32
	offScale        = 36 // float32
	offIsMonitor    = 40 // uint8
	offOpacity      = 41 // uint8
	offPlacement    = 42 // uint8
	offInteractable = 43 // uint8
	offFrozen       = 44 // uint8
	offMinimized    = 45 // uint8

	recordSize = 48
	regionSize = OverlayCount * recordSize
)

// ErrUnavailable reports that the shared region could not be mapped. The
// engine treats this as a fail-soft condition, not a fatal error.
var ErrUnavailable = errors.New("overlay state region unavailable")

// Placement selects how an overlay is anchored in the scene.
type Placement uint8

const (
	// WorldLocked overlays stay fixed in the room.
	WorldLocked Placement = iota
	// HeadLocked overlays move rigidly with the viewer's head.
	HeadLocked
)

// Descriptor is one overlay slot's shared configuration record.
type Descriptor struct {
	Handle         uint64
	Pose           geom.Posef
	Scale          float32
	IsMonitor      bool
	Opacity        uint8 // 0-100 percent
	Placement      Placement
	IsInteractable bool
	IsFrozen       bool
	IsMinimized    bool
}

// NewDescriptor returns a descriptor for a freshly assigned handle: NaN
// pose (the "never placed" sentinel), unit scale, fully opaque,
// world-locked and interactable.
func NewDescriptor(handle uint64, isMonitor bool) Descriptor {
	nan := float32(math.NaN())
	return Descriptor{
		Handle:         handle,
		Pose:           geom.Pose(mgl32.Quat{W: nan, V: mgl32.Vec3{nan, nan, nan}}, mgl32.Vec3{nan, nan, nan}),
		Scale:          1,
		IsMonitor:      isMonitor,
		Opacity:        100,
		Placement:      WorldLocked,
		IsInteractable: true,
	}
}

// Store is a mapped view of the shared overlay state region.
type Store struct {
	file *os.File
	data []byte
}

func regionPath(name string) string {
	return filepath.Join("/dev/shm", name)
}

// Open maps an existing shared region. A missing or unmappable region
// returns an error wrapping ErrUnavailable.
func Open(name string) (*Store, error) {
	f, err := os.OpenFile(regionPath(name), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return mapRegion(f)
}

// Create creates (or opens) the shared region, sizing it for OverlayCount
// records. Used by the configuration writer side.
func Create(name string) (*Store, error) {
	f, err := os.OpenFile(regionPath(name), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := f.Truncate(regionSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncate: %v", ErrUnavailable, err)
	}
	return mapRegion(f)
}

// Remove unlinks the shared region.
func Remove(name string) error {
	return os.Remove(regionPath(name))
}

func mapRegion(f *os.File) (*Store, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, regionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap: %v", ErrUnavailable, err)
	}
	return &Store{file: f, data: data}, nil
}

// Close unmaps the region.
func (s *Store) Close() error {
	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			return fmt.Errorf("munmap overlay state: %w", err)
		}
		s.data = nil
	}
	return s.file.Close()
}

func (s *Store) record(slot int) []byte {
	return s.data[slot*recordSize : (slot+1)*recordSize]
}

// Read returns slot's descriptor. Placement values outside the known range
// fall back to WorldLocked so a torn or corrupt record stays usable.
func (s *Store) Read(slot int) Descriptor {
	rec := s.record(slot)
	d := Descriptor{
		Handle: binary.LittleEndian.Uint64(rec[offHandle:]),
		Pose: geom.Pose(
			mgl32.Quat{
				V: mgl32.Vec3{
					getF32(rec, offOrientation),
					getF32(rec, offOrientation+4),
					getF32(rec, offOrientation+8),
				},
				W: getF32(rec, offOrientation+12),
			},
			mgl32.Vec3{
				getF32(rec, offPosition),
				getF32(rec, offPosition+4),
				getF32(rec, offPosition+8),
			},
		),
		Scale:          getF32(rec, offScale),
		IsMonitor:      rec[offIsMonitor] != 0,
		Opacity:        rec[offOpacity],
		Placement:      Placement(rec[offPlacement]),
		IsInteractable: rec[offInteractable] != 0,
		IsFrozen:       rec[offFrozen] != 0,
		IsMinimized:    rec[offMinimized] != 0,
	}
	if d.Placement > HeadLocked {
		d.Placement = WorldLocked
	}
	return d
}

// WritePose stores the engine-owned pose fields for slot.
func (s *Store) WritePose(slot int, p geom.Posef) {
	rec := s.record(slot)
	putF32(rec, offOrientation, p.Orientation.V[0])
	putF32(rec, offOrientation+4, p.Orientation.V[1])
	putF32(rec, offOrientation+8, p.Orientation.V[2])
	putF32(rec, offOrientation+12, p.Orientation.W)
	putF32(rec, offPosition, p.Position[0])
	putF32(rec, offPosition+4, p.Position[1])
	putF32(rec, offPosition+8, p.Position[2])
}

// WriteScale stores the engine-owned scale field for slot.
func (s *Store) WriteScale(slot int, scale float32) {
	putF32(s.record(slot), offScale, scale)
}

// WriteMinimized stores the engine-owned minimized flag for slot.
func (s *Store) WriteMinimized(slot int, minimized bool) {
	s.record(slot)[offMinimized] = boolByte(minimized)
}

// WriteDescriptor stores a full descriptor. Used by the configuration
// writer; the engine itself only writes pose, scale and minimized.
func (s *Store) WriteDescriptor(slot int, d Descriptor) {
	rec := s.record(slot)
	binary.LittleEndian.PutUint64(rec[offHandle:], d.Handle)
	s.WritePose(slot, d.Pose)
	putF32(rec, offScale, d.Scale)
	rec[offIsMonitor] = boolByte(d.IsMonitor)
	rec[offOpacity] = d.Opacity
	rec[offPlacement] = uint8(d.Placement)
	rec[offInteractable] = boolByte(d.IsInteractable)
	rec[offFrozen] = boolByte(d.IsFrozen)
	rec[offMinimized] = boolByte(d.IsMinimized)
}

// ClearHandle marks slot empty. The engine releases the slot's resources
// on its next lifecycle scan.
func (s *Store) ClearHandle(slot int) {
	binary.LittleEndian.PutUint64(s.record(slot)[offHandle:], 0)
}

func getF32(rec []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(rec[off:]))
}

func putF32(rec []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
