package vr

import (
	"fmt"
	"sync"

	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/gpu"
)

// Simulator is an in-memory runtime for the --simulate host loop and tests.
// Tracking and input are whatever the caller last set, so scripted gesture
// sequences play back deterministically.
type Simulator struct {
	mu       sync.Mutex
	tracking TrackingState
	input    InputState
}

// NewSimulator creates a simulator with the head at the origin looking down
// -Z and no valid hands.
func NewSimulator() *Simulator {
	return &Simulator{
		tracking: TrackingState{
			Head:  geom.PoseIdentity(),
			Hands: [2]geom.Posef{geom.PoseIdentity(), geom.PoseIdentity()},
		},
	}
}

// SetTracking installs the tracking state returned to the engine.
func (s *Simulator) SetTracking(t TrackingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracking = t
}

// SetInput installs the input state returned to the engine.
func (s *Simulator) SetInput(in InputState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = in
}

// Table returns a capability table backed by this simulator. The session
// argument is ignored; the simulator is its own session.
func (s *Simulator) Table() CapabilityTable {
	return CapabilityTable{
		CreateSwapchain: func(_ Session, dev gpu.Device, desc gpu.TextureDesc) (Swapchain, error) {
			return newSimSwapchain(dev, desc)
		},
		Tracking: func(_ Session, _ float64) (TrackingState, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.tracking, nil
		},
		Input: func(_ Session) (InputState, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.input, nil
		},
	}
}

const simSwapchainLen = 3

// simSwapchain is a triple-buffered swapchain allocated on the caller's
// device. Commit advances the ring.
type simSwapchain struct {
	mu       sync.Mutex
	textures []gpu.Texture
	index    int
	commits  int
}

func newSimSwapchain(dev gpu.Device, desc gpu.TextureDesc) (Swapchain, error) {
	if desc.Format == gpu.FormatUnknown {
		return nil, ErrFormatUnsupported
	}
	sc := &simSwapchain{}
	for i := 0; i < simSwapchainLen; i++ {
		tex, err := dev.CreateTexture(desc)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate swapchain buffer %d: %w", i, err)
		}
		sc.textures = append(sc.textures, tex)
	}
	return sc, nil
}

func (sc *simSwapchain) Len() int { return len(sc.textures) }

func (sc *simSwapchain) Index() (int, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.textures == nil {
		return 0, fmt.Errorf("swapchain destroyed")
	}
	return sc.index, nil
}

func (sc *simSwapchain) Texture(i int) (gpu.Texture, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if i < 0 || i >= len(sc.textures) {
		return nil, fmt.Errorf("swapchain buffer %d out of range", i)
	}
	return sc.textures[i], nil
}

func (sc *simSwapchain) Commit() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.textures == nil {
		return fmt.Errorf("swapchain destroyed")
	}
	sc.index = (sc.index + 1) % len(sc.textures)
	sc.commits++
	return nil
}

func (sc *simSwapchain) Destroy() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.textures = nil
}

// Commits reports how many times a simulator swapchain was committed. Test
// helper; returns -1 for foreign swapchains.
func Commits(sc Swapchain) int {
	s, ok := sc.(*simSwapchain)
	if !ok {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}
