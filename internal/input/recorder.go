package input

import "sync"

// Event is one recorded pointer injection.
type Event struct {
	Kind   string // "move", "click" or "raise"
	Handle uint64
	X, Y   int
}

// Recorder is a Pointer that records events instead of injecting them.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Move(handle uint64, x, y int) error {
	r.record(Event{Kind: "move", Handle: handle, X: x, Y: y})
	return nil
}

func (r *Recorder) Click(handle uint64, x, y int) error {
	r.record(Event{Kind: "click", Handle: handle, X: x, Y: y})
	return nil
}

func (r *Recorder) Raise(handle uint64) error {
	r.record(Event{Kind: "raise", Handle: handle})
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}
