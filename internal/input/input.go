// Package input forwards VR cursor interactions to the desktop: pointer
// moves, clicks and raising the targeted window.
package input

// Pointer injects pointer events into a desktop window identified by its
// native handle. Coordinates are window-local pixels.
type Pointer interface {
	// Move positions the pointer inside the window.
	Move(handle uint64, x, y int) error

	// Click presses and releases the primary button at the given position.
	Click(handle uint64, x, y int) error

	// Raise brings the window to the front and gives it input focus.
	Raise(handle uint64) error
}
