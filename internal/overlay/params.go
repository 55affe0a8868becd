package overlay

// Params holds the interaction and presentation tunables.
type Params struct {
	// GripThreshold is the analog trigger value above which a trigger
	// counts as pressed.
	GripThreshold float32

	// HitMarginPx widens hit testing by this many pixels on each edge so
	// the cursor appears slightly outside the content.
	HitMarginPx int

	// DragSensitivity scales push/pull motion along the overlay's forward
	// axis while dragging.
	DragSensitivity float32

	// DragClampXY and DragClampZ bound per-frame drag motion in meters.
	DragClampXY float32
	DragClampZ  float32

	// MaxHeadDistance is how far from the head an overlay may be dragged.
	MaxHeadDistance float32

	// MinimizedIconSize is the edge length of a minimized overlay, meters.
	MinimizedIconSize float32

	// CursorSize is the edge length of the cursor quad, meters.
	CursorSize float32

	// CursorBitmapSize is the pixel edge length of the cursor texture.
	CursorBitmapSize int
}

// DefaultParams returns the stock tunables.
func DefaultParams() Params {
	return Params{
		GripThreshold:     0.75,
		HitMarginPx:       50,
		DragSensitivity:   0.25,
		DragClampXY:       0.02,
		DragClampZ:        0.01,
		MaxHeadDistance:   10,
		MinimizedIconSize: 0.1,
		CursorSize:        0.01,
		CursorBitmapSize:  32,
	}
}
