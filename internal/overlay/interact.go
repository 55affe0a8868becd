package overlay

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/vrdesk/ovrly/internal/geom"
	"github.com/vrdesk/ovrly/internal/sharedmem"
	"github.com/vrdesk/ovrly/internal/vr"
)

// handleInteractions hit-tests the controller aim rays against the sorted
// overlays (closest first) and runs the gesture state machine on the first
// overlay hit. Overlays scanned without a hit lose click focus.
func (m *Manager) handleInteractions(predictedSeconds float64) error {
	tracking, err := m.caps.Tracking(m.session, predictedSeconds)
	if err != nil {
		return fmt.Errorf("failed to read tracking state: %w", err)
	}
	head := tracking.Head

	var aimLocal, aimView [2]geom.Posef
	var aimValid [2]bool
	headInv := head.Inverse()
	for side := 0; side < 2; side++ {
		if !tracking.HandValid[side] {
			continue
		}
		aimValid[side] = true
		aimLocal[side] = tracking.Hands[side]
		aimView[side] = headInv.Mul(tracking.Hands[side])
	}

	if m.cursorPose != nil {
		m.lastCursorPosition = m.cursorPose.Position
	} else {
		m.lastCursorPosition = mgl32.Vec3{}
	}
	m.cursorPose = nil

	// Closest overlay first; the sorted list is back to front.
	hovering := false
	for k := len(m.sorted) - 1; k >= 0 && m.cursorPose == nil; k-- {
		idx := m.sorted[k]
		s := &m.slots[idx]

		wasHovering := hovering
		if !hovering {
			pw, ph := s.session.ContentSize()
			if pw > 0 && ph > 0 && s.size.X() > 0 && s.size.Y() > 0 {
				// Hit testing is widened by a pixel margin on each edge so
				// the cursor shows slightly outside the content.
				ppmX := float32(pw) / s.size.X()
				ppmY := float32(ph) / s.size.Y()
				expanded := mgl32.Vec2{
					float32(pw+m.params.HitMarginPx*2) / ppmX,
					float32(ph+m.params.HitMarginPx*2) / ppmY,
				}

				// When both hands point at the overlay, keep interacting
				// with the same hand as before.
				side := m.lastSide
				for i := 0; i < 2; i++ {
					if aimValid[side] {
						aim := aimLocal[side]
						if s.placement == sharedmem.HeadLocked {
							aim = aimView[side]
						}

						quad := geom.Quad{
							Center: s.pose,
							Size:   expanded,
						}
						if hit, ok := quad.HitTest(aim); ok {
							controllers := [2]geom.Posef{geom.PoseIdentity(), geom.PoseIdentity()}
							for h := 0; h < 2; h++ {
								if aimValid[h] {
									controllers[h] = aimLocal[h]
								}
							}
							if err := m.handleSlotInteractions(s, side, head, controllers, hit); err != nil {
								return err
							}

							cursor := geom.Pose(s.pose.Orientation, hit.Position)
							m.cursorPose = &cursor
							m.hoveredSlot = idx
							m.lastSide = side
							hovering = true
							break
						}
					}
					side ^= 1
				}
			}
		}

		if wasHovering == hovering {
			s.hasFocus = false
		}
	}

	for side := 0; side < 2; side++ {
		if aimValid[side] {
			m.lastControllerPoses[side] = aimLocal[side]
		}
	}
	m.lastHeadPose = head
	return nil
}

// handleSlotInteractions runs the gesture state machine for the overlay
// under the cursor. Gestures are prioritized: grip gestures (drag, rotate,
// resize, face-camera) first, then minimize toggling, then click-through.
func (m *Manager) handleSlotInteractions(s *slot, side int, head geom.Posef, controllers [2]geom.Posef, hit geom.Posef) error {
	in, err := m.caps.Input(m.session)
	if err != nil {
		return fmt.Errorf("failed to read input state: %w", err)
	}

	wasDragging := m.dragging
	m.dragging = false
	wasResizing := m.resizing
	m.resizing = false

	if !s.frozen {
		wasThumbPressed := m.thumbPressed
		m.thumbPressed = in.Buttons&vr.ThumbButton(vr.Hand(side)) != 0

		if !s.minimized && in.HandTrigger[side] > m.params.GripThreshold {
			if in.HandTrigger[side^1] <= m.params.GripThreshold {
				if m.thumbPressed && !wasThumbPressed {
					// Reorient the overlay to face the viewer.
					s.pose = geom.FaceCamera(s.pose, head)
				} else if in.IndexTrigger[side] > m.params.GripThreshold {
					// One handed grab: drag.
					if wasDragging {
						m.dragSlot(s, side, head, controllers, hit)
					}
					m.dragging = true
				} else {
					// Thumbstick steers yaw and pitch.
					yaw, pitch, _ := geom.YawPitchRoll(s.pose.Orientation)
					yaw += in.Thumbstick[side].X() * float32(2*math.Pi) / 360
					pitch += -in.Thumbstick[side].Y() * float32(2*math.Pi) / 360
					s.pose.Orientation = geom.FromYawPitch(yaw, pitch)
				}
				s.pose = geom.AlignToGravity(s.pose)
			} else {
				// Two handed grab: resize.
				if wasResizing {
					lastLength := m.lastControllerPoses[0].Position.Sub(m.lastControllerPoses[1].Position).Len()
					currentLength := controllers[0].Position.Sub(controllers[1].Position).Len()
					s.scale += currentLength - lastLength
				}
				m.resizing = true
			}

			// No further interactions this frame.
			return nil
		} else if m.thumbPressed && !wasThumbPressed {
			s.minimized = !s.minimized
			if !s.minimized {
				s.pose = geom.AlignToGravity(geom.FaceCamera(s.pose, head))
			}

			// No further interactions this frame.
			return nil
		}
	}

	if !s.minimized && s.interactable {
		// Relocate the hit relative to the content's top-left corner. The
		// margin only widens hovering, not clicking: out-of-content hits
		// fall through here.
		pw, ph := s.session.ContentSize()
		quad := geom.Quad{Center: s.pose, Size: s.size}
		x, y := quad.SurfacePoint(hit.Position, pw, ph)

		if x > 0 && x < pw && y > 0 && y < ph {
			if s.hasFocus {
				if err := m.pointer.Move(s.handle, x, y); err != nil {
					m.log.Debug().Err(err).Uint64("handle", s.handle).Msg("Pointer move failed")
				}
			}

			wasTriggerPressed := m.triggerPressed
			m.triggerPressed = in.IndexTrigger[side] > m.params.GripThreshold

			if m.triggerPressed && !wasTriggerPressed {
				// Make sure the window can receive the click.
				if err := m.pointer.Raise(s.handle); err != nil {
					m.log.Debug().Err(err).Uint64("handle", s.handle).Msg("Raise failed")
				}
				if !s.hasFocus {
					if err := m.pointer.Move(s.handle, x, y); err != nil {
						m.log.Debug().Err(err).Uint64("handle", s.handle).Msg("Pointer move failed")
					}
				}
				s.hasFocus = true

				if err := m.pointer.Click(s.handle, x, y); err != nil {
					m.log.Debug().Err(err).Uint64("handle", s.handle).Msg("Click failed")
				}
			}
		}
	}
	return nil
}

// dragSlot moves the overlay with the cursor, adds push/pull along its
// forward axis from the hand-to-head distance change, clamps the per-frame
// motion and refuses to move past the maximum head distance.
func (m *Manager) dragSlot(s *slot, side int, head geom.Posef, controllers [2]geom.Posef, hit geom.Posef) {
	delta := hit.Position.Sub(m.lastCursorPosition)

	lastDistance := m.lastHeadPose.Position.Sub(m.lastControllerPoses[side].Position).Len()
	distance := head.Position.Sub(controllers[side].Position).Len()
	push := geom.Pose(s.pose.Orientation, mgl32.Vec3{}).
		Transform(mgl32.Vec3{0, 0, (lastDistance - distance) * m.params.DragSensitivity})
	delta = delta.Add(push)

	delta[0] = clamp(delta[0], -m.params.DragClampXY, m.params.DragClampXY)
	delta[1] = clamp(delta[1], -m.params.DragClampXY, m.params.DragClampXY)
	delta[2] = clamp(delta[2], -m.params.DragClampZ, m.params.DragClampZ)

	newPosition := s.pose.Position.Add(delta)
	if newPosition.Sub(head.Position).Len() < m.params.MaxHeadDistance {
		s.pose.Position = newPosition
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
