// Package geom provides float32 pose math for overlay placement, pointing
// and hit testing. Conventions follow the VR runtime: right-handed, +Y up,
// -Z forward.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Posef is a rigid transform: an orientation quaternion plus a position.
type Posef struct {
	Orientation mgl32.Quat
	Position    mgl32.Vec3
}

// PoseIdentity returns the identity pose.
func PoseIdentity() Posef {
	return Posef{Orientation: mgl32.QuatIdent()}
}

// Pose builds a pose from an orientation and a position.
func Pose(orientation mgl32.Quat, position mgl32.Vec3) Posef {
	return Posef{Orientation: orientation, Position: position}
}

// Transform applies the pose to a point.
func (p Posef) Transform(v mgl32.Vec3) mgl32.Vec3 {
	return p.Orientation.Rotate(v).Add(p.Position)
}

// Mul composes two poses: the result applies o first, then p.
func (p Posef) Mul(o Posef) Posef {
	return Posef{
		Orientation: p.Orientation.Mul(o.Orientation).Normalize(),
		Position:    p.Transform(o.Position),
	}
}

// Inverse returns the pose mapping p's target space back to its source space.
func (p Posef) Inverse() Posef {
	inv := p.Orientation.Inverse()
	return Posef{
		Orientation: inv,
		Position:    inv.Rotate(p.Position.Mul(-1)),
	}
}

// Forward returns the pose's forward axis (-Z rotated by its orientation).
func (p Posef) Forward() mgl32.Vec3 {
	return p.Orientation.Rotate(mgl32.Vec3{0, 0, -1})
}

// IsNaN reports whether any component of the pose is not-a-number. A NaN
// pose is the shared-state sentinel for "never placed".
func (p Posef) IsNaN() bool {
	for _, f := range []float32{
		p.Orientation.V[0], p.Orientation.V[1], p.Orientation.V[2], p.Orientation.W,
		p.Position[0], p.Position[1], p.Position[2],
	} {
		if math.IsNaN(float64(f)) {
			return true
		}
	}
	return false
}

// YawPitchRoll decomposes an orientation into yaw (about +Y), pitch (about
// +X) and roll (about +Z), such that the orientation equals
// FromYawPitch(yaw, pitch) composed with a roll about +Z.
func YawPitchRoll(q mgl32.Quat) (yaw, pitch, roll float32) {
	m := q.Normalize().Mat4()
	sp := -m.At(1, 2)
	if sp > 1 {
		sp = 1
	} else if sp < -1 {
		sp = -1
	}
	pitch = float32(math.Asin(float64(sp)))
	yaw = float32(math.Atan2(float64(m.At(0, 2)), float64(m.At(2, 2))))
	roll = float32(math.Atan2(float64(m.At(1, 0)), float64(m.At(1, 1))))
	return yaw, pitch, roll
}

// FromYawPitch rebuilds an orientation from yaw and pitch with zero roll.
func FromYawPitch(yaw, pitch float32) mgl32.Quat {
	qy := mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
	qx := mgl32.QuatRotate(pitch, mgl32.Vec3{1, 0, 0})
	return qy.Mul(qx).Normalize()
}

// AlignToGravity strips roll from the pose so its up axis matches the
// room's vertical, preserving yaw and pitch.
func AlignToGravity(p Posef) Posef {
	yaw, pitch, _ := YawPitchRoll(p.Orientation)
	p.Orientation = FromYawPitch(yaw, pitch)
	return p
}

// FaceCamera re-orients the pose so its +Z axis points back at the head
// position, keeping the position unchanged. A degenerate geometry (pose on
// top of the head) leaves the pose untouched.
func FaceCamera(p Posef, head Posef) Posef {
	dir := p.Position.Sub(head.Position)
	if faced, ok := LookTo(p.Position, dir, mgl32.Vec3{0, 1, 0}); ok {
		return faced
	}
	return p
}

// LookTo builds a pose at eye whose -Z axis points along dir with the
// given up hint. It reports false for degenerate input (zero direction or
// direction parallel to up) instead of producing a malformed orientation.
func LookTo(eye, dir, up mgl32.Vec3) (Posef, bool) {
	const eps = 1e-6
	if dir.Len() < eps {
		return Posef{}, false
	}
	zaxis := dir.Normalize().Mul(-1)
	xaxis := up.Cross(zaxis)
	if xaxis.Len() < eps {
		return Posef{}, false
	}
	xaxis = xaxis.Normalize()
	yaxis := zaxis.Cross(xaxis)

	m := mgl32.Mat4{
		xaxis[0], xaxis[1], xaxis[2], 0,
		yaxis[0], yaxis[1], yaxis[2], 0,
		zaxis[0], zaxis[1], zaxis[2], 0,
		0, 0, 0, 1,
	}
	return Posef{
		Orientation: mgl32.Mat4ToQuat(m).Normalize(),
		Position:    eye,
	}, true
}
