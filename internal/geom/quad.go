package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Quad is an oriented rectangle centered on a pose, lying in the pose's
// local XY plane. Size is in meters.
type Quad struct {
	Center Posef
	Size   mgl32.Vec2
}

// corners returns the quad's world-space corners in clockwise order.
func (q Quad) corners() [4]mgl32.Vec3 {
	hw := q.Size.X() / 2
	hh := q.Size.Y() / 2
	return [4]mgl32.Vec3{
		q.Center.Transform(mgl32.Vec3{-hw, -hh, 0}),
		q.Center.Transform(mgl32.Vec3{-hw, hh, 0}),
		q.Center.Transform(mgl32.Vec3{hw, hh, 0}),
		q.Center.Transform(mgl32.Vec3{hw, -hh, 0}),
	}
}

// HitTest intersects a pointing ray with the quad. The ray originates at
// the pose's position and travels along its forward axis. On a hit it
// returns a pose positioned at the intersection point, oriented to face
// back toward the ray across the quad's plane.
func (q Quad) HitTest(ray Posef) (Posef, bool) {
	if q.Size.X() <= 0 || q.Size.Y() <= 0 {
		return Posef{}, false
	}

	v := q.corners()
	dir := ray.Forward()

	// The quad is tested as two coplanar triangles.
	t, hit := rayTriangle(ray.Position, dir, v[0], v[1], v[2])
	if !hit {
		t, hit = rayTriangle(ray.Position, dir, v[3], v[2], v[0])
	}
	if !hit {
		return Posef{}, false
	}

	hitPos := ray.Position.Add(dir.Mul(t))
	normal := v[2].Sub(v[0]).Cross(v[1].Sub(v[0])).Normalize()

	// Project the ray origin onto the quad's plane, then look from the
	// projected point toward the hit with the plane normal as up.
	d := -normal.Dot(v[0])
	dist := normal.Dot(ray.Position) + d
	proj := ray.Position.Sub(normal.Mul(dist))
	forward := hitPos.Sub(proj)

	if pose, ok := LookTo(hitPos, forward, normal); ok {
		return pose, true
	}
	// Perpendicular ray: the projected origin coincides with the hit, so
	// face straight back along the plane normal instead.
	if pose, ok := LookTo(hitPos, normal.Mul(-1), mgl32.Vec3{0, 1, 0}); ok {
		return pose, true
	}
	return Pose(q.Center.Orientation, hitPos), true
}

// rayTriangle is a double-sided Moeller-Trumbore ray/triangle intersection.
// It returns the distance along the ray and whether the triangle was hit.
func rayTriangle(orig, dir, a, b, c mgl32.Vec3) (float32, bool) {
	const eps = 1e-7

	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	invDet := 1 / det

	tv := orig.Sub(a)
	u := tv.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	qv := tv.Cross(e1)
	v := dir.Dot(qv) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := e2.Dot(qv) * invDet
	if t < 0 {
		return 0, false
	}
	return t, true
}

// UV maps a world-space point on the quad's plane to normalized surface
// coordinates, (0,0) at one corner and (1,1) at the opposite one. The
// mapping uses the quad's local basis vectors, so it is valid for any
// orientation.
func (q Quad) UV(point mgl32.Vec3) mgl32.Vec2 {
	const eps = 1e-6

	normal := q.Center.Orientation.Rotate(mgl32.Vec3{0, 0, 1})

	e1 := normal.Cross(mgl32.Vec3{1, 0, 0})
	if e1.Len() < eps {
		e1 = normal.Cross(mgl32.Vec3{0, 0, 1})
	}
	e1 = e1.Normalize()
	e2 := normal.Cross(e1).Normalize()

	d := point.Sub(q.Center.Position)
	u := (-e2.Dot(d) + q.Size.X()/2) / q.Size.X()
	v := (-e1.Dot(d) + q.Size.Y()/2) / q.Size.Y()
	return mgl32.Vec2{u, v}
}

// SurfacePoint converts a world-space point on the quad to pixel
// coordinates on a captured surface of the given pixel size.
func (q Quad) SurfacePoint(point mgl32.Vec3, pxWidth, pxHeight int) (int, int) {
	uv := q.UV(point)
	return int(uv.X() * float32(pxWidth)), int(uv.Y() * float32(pxHeight))
}
