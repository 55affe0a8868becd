package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPose_ComposeAndInverse(t *testing.T) {
	assert := assert.New(t)

	a := Pose(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{1, 2, 3})
	b := Pose(mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{1, 0, 0}), mgl32.Vec3{-1, 0, 0.5})
	v := mgl32.Vec3{0.3, -0.7, 1.1}

	// (a*b)(v) == a(b(v))
	got := a.Mul(b).Transform(v)
	want := a.Transform(b.Transform(v))
	for i := 0; i < 3; i++ {
		assert.InDelta(want[i], got[i], 1e-5)
	}

	// a^-1(a(v)) == v
	back := a.Inverse().Transform(a.Transform(v))
	for i := 0; i < 3; i++ {
		assert.InDelta(v[i], back[i], 1e-5)
	}
}

func TestYawPitchRoll_Roundtrip(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct{ yaw, pitch float32 }{
		{0, 0},
		{0.5, 0},
		{0, -0.4},
		{1.2, 0.3},
		{-2.5, -0.9},
	} {
		q := FromYawPitch(tc.yaw, tc.pitch)
		yaw, pitch, roll := YawPitchRoll(q)
		assert.InDelta(tc.yaw, yaw, 1e-4, "yaw")
		assert.InDelta(tc.pitch, pitch, 1e-4, "pitch")
		assert.InDelta(0, roll, 1e-4, "roll")
	}
}

func TestAlignToGravity_StripsRoll(t *testing.T) {
	assert := assert.New(t)

	rolled := mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}).
		Mul(mgl32.QuatRotate(-0.3, mgl32.Vec3{1, 0, 0})).
		Mul(mgl32.QuatRotate(0.5, mgl32.Vec3{0, 0, 1}))
	p := AlignToGravity(Pose(rolled, mgl32.Vec3{}))

	yaw, pitch, roll := YawPitchRoll(p.Orientation)
	assert.InDelta(0.7, yaw, 1e-4)
	assert.InDelta(-0.3, pitch, 1e-4)
	assert.InDelta(0, roll, 1e-4)
}

func TestFaceCamera(t *testing.T) {
	assert := assert.New(t)

	head := PoseIdentity()
	p := Pose(mgl32.QuatRotate(1.3, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{0, 0, -2})
	faced := FaceCamera(p, head)

	// Position unchanged, +Z axis pointing back at the head.
	assert.Equal(p.Position, faced.Position)
	toward := faced.Orientation.Rotate(mgl32.Vec3{0, 0, 1})
	want := head.Position.Sub(p.Position).Normalize()
	for i := 0; i < 3; i++ {
		assert.InDelta(want[i], toward[i], 1e-5)
	}

	// Degenerate: pose exactly on the head keeps its orientation.
	onHead := Pose(p.Orientation, head.Position)
	assert.Equal(onHead, FaceCamera(onHead, head))
}

func TestQuad_HitTest_PerpendicularCenterRay(t *testing.T) {
	require := require.New(t)

	quad := Quad{Center: PoseIdentity(), Size: mgl32.Vec2{1, 0.5}}
	ray := Pose(mgl32.QuatIdent(), mgl32.Vec3{0, 0, 3})

	hit, ok := quad.HitTest(ray)
	require.True(ok)
	for i := 0; i < 3; i++ {
		require.InDelta(0, hit.Position[i], 1e-5)
	}
}

func TestQuad_HitTest_ParallelRayNeverHits(t *testing.T) {
	quad := Quad{Center: PoseIdentity(), Size: mgl32.Vec2{1, 1}}

	// Ray travelling in the quad's plane, offset in front of it.
	ray := Pose(mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}), mgl32.Vec3{5, 0, 1})
	_, ok := quad.HitTest(ray)
	assert.False(t, ok)
}

func TestQuad_HitTest_OffCenterAndMiss(t *testing.T) {
	assert := assert.New(t)

	quad := Quad{Center: PoseIdentity(), Size: mgl32.Vec2{2, 1}}

	// Aim at a point inside the top-right quadrant.
	target := mgl32.Vec3{0.8, 0.4, 0}
	origin := mgl32.Vec3{0, 0, 2}
	look, ok := LookTo(origin, target.Sub(origin), mgl32.Vec3{0, 1, 0})
	assert.True(ok)

	hit, ok := quad.HitTest(look)
	assert.True(ok)
	for i := 0; i < 3; i++ {
		assert.InDelta(target[i], hit.Position[i], 1e-4)
	}

	// Just outside the right edge.
	miss := mgl32.Vec3{1.1, 0, 0}
	look, ok = LookTo(origin, miss.Sub(origin), mgl32.Vec3{0, 1, 0})
	assert.True(ok)
	_, ok = quad.HitTest(look)
	assert.False(ok)
}

func TestQuad_HitTest_ZeroSize(t *testing.T) {
	quad := Quad{Center: PoseIdentity()}
	_, ok := quad.HitTest(Pose(mgl32.QuatIdent(), mgl32.Vec3{0, 0, 1}))
	assert.False(t, ok)
}

func TestQuad_UVMapping(t *testing.T) {
	assert := assert.New(t)

	quad := Quad{Center: PoseIdentity(), Size: mgl32.Vec2{2, 1}}

	center := quad.UV(mgl32.Vec3{0, 0, 0})
	assert.InDelta(0.5, center.X(), 1e-5)
	assert.InDelta(0.5, center.Y(), 1e-5)

	// +X edge maps to u=1; +Y (top) edge maps to v=0 (pixel rows grow down).
	right := quad.UV(mgl32.Vec3{1, 0, 0})
	assert.InDelta(1, right.X(), 1e-5)
	top := quad.UV(mgl32.Vec3{0, 0.5, 0})
	assert.InDelta(0, top.Y(), 1e-5)

	x, y := quad.SurfacePoint(mgl32.Vec3{0, 0, 0}, 800, 600)
	assert.Equal(400, x)
	assert.Equal(300, y)
}

func TestPose_IsNaN(t *testing.T) {
	assert := assert.New(t)

	assert.False(PoseIdentity().IsNaN())

	nan := float32(math.NaN())
	p := Pose(mgl32.Quat{W: 1}, mgl32.Vec3{nan, 0, 0})
	assert.True(p.IsNaN())
	p = Pose(mgl32.Quat{W: nan}, mgl32.Vec3{})
	assert.True(p.IsNaN())
}
