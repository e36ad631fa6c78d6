package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// CullState is the classification of a bounding volume against a frustum.
type CullState int

const (
	AllOutside CullState = iota
	PartiallyIn
	AllInside
)

func (s CullState) String() string {
	switch s {
	case AllOutside:
		return "all_outside"
	case PartiallyIn:
		return "partially_in"
	case AllInside:
		return "all_inside"
	default:
		return "unknown"
	}
}

// Plane is the set of points p where Normal·p + D = 0. The normal points
// toward the inside of the frustum.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// Distance returns the signed distance from p to the plane. It is positive on
// the inner side.
func (p Plane) Distance(v mgl32.Vec3) float32 {
	return p.Normal.Dot(v) + p.D
}

func (p Plane) normalize() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	return Plane{
		Normal: p.Normal.Mul(1 / l),
		D:      p.D / l,
	}
}

func planeFromRow(v mgl32.Vec4) Plane {
	return Plane{Normal: v.Vec3(), D: v.W()}.normalize()
}

// Frustum is a convex volume bounded by inward facing planes, ordered left,
// right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustumFromMatrix extracts the planes of a view-projection matrix.
func NewFrustumFromMatrix(viewProjection mgl32.Mat4) Frustum {
	r0 := viewProjection.Row(0)
	r1 := viewProjection.Row(1)
	r2 := viewProjection.Row(2)
	r3 := viewProjection.Row(3)

	return Frustum{
		Planes: [6]Plane{
			planeFromRow(r3.Add(r0)),
			planeFromRow(r3.Sub(r0)),
			planeFromRow(r3.Add(r1)),
			planeFromRow(r3.Sub(r1)),
			planeFromRow(r3.Add(r2)),
			planeFromRow(r3.Sub(r2)),
		},
	}
}

// NewFrustumFromBox returns the frustum enclosing the axis-aligned box
// between min and max.
func NewFrustumFromBox(min, max mgl32.Vec3) Frustum {
	return Frustum{
		Planes: [6]Plane{
			{Normal: mgl32.Vec3{1, 0, 0}, D: -min.X()},
			{Normal: mgl32.Vec3{-1, 0, 0}, D: max.X()},
			{Normal: mgl32.Vec3{0, 1, 0}, D: -min.Y()},
			{Normal: mgl32.Vec3{0, -1, 0}, D: max.Y()},
			{Normal: mgl32.Vec3{0, 0, 1}, D: -min.Z()},
			{Normal: mgl32.Vec3{0, 0, -1}, D: max.Z()},
		},
	}
}

// ClassifySphere reports whether the sphere is entirely outside, entirely
// inside or straddling the frustum.
//
// The test is conservative: a sphere near a frustum corner can be reported
// as PartiallyIn while lying outside. It never reports a visible sphere as
// AllOutside.
func (f Frustum) ClassifySphere(center mgl32.Vec3, radius float32) CullState {
	state := AllInside
	for _, p := range f.Planes {
		d := p.Distance(center)
		if d < -radius {
			return AllOutside
		}
		if d < radius {
			state = PartiallyIn
		}
	}
	return state
}
