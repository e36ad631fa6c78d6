// Package geom holds the ground plane math shared by the spatial index and
// the camera. The ground plane is the world xz plane: x grows east and z
// grows toward the bottom edge of a rectangle, matching the terrain grid.
package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Rect is an axis-aligned rectangle on the ground plane. Edges are inclusive.
type Rect struct {
	MinX float32 `json:"min_x"`
	MinZ float32 `json:"min_z"`
	MaxX float32 `json:"max_x"`
	MaxZ float32 `json:"max_z"`
}

func NewRect(minX, minZ, maxX, maxZ float32) Rect {
	return Rect{MinX: minX, MinZ: minZ, MaxX: maxX, MaxZ: maxZ}
}

// RectAround returns the footprint of something standing at center with the
// given half extents along x and z.
func RectAround(center mgl32.Vec3, halfX, halfZ float32) Rect {
	return Rect{
		MinX: center.X() - halfX,
		MinZ: center.Z() - halfZ,
		MaxX: center.X() + halfX,
		MaxZ: center.Z() + halfZ,
	}
}

func (r Rect) Width() float32 {
	return r.MaxX - r.MinX
}

func (r Rect) Depth() float32 {
	return r.MaxZ - r.MinZ
}

func (r Rect) Area() float32 {
	return r.Width() * r.Depth()
}

// Valid reports whether the rectangle has finite coordinates and strictly
// positive extents.
func (r Rect) Valid() bool {
	for _, v := range [4]float32{r.MinX, r.MinZ, r.MaxX, r.MaxZ} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return r.Width() > 0 && r.Depth() > 0
}

// Overlaps reports whether both rectangles share at least one point. Touching
// edges count as overlapping so that an object lying exactly on a partition
// boundary is indexed on both sides.
func (r Rect) Overlaps(o Rect) bool {
	if r.MinX > o.MaxX {
		return false
	}
	if r.MaxX < o.MinX {
		return false
	}
	if r.MinZ > o.MaxZ {
		return false
	}
	if r.MaxZ < o.MinZ {
		return false
	}
	return true
}

func (r Rect) Contains(o Rect) bool {
	return o.MinX >= r.MinX && o.MaxX <= r.MaxX && o.MinZ >= r.MinZ && o.MaxZ <= r.MaxZ
}

// Center returns the middle of the rectangle at ground level (y = 0).
func (r Rect) Center() mgl32.Vec3 {
	return mgl32.Vec3{(r.MinX + r.MaxX) / 2, 0, (r.MinZ + r.MaxZ) / 2}
}

// BoundingRadius is the radius of the smallest sphere centered on Center that
// encloses the rectangle: half its diagonal.
func (r Rect) BoundingRadius() float32 {
	dx := float64(r.Width())
	dz := float64(r.Depth())
	return float32(math.Sqrt(dx*dx+dz*dz) / 2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", r.MinX, r.MinZ, r.MaxX, r.MaxZ)
}
