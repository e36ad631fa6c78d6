package models

import (
	"github.com/aukilabs/quadcull/geom"
	"github.com/go-gl/mathgl/mgl32"
)

// ObjectID is the handle of an object in a Store.
type ObjectID uint32

// Object is a scene object that can be indexed by its ground footprint and
// culled against a camera.
//
// Objects are owned by a Store. Spatial indexes only keep references to them
// and never manage their lifetime.
type Object struct {
	ID   ObjectID
	Name string
	Kind string

	// Culled is true when the object does not need to be rendered this
	// frame. Culling passes only ever clear it; the owner sets it back before
	// each pass.
	Culled bool

	// Range is the distance to the camera computed by the last culling pass
	// that found the object visible.
	Range float32

	// Velocity is applied to the position by engine dynamics, in world units
	// per second.
	Velocity mgl32.Vec3

	position mgl32.Vec3
	halfX    float32
	halfZ    float32
}

// NewObject returns a culled object standing at position with a footprint of
// the given width (x) and depth (z).
func NewObject(name, kind string, position mgl32.Vec3, width, depth float32) *Object {
	return &Object{
		Name:     name,
		Kind:     kind,
		Culled:   true,
		position: position,
		halfX:    width / 2,
		halfZ:    depth / 2,
	}
}

func (o *Object) Position() mgl32.Vec3 {
	return o.position
}

func (o *Object) SetPosition(v mgl32.Vec3) {
	o.position = v
}

// Footprint returns the ground rectangle used for spatial membership tests.
func (o *Object) Footprint() geom.Rect {
	return geom.RectAround(o.position, o.halfX, o.halfZ)
}

// SetFootprint resizes the footprint while keeping it centered on the
// object position.
func (o *Object) SetFootprint(width, depth float32) {
	o.halfX = width / 2
	o.halfZ = depth / 2
}
