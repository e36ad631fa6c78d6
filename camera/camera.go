// Package camera implements the viewpoint used by culling passes: a
// perspective camera, its view frustum and the accumulator of objects found
// visible during a frame.
package camera

import (
	"math"

	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxPitch is the highest absolute pitch a camera can have, in radians.
const MaxPitch = 89 * math.Pi / 180

// Config describes a camera. Angles are in radians.
type Config struct {
	Eye     mgl32.Vec3
	Heading float32
	Pitch   float32
	FOV     float32
	Aspect  float32
	Near    float32
	Far     float32
}

// Camera is a perspective camera. It is not safe for concurrent use.
type Camera struct {
	// When true, AddVisibleObject accepts an object already added during
	// the frame.
	AllowDuplicates bool

	eye     mgl32.Vec3
	heading float32
	pitch   float32
	fov     float32
	aspect  float32
	near    float32
	far     float32

	view       mgl32.Mat4
	projection mgl32.Mat4
	frustum    Frustum
	pinned     bool

	visible      []*models.Object
	visibleNames map[string]struct{}
}

// New creates a camera and computes its initial frustum.
func New(c Config) *Camera {
	cam := &Camera{
		eye:          c.Eye,
		heading:      c.Heading,
		pitch:        clampPitch(c.Pitch),
		fov:          c.FOV,
		aspect:       c.Aspect,
		near:         c.Near,
		far:          c.Far,
		visibleNames: make(map[string]struct{}),
	}
	cam.Reset()
	return cam
}

func (c *Camera) Eye() mgl32.Vec3 {
	return c.eye
}

func (c *Camera) Heading() float32 {
	return c.heading
}

func (c *Camera) Pitch() float32 {
	return c.pitch
}

// Direction returns the unit vector the camera looks along. A zero heading
// and pitch looks toward +z; a heading of pi/2 looks toward +x.
func (c *Camera) Direction() mgl32.Vec3 {
	sh, ch := math.Sincos(float64(c.heading))
	sp, cp := math.Sincos(float64(c.pitch))
	return mgl32.Vec3{
		float32(sh * cp),
		float32(sp),
		float32(ch * cp),
	}
}

// Move translates the eye by the given world offset.
func (c *Camera) Move(dx, dy, dz float32) {
	c.eye = c.eye.Add(mgl32.Vec3{dx, dy, dz})
}

// MoveTo places the eye at the given position.
func (c *Camera) MoveTo(eye mgl32.Vec3) {
	c.eye = eye
}

// Turn rotates the camera. The pitch is clamped to MaxPitch.
func (c *Camera) Turn(dPitch, dHeading float32) {
	c.pitch = clampPitch(c.pitch + dPitch)
	c.heading = float32(math.Mod(float64(c.heading+dHeading), 2*math.Pi))
}

// Reset recomputes the view, the projection and the frustum from the current
// eye and orientation, then clears the visible objects. A pinned frustum is
// kept as is.
func (c *Camera) Reset() {
	c.view = mgl32.LookAtV(c.eye, c.eye.Add(c.Direction()), mgl32.Vec3{0, 1, 0})
	c.projection = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	if !c.pinned {
		c.frustum = NewFrustumFromMatrix(c.projection.Mul4(c.view))
	}

	c.visible = c.visible[:0]
	clear(c.visibleNames)
}

func (c *Camera) View() mgl32.Mat4 {
	return c.view
}

func (c *Camera) Projection() mgl32.Mat4 {
	return c.projection
}

func (c *Camera) Frustum() Frustum {
	return c.frustum
}

// Pin freezes the frustum used for culling. The camera can keep moving but
// culling passes use f until Unpin is called.
func (c *Camera) Pin(f Frustum) {
	c.frustum = f
	c.pinned = true
}

func (c *Camera) Unpin() {
	c.pinned = false
}

func (c *Camera) Pinned() bool {
	return c.pinned
}

// CheckFrustum classifies a bounding sphere against the frustum.
func (c *Camera) CheckFrustum(center mgl32.Vec3, radius float32) CullState {
	return c.frustum.ClassifySphere(center, radius)
}

// AddVisibleObject appends an object to the frame visible set. Objects are
// identified by name. It returns false when an object with the same name was
// already added, unless AllowDuplicates is set.
func (c *Camera) AddVisibleObject(o *models.Object) bool {
	if o == nil {
		return false
	}

	if _, ok := c.visibleNames[o.Name]; ok && !c.AllowDuplicates {
		return false
	}

	c.visibleNames[o.Name] = struct{}{}
	c.visible = append(c.visible, o)
	return true
}

// VisibleObjects returns the objects added since the last Reset, in the
// order they were added. The returned slice is reused by the next frame.
func (c *Camera) VisibleObjects() []*models.Object {
	return c.visible
}

// Distance returns the distance between the eye and the object position.
func (c *Camera) Distance(o *models.Object) float32 {
	return o.Position().Sub(c.eye).Len()
}

func clampPitch(p float32) float32 {
	return mgl32.Clamp(p, -MaxPitch, MaxPitch)
}
