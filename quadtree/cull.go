package quadtree

import (
	"time"

	"github.com/aukilabs/quadcull/camera"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the viewpoint a tree is culled against. It must be reset by the
// caller before each pass.
type Camera interface {
	// CheckFrustum classifies a bounding sphere against the view frustum.
	CheckFrustum(center mgl32.Vec3, radius float32) camera.CullState

	// AddVisibleObject adds an object to the frame visible set. It returns
	// false when the object was not added.
	AddVisibleObject(o *models.Object) bool

	// Distance returns the distance between the camera and an object.
	Distance(o *models.Object) float32
}

// CullStats describes a culling pass.
type CullStats struct {
	Visited       int `json:"visited"`
	Inside        int `json:"inside"`
	Outside       int `json:"outside"`
	Partial       int `json:"partial"`
	Pruned        int `json:"pruned"`
	RootFallbacks int `json:"root_fallbacks"`

	// The number of objects found visible, and the number of them that were
	// accepted by the camera.
	Marked int `json:"marked"`
	Added  int `json:"added"`

	Duration time.Duration `json:"duration"`
}

// Cull marks the objects visible from the camera.
//
// Nodes holding no object are skipped. Nodes entirely inside the frustum
// have all their objects marked visible without visiting their children.
// Nodes partially inside have their children visited, or their objects
// marked visible when they are leaves. Nodes entirely outside are skipped,
// except the root which is visited as partially inside unless the
// DISABLE_ROOT_OUTSIDE_FALLBACK flag is set.
//
// Marking an object visible clears its Culled flag, sets its Range to the
// camera distance and adds it to the camera. Objects are never marked culled
// by a pass: callers set Culled back to true before culling. A nil camera
// culls nothing.
func (t *Tree) Cull(cam Camera) CullStats {
	var stats CullStats
	if isNilCamera(cam) || t.closed {
		return stats
	}

	start := time.Now()
	t.cull(0, cam, &stats)
	stats.Duration = time.Since(start)

	instrumentCull(stats)
	return stats
}

// isNilCamera reports whether cam is nil, including a nil *camera.Camera
// held by the interface.
func isNilCamera(cam Camera) bool {
	if cam == nil {
		return true
	}
	c, ok := cam.(*camera.Camera)
	return ok && c == nil
}

func (t *Tree) cull(id NodeID, cam Camera, stats *CullStats) {
	n := &t.nodes[id]
	if len(n.objects) == 0 {
		stats.Pruned++
		return
	}
	stats.Visited++

	state := cam.CheckFrustum(n.center, n.radius)
	if state == camera.AllOutside && n.parent == NoNode && !t.flags.IsSet(featureflag.FlagDisableRootOutsideFallback) {
		stats.RootFallbacks++
		state = camera.PartiallyIn
	}

	switch state {
	case camera.AllInside:
		stats.Inside++
		t.markVisible(n, cam, stats)

	case camera.AllOutside:
		stats.Outside++

	case camera.PartiallyIn:
		stats.Partial++
		if n.leaf {
			t.markVisible(n, cam, stats)
			return
		}

		for _, c := range n.children {
			t.cull(c, cam, stats)
		}
	}
}

func (t *Tree) markVisible(n *node, cam Camera, stats *CullStats) {
	for _, o := range n.objects {
		o.Culled = false
		o.Range = cam.Distance(o)
		stats.Marked++

		if cam.AddVisibleObject(o) {
			stats.Added++
		}
	}
}
