package engine

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/quadtree"
	"github.com/go-gl/mathgl/mgl32"
)

// Frame is the result of a tick.
type Frame struct {
	Number     uint64             `json:"number"`
	Time       time.Time          `json:"time"`
	Camera     CameraInfo         `json:"camera"`
	Visible    []VisibleObject    `json:"visible"`
	Stats      quadtree.CullStats `json:"stats"`
	Objects    int                `json:"objects"`
	Reinserted int                `json:"reinserted"`
}

// VisibleObject is an object found visible during a frame.
type VisibleObject struct {
	ID    models.ObjectID `json:"id"`
	Name  string          `json:"name"`
	Kind  string          `json:"kind"`
	Range float32         `json:"range"`
}

type CameraInfo struct {
	Eye     mgl32.Vec3 `json:"eye"`
	Heading float32    `json:"heading"`
	Pitch   float32    `json:"pitch"`
	Pinned  bool       `json:"pinned"`
}

func (e *Engine) cameraInfo() CameraInfo {
	return CameraInfo{
		Eye:     e.camera.Eye(),
		Heading: e.camera.Heading(),
		Pitch:   e.camera.Pitch(),
		Pinned:  e.camera.Pinned(),
	}
}

// Tick advances the world by dt and culls it.
//
// Moving objects are integrated and their spatial memberships refreshed.
// Every object is then marked culled, the camera is reset and the spatial
// index is culled against it. The objects found visible make the frame,
// which is passed to the frame handlers before being returned.
func (e *Engine) Tick(dt time.Duration) Frame {
	e.mutex.Lock()
	if e.closed {
		defer e.mutex.Unlock()
		return e.lastFrame
	}

	objects := e.objects.List()

	var reinserted int
	e.config.FeatureFlags.IfNotSet(featureflag.FlagDisableObjectDynamics, func() {
		reinserted = e.integrate(objects, dt)
	})

	for _, o := range objects {
		o.Culled = true
	}

	e.camera.Reset()
	stats := e.tree.Cull(e.camera)

	visible := e.camera.VisibleObjects()
	frame := Frame{
		Number:     e.frameNumber + 1,
		Time:       time.Now(),
		Camera:     e.cameraInfo(),
		Visible:    make([]VisibleObject, 0, len(visible)),
		Stats:      stats,
		Objects:    len(objects),
		Reinserted: reinserted,
	}
	for _, o := range visible {
		frame.Visible = append(frame.Visible, VisibleObject{
			ID:    o.ID,
			Name:  o.Name,
			Kind:  o.Kind,
			Range: o.Range,
		})
	}

	e.frameNumber = frame.Number
	e.lastFrame = frame
	e.logSummary(frame)
	e.mutex.Unlock()

	instrumentFrame(frame, dt)

	e.frameMutex.RLock()
	defer e.frameMutex.RUnlock()

	for _, h := range e.frameHandlers {
		h(frame)
	}
	return frame
}

// integrate moves the objects with a velocity. Objects bounce on the world
// edges. It returns the number of objects reinserted in the spatial index.
func (e *Engine) integrate(objects []*models.Object, dt time.Duration) int {
	seconds := float32(dt.Seconds())
	if seconds <= 0 {
		return 0
	}

	var reinserted int
	for _, o := range objects {
		if o.Velocity == (mgl32.Vec3{}) {
			continue
		}

		p := o.Position().Add(o.Velocity.Mul(seconds))
		p[0], o.Velocity[0] = bounce(p[0], o.Velocity[0], e.config.WorldSize)
		p[2], o.Velocity[2] = bounce(p[2], o.Velocity[2], e.config.WorldSize)
		o.SetPosition(p)

		if e.tree.Refresh(o) {
			reinserted++
		}
	}
	return reinserted
}

func bounce(position, velocity, size float32) (float32, float32) {
	switch {
	case position < 0:
		return mgl32.Clamp(-position, 0, size), -velocity
	case position > size:
		return mgl32.Clamp(2*size-position, 0, size), -velocity
	default:
		return position, velocity
	}
}

// LastFrame returns the last ticked frame.
func (e *Engine) LastFrame() Frame {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.lastFrame
}

func (e *Engine) logSummary(f Frame) {
	if e.config.SummaryInterval <= 0 || time.Since(e.lastSummary) < e.config.SummaryInterval {
		return
	}
	e.lastSummary = time.Now()

	logs.WithTag("engine_id", e.ID).
		WithTag("frame", f.Number).
		WithTag("objects", f.Objects).
		WithTag("visible", len(f.Visible)).
		WithTag("nodes_visited", f.Stats.Visited).
		WithTag("reinserted", f.Reinserted).
		WithTag("cull_duration", f.Stats.Duration).
		Info("frame summary")
}
