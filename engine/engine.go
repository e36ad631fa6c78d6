// Package engine drives the spatial index and the camera once per frame.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/camera"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/geom"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/quadtree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

const (
	ErrTypeInvalidConfig = "invalid_config"
	ErrTypeEngineClosed  = "engine_closed"
)

// Config describes the world an engine runs.
type Config struct {
	// The size of the square world, starting at the origin.
	WorldSize float32

	// The depth of the spatial index.
	MaxDepth int

	// The time between two frames when running.
	FrameDuration time.Duration

	// The interval between two frame summary logs. Summaries are not logged
	// when zero.
	SummaryInterval time.Duration

	Camera       camera.Config
	FeatureFlags featureflag.FeatureFlag
}

// DefaultConfig returns the configuration of a 2000x2000 world indexed by a
// tree of depth 7, seen from its south west corner.
func DefaultConfig() Config {
	return Config{
		WorldSize:       2000,
		MaxDepth:        7,
		FrameDuration:   time.Millisecond * 15,
		SummaryInterval: time.Minute,
		Camera: camera.Config{
			Eye:     mgl32.Vec3{1000, 10, 250},
			Heading: 0,
			Pitch:   0,
			FOV:     mgl32.DegToRad(45),
			Aspect:  4.0 / 3.0,
			Near:    1,
			Far:     100,
		},
	}
}

// Engine owns the objects of a world, their spatial index and the camera.
// Every method is safe for concurrent use.
type Engine struct {
	ID string

	config Config

	mutex   sync.Mutex
	objects *models.Store
	tree    *quadtree.Tree
	camera  *camera.Camera
	closed  bool

	frameNumber     uint64
	lastFrame       Frame
	lastSummary     time.Time
	frameHandlerIDs models.SequentialIDGenerator
	frameHandlers   map[uint32]func(Frame)
	frameMutex      sync.RWMutex

	ready atomic.Bool
}

// New creates an engine with an empty world.
func New(c Config) (*Engine, error) {
	if err := validateConfig(c); err != nil {
		return nil, err
	}

	tree, err := quadtree.New(
		geom.NewRect(0, 0, c.WorldSize, c.WorldSize),
		c.MaxDepth,
		quadtree.WithFeatureFlags(c.FeatureFlags),
	)
	if err != nil {
		return nil, errors.New("creating spatial index failed").
			WithType(ErrTypeInvalidConfig).
			Wrap(err)
	}

	cam := camera.New(c.Camera)
	cam.AllowDuplicates = c.FeatureFlags.IsSet(featureflag.FlagAllowDuplicateVisible)

	return &Engine{
		ID:            uuid.NewString(),
		config:        c,
		objects:       models.NewStore(),
		tree:          tree,
		camera:        cam,
		frameHandlers: make(map[uint32]func(Frame)),
		lastSummary:   time.Now(),
	}, nil
}

func validateConfig(c Config) error {
	if c.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("frame_duration", c.FrameDuration)
	}

	if c.Camera.FOV <= 0 || c.Camera.FOV >= mgl32.DegToRad(180) {
		return errors.New("camera field of view must be between 0 and 180 degrees").
			WithType(ErrTypeInvalidConfig).
			WithTag("fov", c.Camera.FOV)
	}

	if c.Camera.Aspect <= 0 {
		return errors.New("camera aspect must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("aspect", c.Camera.Aspect)
	}

	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return errors.New("camera planes must satisfy 0 < near < far").
			WithType(ErrTypeInvalidConfig).
			WithTag("near", c.Camera.Near).
			WithTag("far", c.Camera.Far)
	}

	return nil
}

func (e *Engine) Config() Config {
	return e.config
}

// AddObject stores the object and indexes it.
func (e *Engine) AddObject(o *models.Object) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.addObject(o)
}

func (e *Engine) addObject(o *models.Object) error {
	if e.closed {
		return errEngineClosed()
	}

	if err := e.objects.Add(o); err != nil {
		return err
	}

	e.tree.Insert(o)
	return nil
}

// AddObjects adds a batch of objects at once. Objects that cannot be added
// are logged and skipped. It returns the number of added objects.
func (e *Engine) AddObjects(objects []*models.Object) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	var added int
	for _, o := range objects {
		if err := e.addObject(o); err != nil {
			logs.Warn(errors.New("adding object failed").Wrap(err))
			continue
		}
		added++
	}
	return added
}

// RemoveObject removes the named object from the world.
func (e *Engine) RemoveObject(name string) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return errEngineClosed()
	}

	o, ok := e.objects.GetByName(name)
	if !ok {
		return errObjectNotFound(name)
	}

	e.tree.Remove(o)
	e.objects.Remove(o.ID)
	return nil
}

// MoveObject places the named object at the given position and updates its
// spatial memberships.
func (e *Engine) MoveObject(name string, position mgl32.Vec3) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return errEngineClosed()
	}

	o, ok := e.objects.GetByName(name)
	if !ok {
		return errObjectNotFound(name)
	}

	o.SetPosition(position)
	e.tree.Refresh(o)
	return nil
}

// SetObjectVelocity sets the velocity applied to the named object every
// frame.
func (e *Engine) SetObjectVelocity(name string, velocity mgl32.Vec3) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.closed {
		return errEngineClosed()
	}

	o, ok := e.objects.GetByName(name)
	if !ok {
		return errObjectNotFound(name)
	}

	o.Velocity = velocity
	return nil
}

// ObjectInfo is a snapshot of an object.
type ObjectInfo struct {
	ID       models.ObjectID `json:"id"`
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Position mgl32.Vec3      `json:"position"`
	Velocity mgl32.Vec3      `json:"velocity"`
	Culled   bool            `json:"culled"`
	Range    float32         `json:"range"`
	Nodes    int             `json:"nodes"`
}

// Object returns a snapshot of the named object.
func (e *Engine) Object(name string) (ObjectInfo, bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	o, ok := e.objects.GetByName(name)
	if !ok {
		return ObjectInfo{}, false
	}

	return ObjectInfo{
		ID:       o.ID,
		Name:     o.Name,
		Kind:     o.Kind,
		Position: o.Position(),
		Velocity: o.Velocity,
		Culled:   o.Culled,
		Range:    o.Range,
		Nodes:    len(e.tree.Nodes(o)),
	}, true
}

func (e *Engine) ObjectCount() int {
	return e.objects.Len()
}

// MoveCamera translates the camera eye.
func (e *Engine) MoveCamera(dx, dy, dz float32) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.camera.Move(dx, dy, dz)
}

// TurnCamera rotates the camera. Angles are in radians.
func (e *Engine) TurnCamera(dPitch, dHeading float32) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.camera.Turn(dPitch, dHeading)
}

// PinFrustum freezes the current camera frustum. Following frames are culled
// against it until UnpinFrustum is called.
func (e *Engine) PinFrustum() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.camera.Reset()
	e.camera.Pin(e.camera.Frustum())
}

// PinFrustumTo freezes the given frustum.
func (e *Engine) PinFrustumTo(f camera.Frustum) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.camera.Pin(f)
}

func (e *Engine) UnpinFrustum() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.camera.Unpin()
}

// OnFrame registers a handler called with every frame. Handlers are called
// from the goroutine running Tick and must not block.
func (e *Engine) OnFrame(h func(Frame)) (cancel func()) {
	e.frameMutex.Lock()
	defer e.frameMutex.Unlock()

	id := e.frameHandlerIDs.New()
	e.frameHandlers[id] = h

	return func() {
		e.frameMutex.Lock()
		defer e.frameMutex.Unlock()

		if _, ok := e.frameHandlers[id]; !ok {
			return
		}
		delete(e.frameHandlers, id)
		e.frameHandlerIDs.Reuse(id)
	}
}

// Run ticks the engine every frame duration until the context is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.config.FrameDuration)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-ticker.C:
			if e.Closed() {
				return errEngineClosed()
			}

			e.Tick(now.Sub(last))
			last = now
		}
	}
}

// Ready reports whether the scene is loaded.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

func (e *Engine) setReady() {
	e.ready.Store(true)
}

// Close releases the spatial index. Closing twice returns an error.
func (e *Engine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if err := e.tree.Close(); err != nil {
		return errors.New("closing engine failed").
			WithType(ErrTypeEngineClosed).
			Wrap(err)
	}

	e.closed = true
	e.ready.Store(false)
	return nil
}

func (e *Engine) Closed() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.closed
}

// DebugInfo describes the engine state.
type DebugInfo struct {
	EngineID      string             `json:"engine_id"`
	Ready         bool               `json:"ready"`
	FrameNumber   uint64             `json:"frame_number"`
	ObjectsByKind map[string]int     `json:"objects_by_kind"`
	Camera        CameraInfo         `json:"camera"`
	Tree          quadtree.DebugInfo `json:"tree"`
}

// DebugInfo returns the engine state. Occupied tree nodes are listed when
// withNodes is true.
func (e *Engine) DebugInfo(withNodes bool) DebugInfo {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return DebugInfo{
		EngineID:      e.ID,
		Ready:         e.Ready(),
		FrameNumber:   e.frameNumber,
		ObjectsByKind: e.objects.CountByKind(),
		Camera:        e.cameraInfo(),
		Tree:          e.tree.DebugInfo(withNodes),
	}
}

func errEngineClosed() error {
	return errors.New("engine is closed").
		WithType(ErrTypeEngineClosed)
}

func errObjectNotFound(name string) error {
	return errors.New("object not found").
		WithType(models.ErrTypeObjectNotFound).
		WithTag("name", name)
}
