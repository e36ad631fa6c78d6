package engine

import (
	"context"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/camera"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

var (
	northWestBox = camera.NewFrustumFromBox(mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{35, 1000, 35})
	southEastBox = camera.NewFrustumFromBox(mgl32.Vec3{65, -1000, 65}, mgl32.Vec3{1000, 1000, 1000})
)

func newTestConfig(flags ...featureflag.Flag) Config {
	c := DefaultConfig()
	c.WorldSize = 100
	c.MaxDepth = 1
	c.FrameDuration = time.Millisecond
	c.SummaryInterval = 0
	c.Camera.Eye = mgl32.Vec3{50, 10, -200}

	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}
	c.FeatureFlags = featureflag.New(names)
	return c
}

// newTestEngine returns an engine over a two level tree of (0,0)-(100,100)
// holding an object in the north west quadrant and an object straddling the
// center.
func newTestEngine(t *testing.T, flags ...featureflag.Flag) *Engine {
	e, err := New(newTestConfig(flags...))
	require.NoError(t, err)

	require.NoError(t, e.AddObject(models.NewObject("a", KindCactus, mgl32.Vec3{15, 0, 15}, 10, 10)))
	require.NoError(t, e.AddObject(models.NewObject("b", KindTree, mgl32.Vec3{50, 0, 50}, 10, 10)))
	return e
}

func visibleNames(f Frame) []string {
	var names []string
	for _, v := range f.Visible {
		names = append(names, v.Name)
	}
	return names
}

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		e, err := New(DefaultConfig())
		require.NoError(t, err)
		require.NotEmpty(t, e.ID)
		require.False(t, e.Ready())
		require.Zero(t, e.ObjectCount())
		require.Equal(t, 7, e.DebugInfo(false).Tree.MaxDepth)
	})

	t.Run("invalid frame duration", func(t *testing.T) {
		c := newTestConfig()
		c.FrameDuration = 0

		_, err := New(c)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))
	})

	t.Run("invalid camera", func(t *testing.T) {
		c := newTestConfig()
		c.Camera.Near = 0

		_, err := New(c)
		require.Error(t, err)
		require.Equal(t, ErrTypeInvalidConfig, errors.Type(err))

		c = newTestConfig()
		c.Camera.FOV = 0

		_, err = New(c)
		require.Error(t, err)
	})

	t.Run("invalid world", func(t *testing.T) {
		c := newTestConfig()
		c.MaxDepth = -1

		_, err := New(c)
		require.Error(t, err)

		c = newTestConfig()
		c.WorldSize = 0

		_, err = New(c)
		require.Error(t, err)
	})
}

func TestEngineAddObject(t *testing.T) {
	e := newTestEngine(t)
	require.Equal(t, 2, e.ObjectCount())

	err := e.AddObject(models.NewObject("a", KindCactus, mgl32.Vec3{}, 1, 1))
	require.Error(t, err)
	require.Equal(t, models.ErrTypeDuplicateObject, errors.Type(err))

	a, ok := e.Object("a")
	require.True(t, ok)
	require.Equal(t, KindCactus, a.Kind)
	require.Equal(t, 2, a.Nodes)
	require.True(t, a.Culled)

	b, _ := e.Object("b")
	require.Equal(t, 5, b.Nodes)

	_, ok = e.Object("z")
	require.False(t, ok)
}

func TestEngineAddObjects(t *testing.T) {
	e, err := New(newTestConfig())
	require.NoError(t, err)

	added := e.AddObjects([]*models.Object{
		models.NewObject("a", KindCactus, mgl32.Vec3{10, 0, 10}, 1, 1),
		models.NewObject("a", KindCactus, mgl32.Vec3{20, 0, 20}, 1, 1),
		models.NewObject("", KindCactus, mgl32.Vec3{20, 0, 20}, 1, 1),
		models.NewObject("b", KindTree, mgl32.Vec3{30, 0, 30}, 1, 1),
	})
	require.Equal(t, 2, added)
	require.Equal(t, 2, e.ObjectCount())
}

func TestEngineTick(t *testing.T) {
	t.Run("frame holds the objects in the frustum", func(t *testing.T) {
		e := newTestEngine(t)

		e.PinFrustumTo(northWestBox)
		f := e.Tick(e.Config().FrameDuration)
		require.Equal(t, uint64(1), f.Number)
		require.Equal(t, 2, f.Objects)
		require.ElementsMatch(t, []string{"a", "b"}, visibleNames(f))
		require.True(t, f.Camera.Pinned)
		require.Equal(t, f, e.LastFrame())

		e.PinFrustumTo(southEastBox)
		f = e.Tick(e.Config().FrameDuration)
		require.Equal(t, uint64(2), f.Number)
		require.Equal(t, []string{"b"}, visibleNames(f))

		a, _ := e.Object("a")
		require.True(t, a.Culled)

		b, _ := e.Object("b")
		require.False(t, b.Culled)
		require.InDelta(t, b.Range, f.Visible[0].Range, 0.0001)
	})

	t.Run("objects are listed once", func(t *testing.T) {
		e := newTestEngine(t)

		e.PinFrustumTo(camera.NewFrustumFromBox(mgl32.Vec3{-11, -1000, -11}, mgl32.Vec3{111, 1000, 61}))
		f := e.Tick(time.Millisecond)
		require.ElementsMatch(t, []string{"a", "b"}, visibleNames(f))
		require.Equal(t, 5, f.Stats.Marked)
	})

	t.Run("objects are listed many times when duplicates are allowed", func(t *testing.T) {
		e := newTestEngine(t, featureflag.FlagAllowDuplicateVisible)

		e.PinFrustumTo(camera.NewFrustumFromBox(mgl32.Vec3{-11, -1000, -11}, mgl32.Vec3{111, 1000, 61}))
		f := e.Tick(time.Millisecond)
		require.Len(t, f.Visible, 5)
	})

	t.Run("unpinned camera culls from its position", func(t *testing.T) {
		e := newTestEngine(t)

		f := e.Tick(time.Millisecond)
		require.Empty(t, f.Visible)

		e.MoveCamera(0, 0, 180)
		f = e.Tick(time.Millisecond)
		require.Equal(t, mgl32.Vec3{50, 10, -20}, f.Camera.Eye)
		require.Contains(t, visibleNames(f), "a")
		require.Contains(t, visibleNames(f), "b")

		e.TurnCamera(0, mgl32.DegToRad(180))
		f = e.Tick(time.Millisecond)
		require.Empty(t, f.Visible)
	})

	t.Run("pinning freezes the current frustum", func(t *testing.T) {
		e := newTestEngine(t)
		e.MoveCamera(0, 0, 180)
		e.PinFrustum()

		e.MoveCamera(0, 0, -1000)
		f := e.Tick(time.Millisecond)
		require.True(t, f.Camera.Pinned)
		require.NotEmpty(t, f.Visible)

		e.UnpinFrustum()
		f = e.Tick(time.Millisecond)
		require.False(t, f.Camera.Pinned)
		require.Empty(t, f.Visible)
	})
}

func TestEngineMoveObject(t *testing.T) {
	e := newTestEngine(t)
	e.PinFrustumTo(southEastBox)

	require.NoError(t, e.MoveObject("a", mgl32.Vec3{80, 0, 80}))
	a, _ := e.Object("a")
	require.Equal(t, mgl32.Vec3{80, 0, 80}, a.Position)
	require.Equal(t, 2, a.Nodes)

	f := e.Tick(time.Millisecond)
	require.ElementsMatch(t, []string{"a", "b"}, visibleNames(f))

	err := e.MoveObject("z", mgl32.Vec3{})
	require.Error(t, err)
	require.Equal(t, models.ErrTypeObjectNotFound, errors.Type(err))
}

func TestEngineRemoveObject(t *testing.T) {
	e := newTestEngine(t)
	e.PinFrustumTo(northWestBox)

	require.NoError(t, e.RemoveObject("b"))
	require.Equal(t, 1, e.ObjectCount())

	f := e.Tick(time.Millisecond)
	require.Equal(t, []string{"a"}, visibleNames(f))

	err := e.RemoveObject("b")
	require.Error(t, err)
	require.Equal(t, models.ErrTypeObjectNotFound, errors.Type(err))
}

func TestEngineDynamics(t *testing.T) {
	t.Run("objects move and bounce on the world edges", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.AddObject(models.NewObject("c", KindOpponent, mgl32.Vec3{95, 0, 50}, 2, 2)))
		require.NoError(t, e.SetObjectVelocity("c", mgl32.Vec3{10, 0, 0}))

		e.Tick(time.Second)
		c, _ := e.Object("c")
		require.InDelta(t, 95, c.Position.X(), 0.0001)
		require.Equal(t, mgl32.Vec3{-10, 0, 0}, c.Velocity)

		e.Tick(time.Second)
		c, _ = e.Object("c")
		require.InDelta(t, 85, c.Position.X(), 0.0001)
	})

	t.Run("moving objects are reinserted", func(t *testing.T) {
		e := newTestEngine(t)
		require.NoError(t, e.AddObject(models.NewObject("c", KindOpponent, mgl32.Vec3{40, 0, 15}, 2, 2)))
		require.NoError(t, e.SetObjectVelocity("c", mgl32.Vec3{20, 0, 0}))
		e.PinFrustumTo(camera.NewFrustumFromBox(mgl32.Vec3{65, -1000, -1000}, mgl32.Vec3{1000, 1000, 35}))

		f := e.Tick(time.Second)
		require.Equal(t, 1, f.Reinserted)
		require.ElementsMatch(t, []string{"b", "c"}, visibleNames(f))
	})

	t.Run("dynamics can be disabled", func(t *testing.T) {
		e := newTestEngine(t, featureflag.FlagDisableObjectDynamics)
		require.NoError(t, e.AddObject(models.NewObject("c", KindOpponent, mgl32.Vec3{40, 0, 15}, 2, 2)))
		require.NoError(t, e.SetObjectVelocity("c", mgl32.Vec3{20, 0, 0}))

		f := e.Tick(time.Second)
		require.Zero(t, f.Reinserted)

		c, _ := e.Object("c")
		require.Equal(t, mgl32.Vec3{40, 0, 15}, c.Position)
	})

	t.Run("unknown object", func(t *testing.T) {
		e := newTestEngine(t)

		err := e.SetObjectVelocity("z", mgl32.Vec3{})
		require.Error(t, err)
		require.Equal(t, models.ErrTypeObjectNotFound, errors.Type(err))
	})
}

func TestEngineOnFrame(t *testing.T) {
	e := newTestEngine(t)

	var frames []uint64
	cancel := e.OnFrame(func(f Frame) {
		frames = append(frames, f.Number)
	})

	e.Tick(time.Millisecond)
	e.Tick(time.Millisecond)
	cancel()
	cancel()
	e.Tick(time.Millisecond)

	require.Equal(t, []uint64{1, 2}, frames)
}

func TestEngineRun(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan Frame, 1)
	defer e.OnFrame(func(f Frame) {
		select {
		case frames <- f:
		default:
		}
	})()

	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	select {
	case f := <-frames:
		require.NotZero(t, f.Number)
	case <-time.After(time.Second):
		require.Fail(t, "no frame ticked")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestEngineClose(t *testing.T) {
	e := newTestEngine(t)
	e.Tick(time.Millisecond)

	require.NoError(t, e.Close())
	require.True(t, e.Closed())

	err := e.Close()
	require.Error(t, err)
	require.Equal(t, ErrTypeEngineClosed, errors.Type(err))

	err = e.AddObject(models.NewObject("c", KindCactus, mgl32.Vec3{}, 1, 1))
	require.Error(t, err)
	require.Equal(t, ErrTypeEngineClosed, errors.Type(err))

	require.Error(t, e.MoveObject("a", mgl32.Vec3{}))
	require.Error(t, e.RemoveObject("a"))
	require.Equal(t, uint64(1), e.Tick(time.Millisecond).Number)
	require.Error(t, e.Run(context.Background()))
}

func TestEngineDebugInfo(t *testing.T) {
	e := newTestEngine(t)
	e.Tick(time.Millisecond)

	info := e.DebugInfo(true)
	require.Equal(t, e.ID, info.EngineID)
	require.Equal(t, uint64(1), info.FrameNumber)
	require.Equal(t, map[string]int{KindCactus: 1, KindTree: 1}, info.ObjectsByKind)
	require.Equal(t, 2, info.Tree.ObjectCount)
	require.Len(t, info.Tree.Occupied, 5)
}
