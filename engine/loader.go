package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	KindCactus   = "cactus"
	KindTree     = "tree"
	KindRedPost  = "red_post"
	KindBluePost = "blue_post"
	KindOpponent = "opponent"
)

// SceneOptions describes a generated desert race track scene.
type SceneOptions struct {
	// The seed of the scene random generator.
	Seed int64

	// Cacti and trees are scattered over a square starting at the origin
	// with the given size.
	Cacti       int
	Trees       int
	ScatterSize float32
	CactusSize  float32
	TreeSize    float32

	// Posts are laid along two concentric rings around TrackCenter.
	TrackCenter mgl32.Vec3
	TrackRadius float32
	TrackWidth  float32
	PostSpacing float64
	PostSize    float32

	// Opponents start evenly spaced on the lane between the rings, heading
	// along it at OpponentSpeed. Engine dynamics then move them in straight
	// lines that bounce off the world edges.
	Opponents     int
	OpponentSpeed float32
	OpponentSize  float32
}

// DefaultSceneOptions returns the options of the default scene of a world of
// the given size.
func DefaultSceneOptions(worldSize float32) SceneOptions {
	return SceneOptions{
		Seed:          1,
		Cacti:         150,
		Trees:         150,
		ScatterSize:   worldSize * 0.95,
		CactusSize:    1,
		TreeSize:      6.5,
		TrackCenter:   mgl32.Vec3{worldSize / 2, 0, worldSize / 2},
		TrackRadius:   worldSize * 0.35,
		TrackWidth:    20,
		PostSpacing:   1.5,
		PostSize:      0.25,
		Opponents:     4,
		OpponentSpeed: 20,
		OpponentSize:  2,
	}
}

// GenerateScene returns the objects of a scene. The same options always
// generate the same objects.
func GenerateScene(ctx context.Context, opts SceneOptions) ([]*models.Object, error) {
	r := rand.New(rand.NewSource(opts.Seed))
	objects := make([]*models.Object, 0, opts.Cacti+opts.Trees+opts.Opponents)

	scatter := func(count int, kind string, size float32) {
		for i := 0; i < count; i++ {
			east := r.Float32() * opts.ScatterSize
			north := r.Float32() * opts.ScatterSize
			objects = append(objects, models.NewObject(
				fmt.Sprintf("%s%d", kind, i),
				kind,
				mgl32.Vec3{east, 0, north},
				size,
				size,
			))
		}
	}

	scatter(opts.Cacti, KindCactus, opts.CactusSize)
	scatter(opts.Trees, KindTree, opts.TreeSize)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.PostSpacing > 0 {
		for i, angle := 0, 0.0; angle < 360; i, angle = i+1, angle+opts.PostSpacing {
			objects = append(objects,
				newPost(KindRedPost, i, opts.TrackCenter, opts.TrackRadius, angle, opts.PostSize),
				newPost(KindBluePost, i, opts.TrackCenter, opts.TrackRadius+opts.TrackWidth, angle+opts.PostSpacing/3, opts.PostSize),
			)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lane := opts.TrackRadius + opts.TrackWidth/2
	for i := 0; i < opts.Opponents; i++ {
		angle := 2 * math.Pi * float64(i) / float64(opts.Opponents)
		sin, cos := math.Sincos(angle)

		o := models.NewObject(
			fmt.Sprintf("%s%d", KindOpponent, i),
			KindOpponent,
			opts.TrackCenter.Add(mgl32.Vec3{float32(sin) * lane, 0, float32(cos) * lane}),
			opts.OpponentSize,
			opts.OpponentSize,
		)
		o.Velocity = mgl32.Vec3{float32(cos) * opts.OpponentSpeed, 0, float32(-sin) * opts.OpponentSpeed}
		objects = append(objects, o)
	}

	return objects, nil
}

func newPost(kind string, i int, center mgl32.Vec3, radius float32, degrees float64, size float32) *models.Object {
	sin, cos := math.Sincos(degrees / 180 * math.Pi)
	return models.NewObject(
		fmt.Sprintf("%s%d", kind, i),
		kind,
		center.Add(mgl32.Vec3{float32(sin) * radius, 0, float32(cos) * radius}),
		size,
		size,
	)
}

// LoadScene generates a scene and adds it to the engine once fully
// generated, then marks the engine ready. It is meant to run in its own
// goroutine while the engine is already ticking.
func LoadScene(ctx context.Context, e *Engine, opts SceneOptions) error {
	start := time.Now()

	objects, err := GenerateScene(ctx, opts)
	if err != nil {
		return errors.New("generating scene failed").Wrap(err)
	}

	if err := ctx.Err(); err != nil {
		return errors.New("loading scene canceled").Wrap(err)
	}

	if e.Closed() {
		return errEngineClosed()
	}

	added := e.AddObjects(objects)
	e.setReady()

	loadTime := time.Since(start)
	instrumentSceneLoad(loadTime)

	logs.WithTag("engine_id", e.ID).
		WithTag("objects", added).
		WithTag("skipped", len(objects)-added).
		WithTag("seed", opts.Seed).
		WithTag("load_time", loadTime).
		Info("scene loaded")
	return nil
}
