// Package smoketest checks the spatial index and culling end to end on a
// scratch tree.
package smoketest

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/camera"
	"github.com/aukilabs/quadcull/geom"
	"github.com/aukilabs/quadcull/models"
	"github.com/aukilabs/quadcull/quadtree"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/segmentio/encoding/json"
)

const objectKind = "smoke_test"

// Check is the result of a single smoke test check.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// Results are the results of a smoke test run.
type Results struct {
	Passed   bool          `json:"passed"`
	Checks   []Check       `json:"checks"`
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration"`
}

type check struct {
	name string
	run  func(*scenario) error
}

// scenario is a two level tree over (0,0)-(100,100) holding an object in
// the north west quadrant and an object straddling the center.
type scenario struct {
	tree *quadtree.Tree
	a    *models.Object
	b    *models.Object
}

var checks = []check{
	{name: "construct", run: checkConstruct},
	{name: "partition", run: checkPartition},
	{name: "insert", run: checkInsert},
	{name: "cull_north_west", run: checkCullNorthWest},
	{name: "cull_south_east", run: checkCullSouthEast},
	{name: "refresh", run: checkRefresh},
	{name: "remove", run: checkRemove},
	{name: "close", run: checkClose},
}

// Run runs every check in order. Checks stop at the first failure, or when
// ctx is done.
func Run(ctx context.Context) Results {
	start := time.Now()
	res := Results{
		Passed: true,
		Time:   start,
	}

	s := &scenario{
		a: newObject(1, "a", 10, 10, 20, 20),
		b: newObject(2, "b", 45, 45, 55, 55),
	}
	defer func() {
		if s.tree != nil && !s.tree.Closed() {
			s.tree.Close()
		}
	}()

	for _, c := range checks {
		err := ctx.Err()
		if err == nil {
			err = c.run(s)
		}

		r := Check{
			Name:   c.name,
			Passed: err == nil,
		}
		if err != nil {
			r.Error = err.Error()
			res.Passed = false
		}
		res.Checks = append(res.Checks, r)

		if err != nil {
			break
		}
	}

	res.Duration = time.Since(start)
	return res
}

func newObject(id models.ObjectID, name string, minX, minZ, maxX, maxZ float32) *models.Object {
	o := models.NewObject(
		name,
		objectKind,
		mgl32.Vec3{(minX + maxX) / 2, 0, (minZ + maxZ) / 2},
		maxX-minX,
		maxZ-minZ,
	)
	o.ID = id
	return o
}

func checkConstruct(s *scenario) error {
	tree, err := quadtree.New(geom.NewRect(0, 0, 100, 100), 1)
	if err != nil {
		return err
	}
	s.tree = tree

	if n := tree.Len(); n != quadtree.NodeCount(1) {
		return errors.New("unexpected node count").
			WithTag("expected", quadtree.NodeCount(1)).
			WithTag("count", n)
	}
	return nil
}

func checkPartition(s *scenario) error {
	var err error
	s.tree.Walk(func(n quadtree.NodeInfo) bool {
		if n.Leaf || err != nil {
			return err == nil
		}

		var area float32
		for _, id := range n.Children {
			c, _ := s.tree.Node(id)
			if !n.Bounds.Contains(c.Bounds) {
				err = errors.New("child is outside of its parent").
					WithTag("parent", n.Name).
					WithTag("child", c.Name)
				return false
			}
			area += c.Bounds.Area()
		}

		if area != n.Bounds.Area() {
			err = errors.New("children do not cover their parent").
				WithTag("parent", n.Name).
				WithTag("parent_area", n.Bounds.Area()).
				WithTag("children_area", area)
			return false
		}
		return true
	})
	return err
}

func checkInsert(s *scenario) error {
	s.tree.Insert(s.a)
	s.tree.Insert(s.b)
	s.tree.Insert(s.a)

	if err := requireMemberships(s.tree, s.a, 2); err != nil {
		return err
	}
	return requireMemberships(s.tree, s.b, 5)
}

func checkCullNorthWest(s *scenario) error {
	return requireVisible(s,
		mgl32.Vec3{-1000, -1000, -1000},
		mgl32.Vec3{35, 1000, 35},
		"a", "b",
	)
}

func checkCullSouthEast(s *scenario) error {
	return requireVisible(s,
		mgl32.Vec3{65, -1000, 65},
		mgl32.Vec3{1000, 1000, 1000},
		"b",
	)
}

func checkRefresh(s *scenario) error {
	s.a.SetPosition(mgl32.Vec3{85, 0, 15})
	if !s.tree.Refresh(s.a) {
		return errors.New("moved object was not reinserted")
	}
	if s.tree.Refresh(s.a) {
		return errors.New("object was reinserted without moving")
	}

	if !s.tree.Contains(s.tree.Child(s.tree.Root(), geom.NorthEast), s.a) {
		return errors.New("moved object is not in its new quadrant")
	}
	return requireMemberships(s.tree, s.a, 2)
}

func checkRemove(s *scenario) error {
	s.tree.Remove(s.a)
	s.tree.Remove(s.a)

	if err := requireMemberships(s.tree, s.a, 0); err != nil {
		return err
	}

	var err error
	s.tree.Walk(func(n quadtree.NodeInfo) bool {
		if s.tree.Contains(n.ID, s.a) {
			err = errors.New("removed object is still in a node").
				WithTag("node", n.Name)
		}
		return err == nil
	})
	return err
}

func checkClose(s *scenario) error {
	if err := s.tree.Close(); err != nil {
		return err
	}
	if err := s.tree.Close(); err == nil {
		return errors.New("closing a closed tree did not fail")
	}
	if s.tree.Root() != quadtree.NoNode {
		return errors.New("closed tree still has a root")
	}
	return nil
}

func requireMemberships(tree *quadtree.Tree, o *models.Object, expected int) error {
	if n := len(tree.Nodes(o)); n != expected {
		return errors.New("unexpected membership count").
			WithTag("object", o.Name).
			WithTag("expected", expected).
			WithTag("count", n)
	}
	return nil
}

func requireVisible(s *scenario, min, max mgl32.Vec3, names ...string) error {
	cam := camera.New(camera.Config{
		FOV:    mgl32.DegToRad(45),
		Aspect: 1,
		Near:   1,
		Far:    100,
	})
	cam.Pin(camera.NewFrustumFromBox(min, max))
	cam.Reset()

	s.a.Culled = true
	s.b.Culled = true
	s.tree.Cull(cam)

	var visible []string
	for _, o := range cam.VisibleObjects() {
		visible = append(visible, o.Name)
	}
	slices.Sort(visible)

	if !slices.Equal(visible, names) {
		return errors.New("unexpected visible objects").
			WithTag("expected", names).
			WithTag("visible", visible)
	}

	for _, o := range []*models.Object{s.a, s.b} {
		if o.Culled == slices.Contains(names, o.Name) {
			return errors.New("culled flag does not match visibility").
				WithTag("object", o.Name).
				WithTag("culled", o.Culled)
		}
	}
	return nil
}

// HandleSmokeTest runs the smoke test and writes its results. It responds
// with a 500 status code when a check fails.
func HandleSmokeTest(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := Run(ctx)

		entry := logs.WithTag("passed", res.Passed).
			WithTag("duration", res.Duration)
		if res.Passed {
			entry.Info("smoke test passed")
		} else {
			entry.WithTag("checks", res.Checks).
				Warn(errors.New("smoke test failed"))
		}

		b, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if !res.Passed {
			w.WriteHeader(http.StatusInternalServerError)
		}
		w.Write(b)
	}
}
