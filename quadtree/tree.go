// Package quadtree implements a fixed depth quadtree indexing objects by their
// ground footprint, and the culling pass that finds the objects visible from
// a camera.
//
// The tree is built once, top-down, and never rebalanced. Nodes live in an
// arena and reference each other by NodeID. An object is resident in every
// node whose bounds overlap its footprint, from the root down to the leaves.
//
// A Tree is not safe for concurrent use.
package quadtree

import (
	"fmt"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/geom"
	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	ErrTypeInvalidBounds = "invalid_bounds"
	ErrTypeInvalidDepth  = "invalid_depth"
	ErrTypeTreeClosed    = "tree_closed"
)

// MaxDepthLimit is the deepest tree New accepts.
const MaxDepthLimit = 12

// NodeID is the index of a node in the tree arena.
type NodeID int32

// NoNode is the parent of the root and the child of a leaf.
const NoNode NodeID = -1

type node struct {
	name     string
	level    int
	bounds   geom.Rect
	center   mgl32.Vec3
	radius   float32
	parent   NodeID
	children [4]NodeID
	leaf     bool

	// Sorted by name, then id.
	objects []*models.Object
}

// Option configures a tree.
type Option func(*Tree)

// WithFeatureFlags sets the flags consulted by culling passes.
func WithFeatureFlags(f featureflag.FeatureFlag) Option {
	return func(t *Tree) {
		t.flags = f
	}
}

type Tree struct {
	maxDepth int
	nodes    []node
	flags    featureflag.FeatureFlag
	closed   bool

	// Memberships by object name. Kept in sync with node objects by every
	// membership change.
	memberships map[string]*membership
}

// New builds a tree partitioning bounds down to maxDepth. A maxDepth of 0
// gives a single leaf root.
//
// It returns an error when bounds are not finite or have no area, or when a
// node above maxDepth is too small to be split in four non empty quadrants.
func New(bounds geom.Rect, maxDepth int, options ...Option) (*Tree, error) {
	if !bounds.Valid() {
		return nil, errors.New("tree bounds must be finite with positive extents").
			WithType(ErrTypeInvalidBounds).
			WithTag("bounds", bounds.String())
	}

	if maxDepth < 0 || maxDepth > MaxDepthLimit {
		return nil, errors.New("tree depth is out of range").
			WithType(ErrTypeInvalidDepth).
			WithTag("max_depth", maxDepth).
			WithTag("limit", MaxDepthLimit)
	}

	t := &Tree{
		maxDepth:    maxDepth,
		nodes:       make([]node, 0, NodeCount(maxDepth)),
		memberships: make(map[string]*membership),
	}

	for _, o := range options {
		o(t)
	}

	if _, err := t.build(bounds, 0, NoNode); err != nil {
		return nil, err
	}

	instrumentTreeNodes(len(t.nodes))
	return t, nil
}

// NodeCount returns the number of nodes of a tree of the given depth.
func NodeCount(maxDepth int) int {
	count := 0
	levelCount := 1
	for l := 0; l <= maxDepth; l++ {
		count += levelCount
		levelCount *= 4
	}
	return count
}

func (t *Tree) build(bounds geom.Rect, level int, parent NodeID) (NodeID, error) {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{
		name:     fmt.Sprintf("L%d:X%gY%g", level, bounds.MinX, bounds.MinZ),
		level:    level,
		bounds:   bounds,
		center:   bounds.Center(),
		radius:   bounds.BoundingRadius(),
		parent:   parent,
		children: [4]NodeID{NoNode, NoNode, NoNode, NoNode},
		leaf:     level == t.maxDepth,
	})

	if level == t.maxDepth {
		return id, nil
	}

	quads, ok := bounds.Split()
	if !ok {
		return NoNode, errors.New("node is too small to be split").
			WithType(ErrTypeInvalidBounds).
			WithTag("node", t.nodes[id].name).
			WithTag("bounds", bounds.String()).
			WithTag("max_depth", t.maxDepth)
	}

	for _, q := range geom.Quadrants {
		child, err := t.build(quads[q], level+1, id)
		if err != nil {
			return NoNode, err
		}
		t.nodes[id].children[q] = child
	}
	return id, nil
}

// Root returns the id of the root node, or NoNode when the tree is closed.
func (t *Tree) Root() NodeID {
	if t.closed {
		return NoNode
	}
	return 0
}

func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

// Bounds returns the bounds of the root node.
func (t *Tree) Bounds() geom.Rect {
	if t.closed {
		return geom.Rect{}
	}
	return t.nodes[0].bounds
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) valid(id NodeID) bool {
	return !t.closed && id >= 0 && int(id) < len(t.nodes)
}

// NodeInfo is a read-only view of a node.
type NodeInfo struct {
	ID          NodeID     `json:"id"`
	Name        string     `json:"name"`
	Level       int        `json:"level"`
	Bounds      geom.Rect  `json:"bounds"`
	Center      mgl32.Vec3 `json:"center"`
	Radius      float32    `json:"radius"`
	Parent      NodeID     `json:"parent"`
	Children    [4]NodeID  `json:"children"`
	Leaf        bool       `json:"leaf"`
	ObjectCount int        `json:"object_count"`
}

// Node returns a view of the node with the given id.
func (t *Tree) Node(id NodeID) (NodeInfo, bool) {
	if !t.valid(id) {
		return NodeInfo{}, false
	}

	n := &t.nodes[id]
	return NodeInfo{
		ID:          id,
		Name:        n.name,
		Level:       n.level,
		Bounds:      n.bounds,
		Center:      n.center,
		Radius:      n.radius,
		Parent:      n.parent,
		Children:    n.children,
		Leaf:        n.leaf,
		ObjectCount: len(n.objects),
	}, true
}

// Child returns the child of a node in the given quadrant. It returns NoNode
// for leaves.
func (t *Tree) Child(id NodeID, q geom.Quadrant) NodeID {
	if !t.valid(id) || q < geom.NorthEast || q > geom.SouthEast {
		return NoNode
	}
	return t.nodes[id].children[q]
}

// Walk visits nodes depth first, parents before children, in quadrant order.
// Children of a node are skipped when fn returns false for it.
func (t *Tree) Walk(fn func(NodeInfo) bool) {
	if t.closed {
		return
	}
	t.walk(0, fn)
}

func (t *Tree) walk(id NodeID, fn func(NodeInfo) bool) {
	info, _ := t.Node(id)
	if !fn(info) || info.Leaf {
		return
	}

	for _, c := range info.Children {
		t.walk(c, fn)
	}
}

// Close releases the nodes and memberships of the tree. Objects are left
// untouched. Closing a tree twice returns an error, and every operation on a
// closed tree does nothing.
func (t *Tree) Close() error {
	if t.closed {
		return errors.New("tree is already closed").
			WithType(ErrTypeTreeClosed)
	}

	instrumentTreeNodes(-len(t.nodes))

	for i := len(t.nodes) - 1; i >= 0; i-- {
		t.nodes[i].objects = nil
	}
	t.nodes = nil
	t.memberships = nil
	t.closed = true
	return nil
}

func (t *Tree) Closed() bool {
	return t.closed
}
