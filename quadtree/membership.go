package quadtree

import (
	"slices"
	"strings"

	"github.com/aukilabs/quadcull/models"
)

// membership is the object registered under a name and the nodes it is
// resident in, in insertion order.
type membership struct {
	object *models.Object
	nodes  []NodeID
}

func (n *node) find(name string) (int, bool) {
	return slices.BinarySearchFunc(n.objects, name, func(o *models.Object, name string) int {
		return strings.Compare(o.Name, name)
	})
}

// owns reports whether the name of o is free or already registered by o.
func (t *Tree) owns(o *models.Object) bool {
	m, ok := t.memberships[o.Name]
	return !ok || m.object == o
}

// Insert adds the object to every node overlapping its footprint.
//
// Objects are identified by name. An object whose name is held by another
// object of the tree is not added.
func (t *Tree) Insert(o *models.Object) {
	t.AddObject(t.Root(), o)
}

// AddObject adds the object to the node and to every descendant overlapping
// its footprint.
//
// When the node does not overlap the footprint but still holds the object,
// the object is removed from the node and its descendants, then added again
// starting at the parent. Adding an object to a node that already holds it
// does nothing.
func (t *Tree) AddObject(id NodeID, o *models.Object) {
	if o == nil || !t.valid(id) || !t.owns(o) {
		return
	}

	n := &t.nodes[id]
	footprint := o.Footprint()
	overlaps := n.bounds.Overlaps(footprint)
	i, resident := n.find(o.Name)

	switch {
	case !overlaps && resident:
		parent := n.parent
		t.RemoveObject(id, o)
		if parent != NoNode {
			t.AddObject(parent, o)
		}

	case overlaps && !resident:
		n.objects = slices.Insert(n.objects, i, o)
		t.link(o, id)

		if n.leaf {
			return
		}

		for _, c := range n.children {
			if t.nodes[c].bounds.Overlaps(footprint) {
				t.AddObject(c, o)
			}
		}
	}
}

// Remove removes the object from every node.
func (t *Tree) Remove(o *models.Object) {
	t.RemoveObject(t.Root(), o)
}

// RemoveObject removes the object from the node and its descendants. Nothing
// happens when the node does not hold the object.
func (t *Tree) RemoveObject(id NodeID, o *models.Object) {
	if o == nil || !t.valid(id) || !t.owns(o) {
		return
	}

	n := &t.nodes[id]
	i, resident := n.find(o.Name)
	if !resident {
		return
	}

	n.objects = slices.Delete(n.objects, i, i+1)
	t.unlink(o.Name, id)

	if n.leaf {
		return
	}

	for _, c := range n.children {
		t.RemoveObject(c, o)
	}
}

func (t *Tree) link(o *models.Object, id NodeID) {
	m, ok := t.memberships[o.Name]
	if !ok {
		m = &membership{object: o}
		t.memberships[o.Name] = m
	}
	m.nodes = append(m.nodes, id)
}

func (t *Tree) unlink(name string, id NodeID) {
	m, ok := t.memberships[name]
	if !ok {
		return
	}

	if i := slices.Index(m.nodes, id); i >= 0 {
		m.nodes = slices.Delete(m.nodes, i, i+1)
	}
	if len(m.nodes) == 0 {
		delete(t.memberships, name)
	}
}

// Refresh updates the memberships of an object after its footprint changed.
//
// The memberships are stale when a node holding the object no longer
// overlaps its footprint, or when the footprint overlaps a child of such a
// node that does not hold the object yet. Stale objects are removed from the
// whole tree and inserted again from the root. An object held by no node is
// inserted when it overlaps the root.
//
// Refresh returns whether the object was reinserted.
func (t *Tree) Refresh(o *models.Object) bool {
	if o == nil || t.closed {
		return false
	}

	if !t.stale(o) {
		return false
	}

	t.Remove(o)
	t.Insert(o)
	instrumentReinsert()
	return true
}

func (t *Tree) stale(o *models.Object) bool {
	footprint := o.Footprint()

	m, ok := t.memberships[o.Name]
	if !ok {
		return t.nodes[0].bounds.Overlaps(footprint)
	}
	if m.object != o {
		return false
	}

	for _, id := range m.nodes {
		n := &t.nodes[id]
		if !n.bounds.Overlaps(footprint) {
			return true
		}

		if n.leaf {
			continue
		}

		for _, c := range n.children {
			child := &t.nodes[c]
			if !child.bounds.Overlaps(footprint) {
				continue
			}
			if _, resident := child.find(o.Name); !resident {
				return true
			}
		}
	}
	return false
}

// Nodes returns the ids of the nodes holding the object, in the order the
// object was added to them.
func (t *Tree) Nodes(o *models.Object) []NodeID {
	if o == nil || t.closed {
		return nil
	}

	m, ok := t.memberships[o.Name]
	if !ok || m.object != o {
		return nil
	}
	return slices.Clone(m.nodes)
}

// Contains reports whether the node holds the object.
func (t *Tree) Contains(id NodeID, o *models.Object) bool {
	if o == nil || !t.valid(id) {
		return false
	}

	n := &t.nodes[id]
	i, resident := n.find(o.Name)
	return resident && n.objects[i] == o
}

// Objects returns the objects held by the node, sorted by name.
func (t *Tree) Objects(id NodeID) []*models.Object {
	if !t.valid(id) {
		return nil
	}
	return slices.Clone(t.nodes[id].objects)
}

// ObjectCount returns the number of distinct objects held by the tree.
func (t *Tree) ObjectCount() int {
	return len(t.memberships)
}
