package quadtree

import (
	"github.com/aukilabs/quadcull/geom"
)

type DebugInfo struct {
	Bounds      geom.Rect        `json:"bounds"`
	MaxDepth    int              `json:"max_depth"`
	NodeCount   int              `json:"node_count"`
	ObjectCount int              `json:"object_count"`
	Memberships int              `json:"memberships"`
	Levels      []LevelDebugInfo `json:"levels"`

	// The nodes holding at least one object.
	Occupied []NodeInfo `json:"occupied,omitempty"`
}

type LevelDebugInfo struct {
	Level         int `json:"level"`
	NodeCount     int `json:"node_count"`
	OccupiedCount int `json:"occupied_count"`
	Memberships   int `json:"memberships"`
	MaxOccupancy  int `json:"max_occupancy"`
}

// DebugInfo returns the occupancy of the tree. Occupied nodes are listed when
// withNodes is true.
func (t *Tree) DebugInfo(withNodes bool) DebugInfo {
	if t.closed {
		return DebugInfo{}
	}

	info := DebugInfo{
		Bounds:      t.nodes[0].bounds,
		MaxDepth:    t.maxDepth,
		NodeCount:   len(t.nodes),
		ObjectCount: len(t.memberships),
		Levels:      make([]LevelDebugInfo, t.maxDepth+1),
	}

	for i := range info.Levels {
		info.Levels[i].Level = i
	}

	for i := range t.nodes {
		n := &t.nodes[i]
		occupancy := len(n.objects)

		l := &info.Levels[n.level]
		l.NodeCount++
		l.Memberships += occupancy
		info.Memberships += occupancy

		if occupancy == 0 {
			continue
		}

		l.OccupiedCount++
		if occupancy > l.MaxOccupancy {
			l.MaxOccupancy = occupancy
		}

		if withNodes {
			node, _ := t.Node(NodeID(i))
			info.Occupied = append(info.Occupied, node)
		}
	}

	return info
}
