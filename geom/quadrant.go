package geom

// Quadrant identifies one of the four subdivisions of a rectangle. Quadrants
// are listed in the order children are stored and visited.
type Quadrant int

const (
	NorthEast Quadrant = iota
	NorthWest
	SouthWest
	SouthEast
)

// Quadrants lists every quadrant in storage order.
var Quadrants = [4]Quadrant{NorthEast, NorthWest, SouthWest, SouthEast}

func (q Quadrant) String() string {
	switch q {
	case NorthEast:
		return "northeast"
	case NorthWest:
		return "northwest"
	case SouthWest:
		return "southwest"
	case SouthEast:
		return "southeast"
	default:
		return "unknown"
	}
}

// Split divides the rectangle into its four quadrants, indexed by Quadrant.
//
// The split point is offset from the min corner by the integer half of the
// width and depth (truncated), so odd sized rectangles give the extra unit to
// the east and south quadrants. The quadrants never overlap except on their
// shared edges and their union is exactly r. Split returns false when a
// truncated half extent is zero, in which case some quadrants would be empty.
func (r Rect) Split() ([4]Rect, bool) {
	halfX := float32(int(r.Width()) / 2)
	halfZ := float32(int(r.Depth()) / 2)

	var quads [4]Rect
	if halfX <= 0 || halfZ <= 0 {
		return quads, false
	}

	midX := r.MinX + halfX
	midZ := r.MinZ + halfZ

	quads[NorthEast] = Rect{MinX: midX, MinZ: r.MinZ, MaxX: r.MaxX, MaxZ: midZ}
	quads[NorthWest] = Rect{MinX: r.MinX, MinZ: r.MinZ, MaxX: midX, MaxZ: midZ}
	quads[SouthWest] = Rect{MinX: r.MinX, MinZ: midZ, MaxX: midX, MaxZ: r.MaxZ}
	quads[SouthEast] = Rect{MinX: midX, MinZ: midZ, MaxX: r.MaxX, MaxZ: r.MaxZ}

	for _, q := range quads {
		if !q.Valid() {
			return quads, false
		}
	}
	return quads, true
}
