package geo

import (
	"github.com/paulmach/orb"
)

// Polygon is a closed ring of vertices, stored as a github.com/paulmach/orb
// ring (lon, lat order, the library's convention) so bounding-box rejection
// and downstream geometry tooling can operate on the same value the KML
// loader produces. Containment itself is evaluated by Polygon.Contains below
// rather than orb's own point-in-ring test, because spec classifies
// on-edge points as inside and orb's ray casting leaves that case
// undefined.
type Polygon struct {
	Ring  orb.Ring
	bound orb.Bound
}

// NewPolygon builds a Polygon from a closed or open ring of Points. The
// ring is closed automatically if the first and last vertex differ.
func NewPolygon(vertices []Point) Polygon {
	ring := make(orb.Ring, 0, len(vertices)+1)
	for _, v := range vertices {
		ring = append(ring, orb.Point{v.Lon, v.Lat})
	}
	if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return Polygon{Ring: ring, bound: ring.Bound()}
}

// Contains reports whether p lies inside the polygon using the even-odd
// (ray casting) rule over planar lat/lon coordinates — regions are local
// and small enough that treating degrees as a plane is accurate to the
// spec's tolerance. Points exactly on an edge classify as inside.
func (poly Polygon) Contains(p Point) bool {
	// NewPolygon always closes the ring, so a real polygon needs at least
	// three distinct vertices plus the closing one.
	if len(poly.Ring) < 4 {
		return false
	}

	// Fast bounding-box rejection using orb's precomputed bound.
	op := orb.Point{p.Lon, p.Lat}
	if !poly.bound.Contains(op) {
		return false
	}

	inside := false
	n := len(poly.Ring)
	for i := 0; i < n; i++ {
		a := poly.Ring[i]
		b := poly.Ring[(i+1)%n]

		if onSegment(a, b, op) {
			return true
		}

		// Ray casting: count edges that straddle the horizontal ray cast
		// from p to +longitude. Strict inequality on the y-crossing test
		// avoids double-counting vertices the ray passes exactly through.
		ay, by := a[1], b[1]
		if (ay > p.Lat) != (by > p.Lat) {
			xCross := a[0] + (p.Lat-ay)/(by-ay)*(b[0]-a[0])
			if p.Lon < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// onSegment reports whether point q lies on the closed segment a-b, within
// a small epsilon to absorb floating point error.
func onSegment(a, b, q orb.Point) bool {
	const eps = 1e-9

	cross := (b[0]-a[0])*(q[1]-a[1]) - (b[1]-a[1])*(q[0]-a[0])
	if cross > eps || cross < -eps {
		return false
	}

	minX, maxX := a[0], b[0]
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := a[1], b[1]
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return q[0] >= minX-eps && q[0] <= maxX+eps && q[1] >= minY-eps && q[1] <= maxY+eps
}
