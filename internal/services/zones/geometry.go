package zones

import (
	"math"

	"kepler-sentinel-go/internal/models"
)

// edgeEpsilon is the tolerance used when classifying a point as lying on an edge
const edgeEpsilon = 1e-9

// Contains reports whether point lies inside the zone polygon.
// The region is closed: points on an edge or vertex are inside, so an object
// resting exactly on the border does not flap between inside and outside.
func Contains(zone models.Zone, point models.Point) bool {
	return polygonContains(zone.Polygon, point)
}

func polygonContains(poly []models.Point, p models.Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if onSegment(poly[i], poly[(i+1)%n], p) {
			return true
		}
	}

	// even-odd ray casting towards +X
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xCross := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

func cross(o, a, b models.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func onSegment(a, b, p models.Point) bool {
	scale := math.Max(1, math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)))
	if math.Abs(cross(a, b, p)) > edgeEpsilon*scale*scale {
		return false
	}
	return p.X >= math.Min(a.X, b.X)-edgeEpsilon && p.X <= math.Max(a.X, b.X)+edgeEpsilon &&
		p.Y >= math.Min(a.Y, b.Y)-edgeEpsilon && p.Y <= math.Max(a.Y, b.Y)+edgeEpsilon
}

// collinear reports whether all points lie on one line (or coincide)
func collinear(poly []models.Point) bool {
	if len(poly) < 3 {
		return true
	}
	origin := poly[0]
	var base models.Point
	found := false
	for _, p := range poly[1:] {
		if p != origin {
			base = p
			found = true
			break
		}
	}
	if !found {
		return true
	}
	for _, p := range poly[1:] {
		if math.Abs(cross(origin, base, p)) > edgeEpsilon {
			return false
		}
	}
	return true
}
