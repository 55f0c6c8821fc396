// Package geo builds buffer polygons around a point and filters points that
// fall inside them.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

type Unit string

const (
	// Kilometers buffers geodesically on the sphere.
	Kilometers Unit = "kilometers"
	// Degrees buffers as a planar circle in lon/lat space.
	Degrees Unit = "degrees"
)

const DefaultSteps = 64

func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "km", "kilometers", "kilometres":
		return Kilometers, nil
	case "deg", "degrees":
		return Degrees, nil
	default:
		return "", fmt.Errorf("unknown radius unit %q (want kilometers|degrees)", s)
	}
}

// Buffer returns a closed single-ring polygon of steps vertices, each radius
// away from center under unit's metric.
func Buffer(center orb.Point, radius float64, unit Unit, steps int) (orb.Polygon, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("buffer radius must be positive, got %v", radius)
	}
	if steps < 3 {
		steps = DefaultSteps
	}

	ring := make(orb.Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		bearing := 360 * float64(i) / float64(steps)
		switch unit {
		case Kilometers:
			ring = append(ring, orbgeo.PointAtBearingAndDistance(center, bearing, radius*1000))
		case Degrees:
			rad := bearing * math.Pi / 180
			ring = append(ring, orb.Point{
				center[0] + radius*math.Sin(rad),
				center[1] + radius*math.Cos(rad),
			})
		default:
			return nil, fmt.Errorf("unsupported unit %q", unit)
		}
	}
	ring = append(ring, ring[0])

	// bearings run clockwise; GeoJSON exterior rings are counter-clockwise
	ring.Reverse()
	return orb.Polygon{ring}, nil
}

// Within returns the indexes of pts inside poly, in input order.
func Within(poly orb.Polygon, pts []orb.Point) []int {
	if len(poly) == 0 {
		return nil
	}
	b := poly.Bound()
	out := make([]int, 0)
	for i, p := range pts {
		if !b.Contains(p) {
			continue
		}
		if planar.PolygonContains(poly, p) {
			out = append(out, i)
		}
	}
	return out
}

// Contains reports whether p lies inside poly.
func Contains(poly orb.Polygon, p orb.Point) bool {
	if len(poly) == 0 || !poly.Bound().Contains(p) {
		return false
	}
	return planar.PolygonContains(poly, p)
}
