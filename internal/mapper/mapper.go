// Package mapper narrows point datasets to the points near a search polygon.
package mapper

import "github.com/paulmach/orb"

// Interface returns indexes of points that may lie inside poly. Callers still
// run an exact containment test; implementations must never omit a point
// that is inside.
type Interface interface {
	Candidates(poly orb.Polygon) ([]int, error)
	Len() int
}
