package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	h3 "github.com/uber/h3-go/v4"
)

// ringPadding expands the covering by k rings so points in cells straddling
// the polygon boundary are never missed.
const ringPadding = 2

type Mapper struct {
	res     int
	cellKm2 float64
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	area, err := h3.HexagonAreaAvgKm2(res)
	if err != nil {
		return nil, fmt.Errorf("h3 cell area: %w", err)
	}
	return &Mapper{res: res, cellKm2: area}, nil
}

func (m *Mapper) Res() int { return m.res }

func (m *Mapper) CellForPoint(p orb.Point) (h3.Cell, error) {
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p[1], Lng: p[0]}, m.res)
	if err != nil {
		return 0, fmt.Errorf("h3 cell for %v: %w", p, err)
	}
	return c, nil
}

// EstimateCells approximates how many cells CoverPolygon would return, from
// the geodesic area of the polygon's bound. It is cheap and never allocates
// a cover.
func (m *Mapper) EstimateCells(poly orb.Polygon) float64 {
	if len(poly) == 0 {
		return 0
	}
	km2 := geo.Area(poly.Bound().ToPolygon()) / 1e6
	return km2 / m.cellKm2
}

// CoverPolygon returns sorted, unique cells covering poly: polyfill cells,
// the cells of every exterior vertex, padded by ringPadding rings.
func (m *Mapper) CoverPolygon(poly orb.Polygon) ([]h3.Cell, error) {
	if len(poly) == 0 {
		return nil, errors.New("empty polygon")
	}
	outer := toLoop(poly[0])
	if len(outer) < 3 {
		return nil, errors.New("outer ring has < 3 distinct vertices")
	}
	var holes []h3.GeoLoop
	for i := 1; i < len(poly); i++ {
		h := toLoop(poly[i])
		if len(h) < 3 {
			return nil, fmt.Errorf("hole %d has < 3 distinct vertices", i-1)
		}
		holes = append(holes, h)
	}

	filled, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer, Holes: holes}, m.res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	seeds := make(map[h3.Cell]struct{}, len(filled)+len(outer))
	for _, c := range filled {
		seeds[c] = struct{}{}
	}
	for _, v := range poly[0] {
		c, err := m.CellForPoint(v)
		if err != nil {
			return nil, err
		}
		seeds[c] = struct{}{}
	}

	out := make(map[h3.Cell]struct{}, len(seeds)*4)
	for c := range seeds {
		disk, err := h3.GridDisk(c, ringPadding)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		for _, d := range disk {
			out[d] = struct{}{}
		}
	}

	cells := make([]h3.Cell, 0, len(out))
	for c := range out {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells, nil
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// Convert an orb ring to an h3.GeoLoop (in degrees).
// If the ring is explicitly closed (last == first), drop the trailing duplicate.
func toLoop(ring orb.Ring) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, p := range ring {
		loop = append(loop, h3.LatLng{Lat: p[1], Lng: p[0]})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}
