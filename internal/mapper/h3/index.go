package h3mapper

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/bikeways-nearby/internal/mapper"
)

// MaxCoverCells caps the cover built for one lookup. Larger polygons scan
// every point instead.
const MaxCoverCells = 20000

// Index buckets a fixed point set by H3 cell.
type Index struct {
	m     *Mapper
	cells map[h3.Cell][]int
	n     int
}

var _ mapper.Interface = (*Index)(nil)

func NewIndex(m *Mapper, pts []orb.Point) (*Index, error) {
	ix := &Index{m: m, cells: make(map[h3.Cell][]int), n: len(pts)}
	for i, p := range pts {
		c, err := m.CellForPoint(p)
		if err != nil {
			return nil, fmt.Errorf("index point %d: %w", i, err)
		}
		ix.cells[c] = append(ix.cells[c], i)
	}
	return ix, nil
}

func (ix *Index) Len() int { return ix.n }

// Candidates returns ascending point indexes in cells covering poly. When
// the cover would hold more cells than the index has points, or more than
// MaxCoverCells, every index is returned and the caller's exact test does
// the work.
func (ix *Index) Candidates(poly orb.Polygon) ([]int, error) {
	if ix.n == 0 {
		return nil, nil
	}
	if ix.coverTooLarge(poly) {
		return ix.all(), nil
	}
	cover, err := ix.m.CoverPolygon(poly)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, c := range cover {
		out = append(out, ix.cells[c]...)
	}
	sort.Ints(out)
	return out, nil
}

func (ix *Index) coverTooLarge(poly orb.Polygon) bool {
	return ix.m.EstimateCells(poly) > float64(min(ix.n, MaxCoverCells))
}

func (ix *Index) all() []int {
	out := make([]int, ix.n)
	for i := range out {
		out[i] = i
	}
	return out
}
