// Package datasource loads the amenity datasets searched around a clicked
// point and normalizes their per-source property schemas.
package datasource

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/geo"
	"github.com/mohammed-shakir/bikeways-nearby/internal/mapper"
)

type Source struct {
	Name         string
	Kind         model.Kind
	Municipality string
	URL          string
}

// Dataset is a normalized point set with an optional spatial index.
type Dataset struct {
	Source  Source
	Entries []model.ResultEntry
	points  []orb.Point
	index   mapper.Interface
}

func newDataset(src Source, entries []model.ResultEntry) *Dataset {
	pts := make([]orb.Point, len(entries))
	for i, e := range entries {
		pts[i] = e.Coord
	}
	return &Dataset{Source: src, Entries: entries, points: pts}
}

func (d *Dataset) Len() int { return len(d.Entries) }

func (d *Dataset) Points() []orb.Point { return d.points }

// Within returns the entries inside poly in dataset order.
func (d *Dataset) Within(poly orb.Polygon) ([]model.ResultEntry, error) {
	if d == nil || len(d.Entries) == 0 {
		return nil, nil
	}
	idx := make([]int, 0)
	if d.index != nil {
		cand, err := d.index.Candidates(poly)
		if err != nil {
			return nil, fmt.Errorf("%s candidates: %w", d.Source.Name, err)
		}
		for _, i := range cand {
			if geo.Contains(poly, d.points[i]) {
				idx = append(idx, i)
			}
		}
	} else {
		idx = geo.Within(poly, d.points)
	}

	out := make([]model.ResultEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, d.Entries[i])
	}
	return out, nil
}

// pointOf reduces any geometry to a representative point.
func pointOf(g orb.Geometry) (orb.Point, bool) {
	switch t := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return t, true
	case orb.MultiPoint:
		if len(t) == 0 {
			return orb.Point{}, false
		}
		return t[0], true
	default:
		b := g.Bound()
		if b.IsEmpty() {
			return orb.Point{}, false
		}
		return b.Center(), true
	}
}

// decodeAmenities parses a GeoJSON FeatureCollection and normalizes each
// feature for src.Kind.
func decodeAmenities(src Source, body []byte) ([]model.ResultEntry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fetcherr.Decode(src.Name, err)
	}
	out := make([]model.ResultEntry, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := pointOf(f.Geometry)
		if !ok {
			continue
		}
		p := props(f.Properties)
		e := model.ResultEntry{
			Kind:   src.Kind,
			Source: src.Name,
			Coord:  pt,
			Props:  map[string]any(f.Properties),
		}
		switch src.Kind {
		case model.KindShop:
			e.Details = normalizeShop(p, f.ID, i)
		case model.KindParking:
			e.Details = normalizeParking(src.Municipality, p, f.ID, i)
		default:
			return nil, fmt.Errorf("decode %s: kind %q is not a GeoJSON amenity", src.Name, src.Kind)
		}
		e.Label = e.Details.Label()
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, fetcherr.Empty(src.Name)
	}
	return out, nil
}
