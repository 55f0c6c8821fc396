package datasource

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/keys"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
)

var (
	ErrUnknownLayer = errors.New("unknown bikeway layer")
	ErrNoBikeway    = errors.New("no bikeway at point")
)

// BikewayLayer is one municipality's cycling network.
type BikewayLayer struct {
	Name         string              `json:"name"`
	Municipality string              `json:"municipality"`
	Schema       model.BikewaySchema `json:"schema"`
	URL          string              `json:"url"`
}

// municipalities whose layers do not use the regional name/type/municipality
// properties
var bikewaySchemas = map[string]model.BikewaySchema{
	"peel":   model.BikewayPeel,
	"durham": model.BikewayNamed,
	"ajax":   model.BikewayFacility,
	"whitby": model.BikewaySegment,
}

// BikewayLayers turns a municipality→URL map into layers, Toronto first.
func BikewayLayers(urls map[string]string) []BikewayLayer {
	out := make([]BikewayLayer, 0, len(urls))
	for _, m := range municipalityOrder(urls) {
		schema, ok := bikewaySchemas[m]
		if !ok {
			schema = model.BikewayRegional
		}
		out = append(out, BikewayLayer{
			Name:         fmt.Sprintf("bikeways-%s", m),
			Municipality: m,
			Schema:       schema,
			URL:          urls[m],
		})
	}
	return out
}

// Bikeway is one line feature of a network. ID is the feature's ordinal in
// the layer.
type Bikeway struct {
	ID       int                  `json:"id"`
	Details  model.BikewayDetails `json:"details"`
	Geometry orb.Geometry         `json:"-"`

	merc  orb.Geometry
	bound orb.Bound
}

type BikewayNetwork struct {
	Layer    BikewayLayer
	Features []Bikeway
}

func (n *BikewayNetwork) Len() int { return len(n.Features) }

// Feature returns the feature with the given ordinal.
func (n *BikewayNetwork) Feature(id int) (Bikeway, error) {
	if id < 0 || id >= len(n.Features) {
		return Bikeway{}, fmt.Errorf("%w: %s feature %d", ErrNoBikeway, n.Layer.Name, id)
	}
	return n.Features[id], nil
}

// FeatureAt returns the feature closest to pt, if one lies within tolerance
// metres. Ties keep the lower ID.
func (n *BikewayNetwork) FeatureAt(pt orb.Point, tolerance float64) (Bikeway, error) {
	// web mercator stretches distances by 1/cos(lat)
	scale := math.Cos(pt.Lat() * math.Pi / 180)
	if scale <= 0 {
		return Bikeway{}, fmt.Errorf("%w: %v", ErrNoBikeway, pt)
	}
	tol := tolerance / scale
	pm := project.Point(pt, project.WGS84.ToMercator)

	best, bestD := -1, math.Inf(1)
	for i, f := range n.Features {
		if !f.bound.Pad(tol).Contains(pm) {
			continue
		}
		if d := planar.DistanceFrom(f.merc, pm); d <= tol && d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return Bikeway{}, fmt.Errorf("%w: %s near %v", ErrNoBikeway, n.Layer.Name, pt)
	}
	return n.Features[best], nil
}

func decodeBikeways(layer BikewayLayer, body []byte) (*BikewayNetwork, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fetcherr.Decode(layer.Name, err)
	}
	n := &BikewayNetwork{Layer: layer, Features: make([]Bikeway, 0, len(fc.Features))}
	for _, f := range fc.Features {
		if f.Geometry == nil || f.Geometry.Bound().IsEmpty() {
			continue
		}
		merc := project.Geometry(orb.Clone(f.Geometry), project.WGS84.ToMercator)
		n.Features = append(n.Features, Bikeway{
			ID:       len(n.Features),
			Details:  normalizeBikeway(layer, props(f.Properties)),
			Geometry: f.Geometry,
			merc:     merc,
			bound:    merc.Bound(),
		})
	}
	if len(n.Features) == 0 {
		return nil, fetcherr.Empty(layer.Name)
	}
	return n, nil
}

// LoadBikeways reads a layer through the dataset cache and keeps the
// decoded network alongside the amenity datasets.
func (c *Catalog) LoadBikeways(ctx context.Context, layer BikewayLayer) (*BikewayNetwork, error) {
	key := keys.Dataset(layer.Name, layer.URL)
	if n, ok := c.networks.Get(key); ok {
		return n, nil
	}
	body, err := c.store.GetOrLoad(ctx, layer.Name, layer.URL, func(ctx context.Context) ([]byte, error) {
		return c.exec.Fetch(ctx, layer.Name, layer.URL, nil)
	})
	if err != nil {
		return nil, err
	}
	n, err := decodeBikeways(layer, body)
	if err != nil {
		if ierr := c.store.Invalidate(ctx, layer.Name, layer.URL); ierr != nil {
			c.log.WarnContext(ctx, "dataset invalidate failed", "dataset", layer.Name, "err", ierr)
		}
		return nil, err
	}
	c.networks.Add(key, n)
	c.log.DebugContext(ctx, "bikeways decoded", "layer", layer.Name, "features", n.Len())
	return n, nil
}

func (c *Catalog) InvalidateBikeways(ctx context.Context, layer BikewayLayer) error {
	c.networks.Remove(keys.Dataset(layer.Name, layer.URL))
	return c.store.Invalidate(ctx, layer.Name, layer.URL)
}

// Bikeways serves a fixed set of cycling network layers by name.
type Bikeways struct {
	Catalog *Catalog
	List    []BikewayLayer
}

func (b Bikeways) Layers() []BikewayLayer { return b.List }

func (b Bikeways) Layer(name string) (BikewayLayer, error) {
	for _, l := range b.List {
		if l.Name == name {
			return l, nil
		}
	}
	return BikewayLayer{}, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

func (b Bikeways) Network(ctx context.Context, name string) (*BikewayNetwork, error) {
	l, err := b.Layer(name)
	if err != nil {
		return nil, err
	}
	return b.Catalog.LoadBikeways(ctx, l)
}
