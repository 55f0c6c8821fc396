package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/geo"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
)

func TestCatalogLoad_NormalizesShops(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[shopsURL] = shopsBody
	c := NewCatalog(logger.Discard(), f, newStore(), newMapper(t), 0, time.Minute)

	ds, err := c.Load(context.Background(), ShopSource(shopsURL))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("entries=%d want 2", ds.Len())
	}
	first := ds.Entries[0]
	if first.Kind != model.KindShop || first.Label != "Bike Shop A" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	d := first.Details.(model.ShopDetails)
	if d.Rental != "Yes" || d.Phone != "416-555-0100" {
		t.Fatalf("details not normalized: %+v", d)
	}
	if got := ds.Entries[1].Label; got != "Bike Shop 42" {
		t.Fatalf("synthesized label=%q want Bike Shop 42", got)
	}
}

func TestCatalogLoad_UsesCache(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[shopsURL] = shopsBody
	c := NewCatalog(logger.Discard(), f, newStore(), nil, 0, time.Minute)

	for range 3 {
		if _, err := c.Load(context.Background(), ShopSource(shopsURL)); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if n := f.count(shopsURL); n != 1 {
		t.Fatalf("origin calls=%d want 1", n)
	}
}

func TestCatalogLoad_DecodedCacheIsBounded(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[parkingURL] = parkingBody
	f.bodies[yorkURL] = yorkBody
	c := NewCatalog(logger.Discard(), f, newStore(), nil, 1, time.Minute)

	for _, src := range ParkingSources(map[string]string{"toronto": parkingURL, "york": yorkURL}) {
		if _, err := c.Load(context.Background(), src); err != nil {
			t.Fatalf("Load %s: %v", src.Name, err)
		}
	}
	if n := c.decoded.Len(); n != 1 {
		t.Fatalf("decoded datasets=%d want 1 with size 1", n)
	}
}

func TestCatalogLoad_ErrorKinds(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[shopsURL] = `not json`
	f.bodies[parkingURL] = `{"type":"FeatureCollection","features":[]}`
	f.errs[yorkURL] = fetcherr.Network("york", errors.New("dial tcp: refused"))
	c := NewCatalog(logger.Discard(), f, newStore(), nil, 0, time.Minute)
	ctx := context.Background()

	if _, err := c.Load(ctx, ShopSource(shopsURL)); fetcherr.KindOf(err) != fetcherr.KindDecode {
		t.Fatalf("bad body: kind=%v err=%v", fetcherr.KindOf(err), err)
	}
	if _, err := c.Load(ctx, Source{Name: "p", Kind: model.KindParking, URL: parkingURL}); fetcherr.KindOf(err) != fetcherr.KindEmptyResult {
		t.Fatalf("empty collection: kind=%v err=%v", fetcherr.KindOf(err), err)
	}
	if _, err := c.Load(ctx, Source{Name: "y", Kind: model.KindParking, URL: yorkURL}); fetcherr.KindOf(err) != fetcherr.KindNetwork {
		t.Fatalf("network: kind=%v err=%v", fetcherr.KindOf(err), err)
	}

	// decode failures are not cached
	f.bodies[shopsURL] = shopsBody
	if _, err := c.Load(ctx, ShopSource(shopsURL)); err != nil {
		t.Fatalf("reload after fix: %v", err)
	}
}

func bigBuffer(t *testing.T) orb.Polygon {
	t.Helper()
	poly, err := geo.Buffer(orb.Point{-79.4, 43.75}, 50, geo.Kilometers, geo.DefaultSteps)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	return poly
}

func TestCatalogFinder_MergesParkingSchemas(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[parkingURL] = parkingBody
	f.bodies[yorkURL] = yorkBody
	c := NewCatalog(logger.Discard(), f, newStore(), newMapper(t), 0, time.Minute)

	srcs := ParkingSources(map[string]string{"york": yorkURL, "toronto": parkingURL})
	if srcs[0].Municipality != "toronto" {
		t.Fatalf("toronto should load first, got %+v", srcs)
	}
	hits, err := CatalogFinder{Catalog: c, Sources: srcs}.Find(context.Background(), bigBuffer(t))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits=%d want 3", len(hits))
	}

	ring := hits[0].Details.(model.ParkingDetails)
	if ring.Schema != model.ParkingToronto || ring.Capacity == nil || *ring.Capacity != 2 {
		t.Fatalf("toronto parking not normalized: %+v", ring)
	}
	if hits[0].Coord != (orb.Point{-79.382, 43.652}) {
		t.Fatalf("multipoint should use its first point, got %v", hits[0].Coord)
	}
	blank := hits[1].Details.(model.ParkingDetails)
	if blank.Name != "Bike Parking 8" || blank.Capacity != nil {
		t.Fatalf("placeholder name not synthesized: %+v", blank)
	}
	york := hits[2].Details.(model.ParkingDetails)
	if york.Schema != model.ParkingMunicipal || york.Location != "Main St" || york.Facility != "Bike rack" {
		t.Fatalf("municipal parking not normalized: %+v", york)
	}
	if york.Capacity == nil || *york.Capacity != 6 {
		t.Fatalf("string capacity not parsed: %+v", york.Capacity)
	}
}

func TestCatalogFinder_PartialFailure(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[parkingURL] = parkingBody
	f.errs[yorkURL] = fetcherr.Network("york", errors.New("timeout"))
	c := NewCatalog(logger.Discard(), f, newStore(), nil, 0, time.Minute)

	hits, err := CatalogFinder{
		Catalog: c,
		Sources: ParkingSources(map[string]string{"toronto": parkingURL, "york": yorkURL}),
	}.Find(context.Background(), bigBuffer(t))
	if fetcherr.KindOf(err) != fetcherr.KindNetwork {
		t.Fatalf("err=%v want network", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits=%d want the toronto ones", len(hits))
	}
}

func TestDatasetWithin_IndexMatchesBruteForce(t *testing.T) {
	f := newFakeFetcher()
	f.bodies[parkingURL] = parkingBody
	ctx := context.Background()
	src := Source{Name: "t", Kind: model.KindParking, Municipality: "toronto", URL: parkingURL}

	indexed, err := NewCatalog(logger.Discard(), f, newStore(), newMapper(t), 0, time.Minute).Load(ctx, src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if indexed.index == nil {
		t.Fatalf("expected an h3 index")
	}
	plain, err := NewCatalog(logger.Discard(), f, newStore(), nil, 0, time.Minute).Load(ctx, src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	poly, err := geo.Buffer(orb.Point{-79.38, 43.65}, 0.5, geo.Kilometers, geo.DefaultSteps)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	a, err := indexed.Within(poly)
	if err != nil {
		t.Fatalf("Within: %v", err)
	}
	b, _ := plain.Within(poly)
	if len(a) != len(b) || len(a) != 2 {
		t.Fatalf("indexed=%d plain=%d want 2 each", len(a), len(b))
	}
	for i := range a {
		if a[i].Coord != b[i].Coord {
			t.Fatalf("order differs at %d: %v vs %v", i, a[i].Coord, b[i].Coord)
		}
	}
}

func TestWithin_NilDataset(t *testing.T) {
	var ds *Dataset
	got, err := ds.Within(orb.Polygon{})
	if err != nil || got != nil {
		t.Fatalf("nil dataset: got=%v err=%v", got, err)
	}
}
