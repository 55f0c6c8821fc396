package workflow

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/datasetstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/datasource"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
	h3mapper "github.com/mohammed-shakir/bikeways-nearby/internal/mapper/h3"
)

type cannedFetcher map[string]string

func (f cannedFetcher) Fetch(_ context.Context, upstream, rawURL string, _ url.Values) ([]byte, error) {
	b, ok := f[rawURL]
	if !ok {
		return nil, fetcherr.Network(upstream, fmt.Errorf("GET %s: 404", rawURL))
	}
	return []byte(b), nil
}

const (
	e2eShopsURL   = "https://example.org/toronto_bicycle_shops.geojson"
	e2eParkingURL = "https://example.org/toronto_bicycle_parking.geojson"
	e2eInfoURL    = "https://example.org/gbfs/en/station_information"
)

func TestEndToEnd_ClickRadiusSelect(t *testing.T) {
	fetch := cannedFetcher{
		e2eShopsURL: `{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[-79.381,43.651]},"properties":{"name":"Bike Shop A"}},
			{"type":"Feature","geometry":{"type":"Point","coordinates":[10,10]},"properties":{"name":"Far Away"}}]}`,
		e2eParkingURL: `{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[-79.5,43.8]},"properties":{"_id":1,"name":"Elsewhere"}}]}`,
		e2eInfoURL: `{"data":{"stations":[{"station_id":"7000","name":"Far","lat":43.8,"lon":-79.5,"capacity":10}]}}`,
	}
	log := logger.Discard()
	m, err := h3mapper.New(8)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	store := datasetstore.New(log, nil, datasetstore.Config{})
	cat := datasource.NewCatalog(log, fetch, store, m, 0, time.Minute)
	stations := datasource.NewStationStore(log, fetch, store, m, e2eInfoURL, "")
	if err := stations.Refresh(context.Background()); err != nil {
		t.Fatalf("stations: %v", err)
	}

	c := newClock()
	mgr := NewManager(Deps{
		Log:     log,
		Shops:   datasource.CatalogFinder{Catalog: cat, Sources: []datasource.Source{datasource.ShopSource(e2eShopsURL)}},
		Parking: datasource.CatalogFinder{Catalog: cat, Sources: datasource.ParkingSources(map[string]string{"toronto": e2eParkingURL})},
		Share:   stations,
	}, testSettings(c), time.Hour)

	s := mgr.Create()
	if _, err := s.RecordClick(orb.Point{-79.38, 43.65}); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	if out, err := s.UpdateRadius(0.5); err != nil || out != Accepted {
		t.Fatalf("UpdateRadius: out=%s err=%v", out, err)
	}
	waitSettled(t, s)

	snap := s.Snapshot()
	if len(snap.StageErrors) != 0 {
		t.Fatalf("stage errors: %+v", snap.StageErrors)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("results=%+v want exactly one", snap.Results)
	}
	got := snap.Results[0]
	if got.Kind != model.KindShop || got.Coord != (orb.Point{-79.381, 43.651}) || got.Label != "Bike Shop A" {
		t.Fatalf("result=%+v", got)
	}
	if snap.BufferGeoJSON == nil || snap.BufferGeoJSON.Type != "Polygon" {
		t.Fatalf("buffer geojson=%+v", snap.BufferGeoJSON)
	}

	if _, err := s.SelectResult(0); err != nil {
		t.Fatalf("SelectResult: %v", err)
	}
	v := s.Snapshot().View
	if v.Center != (orb.Point{-79.381, 43.651}) || v.Zoom != 16 {
		t.Fatalf("view=%+v want fly-to at zoom 16", v)
	}
}
