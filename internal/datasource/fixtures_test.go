package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/datasetstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
	h3mapper "github.com/mohammed-shakir/bikeways-nearby/internal/mapper/h3"
)

// fakeFetcher serves canned bodies by URL and counts calls.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, rawURL string, _ url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	b, ok := f.bodies[rawURL]
	if !ok {
		return nil, fmt.Errorf("no body for %s", rawURL)
	}
	return []byte(b), nil
}

func (f *fakeFetcher) count(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

func newStore() datasetstore.Store {
	return datasetstore.New(logger.Discard(), nil, datasetstore.Config{})
}

func newMapper(t *testing.T) *h3mapper.Mapper {
	t.Helper()
	m, err := h3mapper.New(8)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	return m
}

const (
	shopsURL   = "https://example.org/shops.geojson"
	parkingURL = "https://example.org/parking.geojson"
	yorkURL    = "https://example.org/york.geojson"
	infoURL    = "https://example.org/gbfs/station_information"
	statusURL  = "https://example.org/gbfs/station_status"
)

const shopsBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":11,"geometry":{"type":"Point","coordinates":[-79.381,43.651]},
  "properties":{"name":"Bike Shop A","rental":"Yes","address":"1 King St","postal_code":"M5H","city":"Toronto","phone":"416-555-0100"}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-79.50,43.80]},
  "properties":{"name":null,"OBJECTID":42}}
]}`

const parkingBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"MultiPoint","coordinates":[[-79.382,43.652],[-79.383,43.653]]},
  "properties":{"_id":7,"name":"Ring and post","address":"5 Bay St","parking_type":"Ring","bike_capacity":2}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-79.3815,43.6505]},
  "properties":{"_id":8,"name":"  ","bike_capacity":null}}
]}`

const yorkBody = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-79.45,43.85]},
  "properties":{"location":"Main St","type":"Bike rack","capacity":"6"}}
]}`

const infoBody = `{"last_updated":1700000000,"ttl":10,"data":{"stations":[
 {"station_id":"7000","name":"Queen St W / Spadina","lat":43.6505,"lon":-79.3805,"address":"Queen St W","capacity":23},
 {"station_id":"7001","name":"","lat":43.70,"lon":-79.40,"capacity":15},
 {"station_id":"7002","name":"Ghost","lat":0,"lon":0}
]}}`

const statusBody = `{"data":{"stations":[
 {"station_id":"7000","num_bikes_available":4,"num_docks_available":19}
]}}`
