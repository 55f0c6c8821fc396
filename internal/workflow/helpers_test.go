package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/geo"
	"github.com/mohammed-shakir/bikeways-nearby/internal/searchevents"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var defaultView = model.View{Center: orb.Point{-79.3, 43.765}, Zoom: 8.65, Bearing: -17.7}

func testSettings(c *fakeClock) Settings {
	return Settings{
		RadiusMin:      0,
		RadiusMax:      10,
		Unit:           geo.Kilometers,
		BufferSteps:    geo.DefaultSteps,
		ClickDebounce:  500 * time.Millisecond,
		RadiusDebounce: 900 * time.Millisecond,
		SelectDebounce: 600 * time.Millisecond,
		SelectZoom:     16,
		DefaultView:    defaultView,
		Now:            c.Now,
	}
}

// stubFinder returns fixed hits. A non-nil gate holds Find until it is
// closed or the chain is cancelled.
type stubFinder struct {
	hits  []model.ResultEntry
	err   error
	delay time.Duration
	gate  chan struct{}
	calls atomic.Int32
}

func (f *stubFinder) Find(ctx context.Context, _ orb.Polygon) ([]model.ResultEntry, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.hits, f.err
}

// pointFinder filters its entries by the polygon like a real dataset.
type pointFinder struct {
	entries []model.ResultEntry
}

func (f pointFinder) Find(_ context.Context, poly orb.Polygon) ([]model.ResultEntry, error) {
	var out []model.ResultEntry
	for _, e := range f.entries {
		if geo.Contains(poly, e.Coord) {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubWeather struct {
	gate chan struct{}
}

func (w *stubWeather) Fetch(ctx context.Context, _ orb.Point) []model.WeatherReading {
	if w.gate != nil {
		select {
		case <-w.gate:
		case <-ctx.Done():
			return nil
		}
	}
	v := 21.5
	return []model.WeatherReading{
		{Variable: "temperature_2m", Label: "Temperature", Unit: "°C", Value: &v},
		{Variable: "precipitation", Label: "Precipitation", Unit: "mm", Error: "network"},
		{Variable: "snowfall", Label: "Snowfall", Unit: "cm", Value: new(float64)},
		{Variable: "wind_speed_10m", Label: "Wind Speed", Unit: "km/h", Value: new(float64)},
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []searchevents.Event
}

func (r *recordingSink) Publish(ev searchevents.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingSink) all() []searchevents.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]searchevents.Event(nil), r.events...)
}

func entry(kind model.Kind, lon, lat float64, label string) model.ResultEntry {
	var d model.Details
	switch kind {
	case model.KindShop:
		d = model.ShopDetails{Name: label}
	case model.KindParking:
		d = model.ParkingDetails{Schema: model.ParkingToronto, Name: label}
	default:
		d = model.StationDetails{StationID: "7000", Name: label}
	}
	return model.ResultEntry{Kind: kind, Source: "test", Coord: orb.Point{lon, lat}, Label: label, Details: d}
}

func waitSettled(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("chain did not settle: %v", err)
	}
}

func waitWeather(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitWeather(ctx); err != nil {
		t.Fatalf("weather did not settle: %v", err)
	}
}

// openWithPoint returns a session with the panel open and a point recorded.
func openWithPoint(t *testing.T, deps Deps, c *fakeClock) *Session {
	t.Helper()
	s := newSession("test-session", deps, testSettings(c))
	s.BeginSelection()
	if out, err := s.RecordClick(orb.Point{-79.38, 43.65}); err != nil || out != Accepted {
		t.Fatalf("RecordClick: out=%s err=%v", out, err)
	}
	return s
}
