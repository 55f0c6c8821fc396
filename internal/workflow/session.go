package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
	"github.com/mohammed-shakir/bikeways-nearby/internal/debounce"
	"github.com/mohammed-shakir/bikeways-nearby/internal/geo"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
)

// Session is one search panel. All fields below mu are guarded by it.
type Session struct {
	id   string
	deps Deps
	set  Settings
	log  *slog.Logger

	clickGate  *debounce.Gate
	radiusGate *debounce.Gate
	selectGate *debounce.Gate

	mu            sync.Mutex
	panelOpen     bool
	radiusVisible bool
	point         *orb.Point
	radius        float64
	buffer        orb.Polygon
	resultsRadius float64
	results       []model.ResultEntry
	weather       []model.WeatherReading
	stageErrors   []model.StageError
	guard         bool
	// gen is bumped whenever a chain starts or the session is reset; a
	// chain only commits while its generation is current.
	gen         uint64
	cancel      context.CancelFunc
	settled     chan struct{}
	weatherDone chan struct{}
	view        model.View
	popup       *model.Popup
	lastUsed    time.Time
}

func newSession(id string, deps Deps, set Settings) *Session {
	set = set.withDefaults()
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	clock := debounce.WithClock(set.Now)
	return &Session{
		id:         id,
		deps:       deps,
		set:        set,
		log:        deps.Log.With("session_id", id),
		clickGate:  debounce.New(set.ClickDebounce, clock),
		radiusGate: debounce.New(set.RadiusDebounce, clock),
		selectGate: debounce.New(set.SelectDebounce, clock),
		view:       set.DefaultView,
		lastUsed:   set.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// BeginSelection opens the panel with a clean slate.
func (s *Session) BeginSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.resetLocked()
	s.panelOpen = true
	s.log.Debug("selection started")
}

// EndSelection closes the panel, clears everything BeginSelection clears and
// returns the view to its default. Calling it again is a no-op.
func (s *Session) EndSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.resetLocked()
	s.panelOpen = false
	s.view = s.set.DefaultView
	s.log.Debug("selection ended")
}

// RecordClick sets the search point. Only allowed while no buffer is active;
// clicks inside the debounce window are ignored.
func (s *Session) RecordClick(pt orb.Point) (Outcome, error) {
	if !validPoint(pt) {
		return "", fmt.Errorf("%w: %v", ErrInvalidPoint, pt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if !s.panelOpen {
		return "", ErrPanelClosed
	}
	if s.buffer != nil {
		return "", ErrBufferActive
	}
	if !s.clickGate.Allow() {
		observability.IncDebounced("click")
		return Debounced, nil
	}
	p := pt
	s.point = &p
	s.radiusVisible = true
	s.popup = nil
	return Accepted, nil
}

// UpdateRadius rebuilds the buffer and, unless a chain is already running,
// starts a new aggregation chain. RadiusMin clears the buffer instead.
func (s *Session) UpdateRadius(radius float64) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if !s.panelOpen {
		return "", ErrPanelClosed
	}
	if s.point == nil {
		return "", ErrNoPoint
	}
	if math.IsNaN(radius) || radius < s.set.RadiusMin || radius > s.set.RadiusMax {
		return "", fmt.Errorf("%w: %v not in [%v, %v]", ErrRadiusOutOfRange, radius, s.set.RadiusMin, s.set.RadiusMax)
	}

	// the sentinel makes no remote calls, so it skips the debounce
	if radius == s.set.RadiusMin {
		s.stopChainLocked()
		s.clearResultsLocked()
		s.radius = radius
		s.buffer = nil
		return Cleared, nil
	}

	if !s.radiusGate.Allow() {
		observability.IncDebounced("radius")
		return Debounced, nil
	}

	poly, err := geo.Buffer(*s.point, radius, s.set.Unit, s.set.BufferSteps)
	if err != nil {
		return "", fmt.Errorf("buffer: %w", err)
	}
	s.radius = radius
	s.buffer = poly

	if s.guard {
		observability.IncRadiusDropped()
		s.log.Debug("radius update dropped, chain in flight", "radius", radius)
		return Dropped, nil
	}
	s.startChainLocked(poly)
	return Accepted, nil
}

// SelectResult flies the view to a result and opens its popup. Rows are
// selectable once the chain has finalized.
func (s *Session) SelectResult(index int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if !s.panelOpen {
		return "", ErrPanelClosed
	}
	if s.guard {
		return "", ErrAggregating
	}
	if index < 0 || index >= len(s.results) {
		return "", fmt.Errorf("%w: %d of %d", ErrResultIndex, index, len(s.results))
	}
	if !s.selectGate.Allow() {
		observability.IncDebounced("select")
		return Debounced, nil
	}

	e := s.results[index]
	s.view = model.View{Center: e.Coord, Zoom: s.set.SelectZoom, Bearing: s.view.Bearing}
	p := &model.Popup{Coord: e.Coord, Kind: e.Kind, Title: e.Label}
	if e.Details != nil {
		p.Lines = e.Details.PopupLines()
	}
	s.popup = p
	return Accepted, nil
}

// Wait blocks until the current chain has finalized. Weather may still be
// loading when it returns.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	ch := s.settled
	s.mu.Unlock()
	return waitOn(ctx, ch)
}

// WaitWeather blocks until the current chain's weather readings are in.
func (s *Session) WaitWeather(ctx context.Context) error {
	s.mu.Lock()
	ch := s.weatherDone
	s.mu.Unlock()
	return waitOn(ctx, ch)
}

func waitOn(ctx context.Context, ch <-chan struct{}) error {
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case !s.panelOpen || s.point == nil:
		return StateIdle
	case s.guard:
		return StateAggregating
	case s.buffer != nil:
		return StateBufferActive
	default:
		return StatePointSelected
	}
}

type Snapshot struct {
	ID                   string                 `json:"id"`
	State                State                  `json:"state"`
	PanelOpen            bool                   `json:"panel_open"`
	RadiusControlVisible bool                   `json:"radius_control_visible"`
	Point                *orb.Point             `json:"point,omitempty"`
	Radius               float64                `json:"radius"`
	Unit                 geo.Unit               `json:"unit"`
	Buffer               orb.Polygon            `json:"-"`
	BufferGeoJSON        *geojson.Geometry      `json:"buffer,omitempty"`
	ResultsRadius        float64                `json:"results_radius"`
	Results              []model.ResultEntry    `json:"results"`
	Weather              []model.WeatherReading `json:"weather"`
	StageErrors          []model.StageError     `json:"stage_errors,omitempty"`
	View                 model.View             `json:"view"`
	Popup                *model.Popup           `json:"popup,omitempty"`
	Generation           uint64                 `json:"generation"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:                   s.id,
		State:                s.stateLocked(),
		PanelOpen:            s.panelOpen,
		RadiusControlVisible: s.radiusVisible,
		Radius:               s.radius,
		Unit:                 s.set.Unit,
		ResultsRadius:        s.resultsRadius,
		Results:              slices.Clone(s.results),
		Weather:              slices.Clone(s.weather),
		StageErrors:          slices.Clone(s.stageErrors),
		View:                 s.view,
		Generation:           s.gen,
	}
	if snap.Results == nil {
		snap.Results = []model.ResultEntry{}
	}
	if snap.Weather == nil {
		snap.Weather = []model.WeatherReading{}
	}
	if s.point != nil {
		p := *s.point
		snap.Point = &p
	}
	if s.buffer != nil {
		snap.Buffer = s.buffer.Clone()
		snap.BufferGeoJSON = geojson.NewGeometry(snap.Buffer)
	}
	if s.popup != nil {
		p := *s.popup
		snap.Popup = &p
	}
	return snap
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed), s.guard
}

func (s *Session) touchLocked() { s.lastUsed = s.set.Now() }

// resetLocked clears point, buffer and results together and abandons any
// chain in flight.
func (s *Session) resetLocked() {
	s.stopChainLocked()
	s.clearResultsLocked()
	s.point = nil
	s.radius = 0
	s.buffer = nil
	s.radiusVisible = false
	s.clickGate.Reset()
	s.radiusGate.Reset()
	s.selectGate.Reset()
}

func (s *Session) clearResultsLocked() {
	s.resultsRadius = 0
	s.results = nil
	s.weather = nil
	s.stageErrors = nil
	s.popup = nil
}

func (s *Session) stopChainLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.guard = false
}

func validPoint(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
