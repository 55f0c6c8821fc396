// Package workflow runs the nearby-feature search: a clicked point is
// buffered by a radius, the amenity datasets are searched stage by stage,
// weather is read for the point, and a chosen result becomes a fly-to.
//
// Every session is a small state machine:
//
//	idle → point_selected → buffer_active ⇄ aggregating
//
// with any state returning to idle on EndSelection. At most one aggregation
// chain runs per session; radius updates that arrive while it runs are
// dropped, not queued.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/geo"
	"github.com/mohammed-shakir/bikeways-nearby/internal/searchevents"
)

type State string

const (
	StateIdle          State = "idle"
	StatePointSelected State = "point_selected"
	StateBufferActive  State = "buffer_active"
	StateAggregating   State = "aggregating"
)

// Outcome says what an accepted-looking call actually did.
type Outcome string

const (
	Accepted  Outcome = "accepted"
	Debounced Outcome = "debounced"
	// Dropped means the buffer was recomputed but no chain started
	// because one was already running.
	Dropped Outcome = "dropped"
	// Cleared is the sentinel radius result: buffer and results removed.
	Cleared Outcome = "cleared"
)

var (
	ErrPanelClosed      = errors.New("search panel is closed")
	ErrNoPoint          = errors.New("no point selected")
	ErrBufferActive     = errors.New("a buffer is already active")
	ErrAggregating      = errors.New("results are still loading")
	ErrInvalidPoint     = errors.New("point out of range")
	ErrRadiusOutOfRange = errors.New("radius out of range")
	ErrResultIndex      = errors.New("result index out of range")
	ErrSessionNotFound  = errors.New("session not found")
)

// Finder returns entries of one kind inside a polygon. Entries and an error
// may come back together when only part of the stage failed.
type Finder interface {
	Find(ctx context.Context, poly orb.Polygon) ([]model.ResultEntry, error)
}

type WeatherReader interface {
	Fetch(ctx context.Context, pt orb.Point) []model.WeatherReading
}

type EventSink interface {
	Publish(ev searchevents.Event) bool
}

// Deps are the collaborators of the aggregation chain. Nil finders skip
// their stage; nil Weather and Events are no-ops.
type Deps struct {
	Log     *slog.Logger
	Shops   Finder
	Parking Finder
	Share   Finder
	Weather WeatherReader
	Events  EventSink
}

type Settings struct {
	RadiusMin   float64
	RadiusMax   float64
	Unit        geo.Unit
	BufferSteps int

	ClickDebounce  time.Duration
	RadiusDebounce time.Duration
	SelectDebounce time.Duration

	SelectZoom  float64
	DefaultView model.View

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.RadiusMax <= s.RadiusMin {
		s.RadiusMin, s.RadiusMax = 0, 10
	}
	if s.Unit == "" {
		s.Unit = geo.Kilometers
	}
	if s.BufferSteps <= 0 {
		s.BufferSteps = geo.DefaultSteps
	}
	if s.SelectZoom <= 0 {
		s.SelectZoom = 16
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

const (
	stageShops   = "shops"
	stageParking = "parking"
	stageShare   = "share"
	stageWeather = "weather"
)
