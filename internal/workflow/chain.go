package workflow

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
	"github.com/mohammed-shakir/bikeways-nearby/internal/searchevents"
)

type chainRequest struct {
	gen    uint64
	point  orb.Point
	poly   orb.Polygon
	radius float64
}

type stage struct {
	name   string
	kind   model.Kind
	finder Finder
}

func (s *Session) startChainLocked(poly orb.Polygon) {
	// a finished chain may still be reading weather
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(logger.WithSessionID(context.Background(), s.id))
	s.cancel = cancel
	s.guard = true
	s.clearResultsLocked()
	s.resultsRadius = s.radius

	settled := make(chan struct{})
	weatherDone := make(chan struct{})
	s.settled, s.weatherDone = settled, weatherDone

	req := chainRequest{gen: s.gen, point: *s.point, poly: poly, radius: s.radius}
	go s.runChain(ctx, req, settled, weatherDone)
}

// runChain runs the amenity stages strictly in order, publishing after each
// one, then starts weather and finalizes without waiting for it.
func (s *Session) runChain(ctx context.Context, req chainRequest, settled, weatherDone chan struct{}) {
	weatherStarted := false
	defer func() {
		if !weatherStarted {
			close(weatherDone)
		}
		close(settled)
	}()

	stages := []stage{
		{name: stageShops, kind: model.KindShop, finder: s.deps.Shops},
		{name: stageParking, kind: model.KindParking, finder: s.deps.Parking},
		{name: stageShare, kind: model.KindShare, finder: s.deps.Share},
	}
	counts := make(map[string]int, len(stages))
	failed := 0

	for _, st := range stages {
		if ctx.Err() != nil {
			return
		}
		hits, err := s.runStage(ctx, st, req.poly)
		ok := s.commit(req.gen, func() {
			s.results = append(s.results, hits...)
			if err != nil {
				s.stageErrors = append(s.stageErrors, stageError(st.name, err))
			}
		})
		if !ok {
			return
		}
		if err != nil {
			failed++
		}
		counts[string(st.kind)] = len(hits)
		observability.AddResults(string(st.kind), len(hits))
	}

	if s.deps.Weather != nil {
		weatherStarted = true
		go s.runWeather(ctx, req, weatherDone)
	}

	if !s.commit(req.gen, func() { s.guard = false }) {
		return
	}
	s.log.Info("search finished",
		"radius", req.radius,
		"shops", counts[string(model.KindShop)],
		"parking", counts[string(model.KindParking)],
		"share", counts[string(model.KindShare)],
		"stage_errors", failed)

	if s.deps.Events != nil {
		s.deps.Events.Publish(searchevents.Event{
			SessionID:   s.id,
			Lon:         req.point.Lon(),
			Lat:         req.point.Lat(),
			Radius:      req.radius,
			Unit:        string(s.set.Unit),
			Counts:      counts,
			StageErrors: failed,
			TS:          s.set.Now().UTC(),
		})
	}
}

func (s *Session) runStage(ctx context.Context, st stage, poly orb.Polygon) ([]model.ResultEntry, error) {
	if st.finder == nil {
		return nil, nil
	}
	start := time.Now()
	hits, err := st.finder.Find(logger.WithStage(ctx, st.name), poly)
	outcome := "ok"
	if err != nil {
		outcome = fetcherr.KindOf(err).String()
		if ctx.Err() == nil {
			s.log.Warn("stage failed", "stage", st.name, "kind", outcome, "err", err)
		}
	}
	observability.ObserveStage(st.name, outcome, time.Since(start).Seconds())
	return hits, err
}

func (s *Session) runWeather(ctx context.Context, req chainRequest, done chan struct{}) {
	defer close(done)
	start := time.Now()
	readings := s.deps.Weather.Fetch(logger.WithStage(ctx, stageWeather), req.point)
	outcome := "ok"
	for _, r := range readings {
		if r.Value == nil {
			outcome = "partial"
			break
		}
	}
	observability.ObserveStage(stageWeather, outcome, time.Since(start).Seconds())
	s.commit(req.gen, func() { s.weather = readings })
}

// commit applies fn only if gen is still the session's generation.
func (s *Session) commit(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn()
	return true
}

func stageError(name string, err error) model.StageError {
	return model.StageError{Stage: name, Kind: fetcherr.KindOf(err).String(), Message: err.Error()}
}
