package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/datasetstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/executor"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	h3mapper "github.com/mohammed-shakir/bikeways-nearby/internal/mapper/h3"
)

// ErrStationsNotLoaded is returned by Current before any station snapshot
// has loaded.
var ErrStationsNotLoaded = fetcherr.Empty("bike share stations")

// StationsDataset names the station snapshot for invalidation events.
const StationsDataset = "bikeshare-toronto"

const (
	stationInfoName   = "gbfs-station-information"
	stationStatusName = "gbfs-station-status"
)

type gbfsInfo struct {
	LastUpdated int64 `json:"last_updated"`
	Data        struct {
		Stations []struct {
			StationID string   `json:"station_id"`
			Name      string   `json:"name"`
			Lat       float64  `json:"lat"`
			Lon       float64  `json:"lon"`
			Address   string   `json:"address"`
			Capacity  *float64 `json:"capacity"`
		} `json:"stations"`
	} `json:"data"`
}

type gbfsStatus struct {
	Data struct {
		Stations []struct {
			StationID         string   `json:"station_id"`
			NumBikesAvailable *float64 `json:"num_bikes_available"`
			NumDocksAvailable *float64 `json:"num_docks_available"`
		} `json:"stations"`
	} `json:"data"`
}

// StationStore holds the latest bike share station snapshot. Station
// information goes through the dataset cache; live status is fetched on
// every refresh and joined in when available.
type StationStore struct {
	log       *slog.Logger
	exec      executor.Interface
	store     datasetstore.Store
	mapper    *h3mapper.Mapper
	infoURL   string
	statusURL string

	mu       sync.RWMutex
	ds       *Dataset
	loadedAt time.Time
}

func NewStationStore(log *slog.Logger, exec executor.Interface, store datasetstore.Store, m *h3mapper.Mapper, infoURL, statusURL string) *StationStore {
	return &StationStore{
		log:       log,
		exec:      exec,
		store:     store,
		mapper:    m,
		infoURL:   infoURL,
		statusURL: statusURL,
	}
}

// Current returns the last loaded snapshot.
func (s *StationStore) Current() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, ErrStationsNotLoaded
	}
	return s.ds, nil
}

// Refresh reloads the station list. On failure the previous snapshot is
// kept.
func (s *StationStore) Refresh(ctx context.Context) error {
	body, err := s.store.GetOrLoad(ctx, stationInfoName, s.infoURL, func(ctx context.Context) ([]byte, error) {
		return s.exec.Fetch(ctx, stationInfoName, s.infoURL, nil)
	})
	if err != nil {
		return err
	}
	entries, err := decodeStations(body)
	if err != nil {
		if ierr := s.store.Invalidate(ctx, stationInfoName, s.infoURL); ierr != nil {
			s.log.WarnContext(ctx, "station info invalidate failed", "err", ierr)
		}
		return err
	}

	if s.statusURL != "" {
		if err := s.joinStatus(ctx, entries); err != nil {
			s.log.WarnContext(ctx, "station status unavailable", "err", err)
		}
	}

	ds := newDataset(Source{Name: StationsDataset, Kind: model.KindShare, URL: s.infoURL}, entries)
	if s.mapper != nil {
		if ix, err := h3mapper.NewIndex(s.mapper, ds.points); err == nil {
			ds.index = ix
		} else {
			s.log.WarnContext(ctx, "spatial index skipped", "dataset", ds.Source.Name, "err", err)
		}
	}

	s.mu.Lock()
	s.ds = ds
	s.loadedAt = time.Now()
	s.mu.Unlock()
	s.log.InfoContext(ctx, "stations loaded", "count", ds.Len())
	return nil
}

// Invalidate drops the cached station_information body and reloads it.
func (s *StationStore) Invalidate(ctx context.Context) error {
	if err := s.store.Invalidate(ctx, stationInfoName, s.infoURL); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func (s *StationStore) joinStatus(ctx context.Context, entries []model.ResultEntry) error {
	var st gbfsStatus
	if err := executor.DecodeJSON(ctx, s.exec, stationStatusName, s.statusURL, nil, &st); err != nil {
		return err
	}
	byID := make(map[string]int, len(st.Data.Stations))
	for i, x := range st.Data.Stations {
		byID[x.StationID] = i
	}
	for i := range entries {
		d, ok := entries[i].Details.(model.StationDetails)
		if !ok {
			continue
		}
		j, ok := byID[d.StationID]
		if !ok {
			continue
		}
		x := st.Data.Stations[j]
		d.BikesAvailable = floatToInt(x.NumBikesAvailable)
		d.DocksAvailable = floatToInt(x.NumDocksAvailable)
		entries[i].Details = d
	}
	return nil
}

// Run refreshes on every tick until ctx is done. The initial load happens
// immediately; its failure is logged and leaves the share stage empty until
// a later tick succeeds.
func (s *StationStore) Run(ctx context.Context, every time.Duration) {
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.ErrorContext(ctx, "initial station load failed", "err", err)
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.WarnContext(ctx, "station refresh failed", "err", err)
			}
		}
	}
}

// Readiness reports station count; zero means not ready.
func (s *StationStore) Readiness() (bool, map[string]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	if s.ds != nil {
		n = s.ds.Len()
	}
	return n > 0, map[string]int{"stations": n}
}

func (s *StationStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func decodeStations(body []byte) ([]model.ResultEntry, error) {
	var info gbfsInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fetcherr.Decode(stationInfoName, err)
	}
	out := make([]model.ResultEntry, 0, len(info.Data.Stations))
	for _, st := range info.Data.Stations {
		if st.Lat == 0 && st.Lon == 0 {
			continue
		}
		name := strings.TrimSpace(st.Name)
		if isPlaceholder(name) {
			name = "Bike Share Station " + st.StationID
		}
		d := model.StationDetails{
			StationID: st.StationID,
			Name:      name,
			Address:   strings.TrimSpace(st.Address),
			Capacity:  floatToInt(st.Capacity),
		}
		out = append(out, model.ResultEntry{
			Kind:    model.KindShare,
			Source:  "bikeshare-toronto",
			Coord:   orb.Point{st.Lon, st.Lat},
			Label:   d.Label(),
			Details: d,
		})
	}
	if len(out) == 0 {
		return nil, fetcherr.Empty(stationInfoName)
	}
	return out, nil
}

func floatToInt(f *float64) *int {
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// Find searches the current station snapshot; no remote call is made.
func (s *StationStore) Find(_ context.Context, poly orb.Polygon) ([]model.ResultEntry, error) {
	ds, err := s.Current()
	if err != nil {
		return nil, err
	}
	return ds.Within(poly)
}
