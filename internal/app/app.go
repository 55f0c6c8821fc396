// Package app wires configuration into the running search service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/datasetstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/cache/redisstore"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/config"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/executor"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/httpclient"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/server"
	"github.com/mohammed-shakir/bikeways-nearby/internal/datasource"
	"github.com/mohammed-shakir/bikeways-nearby/internal/geo"
	"github.com/mohammed-shakir/bikeways-nearby/internal/invalidation/kafkaconsumer"
	h3mapper "github.com/mohammed-shakir/bikeways-nearby/internal/mapper/h3"
	"github.com/mohammed-shakir/bikeways-nearby/internal/metrics"
	"github.com/mohammed-shakir/bikeways-nearby/internal/searchevents"
	"github.com/mohammed-shakir/bikeways-nearby/internal/weather"
	"github.com/mohammed-shakir/bikeways-nearby/internal/workflow"
)

type App struct {
	Cfg      config.Config
	Log      *slog.Logger
	Catalog  *datasource.Catalog
	Bikeways datasource.Bikeways
	Stations *datasource.StationStore
	Sessions *workflow.Manager
	Metrics  *metrics.Provider

	redis    *redisstore.Client
	events   *searchevents.Publisher
	consumer *kafkaconsumer.Consumer
}

// New builds every component. Redis and Kafka are optional: an empty
// REDIS_ADDR runs the dataset cache in memory, and EVENTS_ENABLED=false
// skips the publisher. INVALIDATION_ENABLED adds the dataset update consumer.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	unit, err := geo.ParseUnit(cfg.RadiusUnit)
	if err != nil {
		return nil, err
	}
	m, err := h3mapper.New(cfg.H3Res)
	if err != nil {
		return nil, fmt.Errorf("h3 mapper: %w", err)
	}

	a := &App{Cfg: cfg, Log: log}

	if cfg.RedisAddr != "" {
		a.redis, err = redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			// the memory tier still works; keep going without redis
			log.Warn("redis unavailable, dataset cache is memory-only", "addr", cfg.RedisAddr, "err", err)
			a.redis = nil
		}
	}
	fetchBudget := cfg.FetchTimeout * time.Duration(cfg.FetchRetries+1)
	store := datasetstore.New(log, a.redis, datasetstore.Config{
		LRUSize:     cfg.DatasetLRUSize,
		TTL:         cfg.DatasetTTL,
		OpTimeout:   cfg.CacheOpTimeout,
		LoadTimeout: 2 * fetchBudget,
	})

	exec := executor.New(log, httpclient.NewOutbound(fetchBudget),
		executor.WithAttemptTimeout(cfg.FetchTimeout),
		executor.WithRetries(cfg.FetchRetries))

	a.Catalog = datasource.NewCatalog(log, exec, store, m, cfg.DatasetLRUSize, cfg.DatasetTTL)
	a.Bikeways = datasource.Bikeways{Catalog: a.Catalog, List: datasource.BikewayLayers(cfg.BikewayURLs)}
	a.Stations = datasource.NewStationStore(log, exec, store, m, cfg.StationsURL, cfg.StationStatusURL)

	wx, err := weather.New(log, exec, cfg.WeatherURL, cfg.WeatherTZ)
	if err != nil {
		return nil, err
	}

	shops := []datasource.Source{datasource.ShopSource(cfg.ShopsURL)}
	parking := datasource.ParkingSources(cfg.ParkingURLs)
	deps := workflow.Deps{
		Log:     log,
		Shops:   datasource.CatalogFinder{Catalog: a.Catalog, Sources: shops},
		Parking: datasource.CatalogFinder{Catalog: a.Catalog, Sources: parking},
		Share:   a.Stations,
		Weather: wx,
	}
	if cfg.Events.Enabled {
		p, err := searchevents.NewPublisher(log, splitList(cfg.Events.Brokers), cfg.Events.Topic, cfg.Events.Queue)
		if err != nil {
			log.Warn("search events disabled", "err", err)
		} else {
			a.events = p
			deps.Events = p
		}
	}

	if cfg.Invalidation.Enabled {
		a.consumer = kafkaconsumer.New(kafkaconsumer.Config{
			Brokers:             splitList(cfg.Events.Brokers),
			Topic:               cfg.Invalidation.Topic,
			GroupID:             cfg.Invalidation.GroupID,
			InitialOffsetOldest: false,
		}, log, datasource.Invalidator{
			Catalog:  a.Catalog,
			Sources:  slices.Concat(shops, parking),
			Bikeways: a.Bikeways.List,
			Stations: a.Stations,
		})
	}

	a.Sessions = workflow.NewManager(deps, Settings(cfg, unit), cfg.SessionIdleTTL)
	a.Metrics = metrics.Init(metrics.Config{Enabled: true, Version: cfg.Version})
	return a, nil
}

// Settings maps configuration onto workflow settings.
func Settings(cfg config.Config, unit geo.Unit) workflow.Settings {
	return workflow.Settings{
		RadiusMin:      cfg.RadiusMin,
		RadiusMax:      cfg.RadiusMax,
		Unit:           unit,
		BufferSteps:    cfg.BufferSteps,
		ClickDebounce:  cfg.ClickDebounce,
		RadiusDebounce: cfg.RadiusDebounce,
		SelectDebounce: cfg.SelectDebounce,
		SelectZoom:     cfg.SelectZoom,
		DefaultView: model.View{
			Center:  orb.Point{cfg.DefaultView.CenterLon, cfg.DefaultView.CenterLat},
			Zoom:    cfg.DefaultView.Zoom,
			Bearing: cfg.DefaultView.Bearing,
		},
	}
}

func (a *App) Handler() http.Handler {
	return server.NewHandler(a.Log, server.Deps{
		Sessions:    a.Sessions,
		Layers:      a.Bikeways,
		Ready:       a.Stations,
		Metrics:     a.Metrics.Handler(),
		WaitTimeout: a.Cfg.FetchTimeout * time.Duration(a.Cfg.FetchRetries+2) * 3,
	})
}

// Serve starts the station refresher, the session janitor and the optional
// invalidation consumer, then serves HTTP until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	go a.Stations.Run(ctx, a.Cfg.StationsRefresh)
	go a.Sessions.Run(ctx, time.Minute)
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				a.Log.Error("dataset invalidation consumer stopped", "err", err)
			}
		}()
	}
	return server.Run(ctx, a.Cfg.Addr, a.Log, a.Handler())
}

func (a *App) Close() error {
	a.Sessions.Close()
	var errs []error
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
