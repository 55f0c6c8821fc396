// Package weather reads the current 3-hour forecast bucket for a point from
// an Open-Meteo compatible API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/executor"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/fetcherr"
	"github.com/mohammed-shakir/bikeways-nearby/internal/core/model"
)

type Variable struct {
	Name  string
	Label string
	Unit  string
}

// Variables are read in this order; Fetch preserves it.
var Variables = []Variable{
	{Name: "temperature_2m", Label: "Temperature", Unit: "°C"},
	{Name: "precipitation", Label: "Precipitation", Unit: "mm"},
	{Name: "snowfall", Label: "Snowfall", Unit: "cm"},
	{Name: "wind_speed_10m", Label: "Wind Speed", Unit: "km/h"},
}

const bucketHours = 3

type Client struct {
	log     *slog.Logger
	exec    executor.Interface
	baseURL string
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Client)

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func New(log *slog.Logger, exec executor.Interface, baseURL, tz string, opts ...Option) (*Client, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("weather timezone %q: %w", tz, err)
	}
	c := &Client{log: log, exec: exec, baseURL: baseURL, loc: loc, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Bucket returns the local date and the 3-hour bucket index for t.
func Bucket(t time.Time, loc *time.Location) (string, int) {
	lt := t.In(loc)
	return lt.Format(time.DateOnly), lt.Hour() / bucketHours
}

// Fetch reads every variable independently. A variable that fails comes back
// with a nil Value and its error kind; the others are unaffected.
func (c *Client) Fetch(ctx context.Context, pt orb.Point) []model.WeatherReading {
	out, err := c.FetchAll(ctx, pt)
	if err != nil {
		c.log.WarnContext(ctx, "weather partially unavailable", "err", err)
	}
	return out
}

// FetchAll is Fetch that also reports the first variable failure. The
// readings are complete either way: one failure never cancels its siblings.
func (c *Client) FetchAll(ctx context.Context, pt orb.Point) ([]model.WeatherReading, error) {
	date, idx := Bucket(c.now(), c.loc)
	out := make([]model.WeatherReading, len(Variables))

	var g errgroup.Group
	g.SetLimit(len(Variables))
	for i, v := range Variables {
		g.Go(func() error {
			r := model.WeatherReading{Variable: v.Name, Label: v.Label, Unit: v.Unit}
			val, unit, err := c.read(ctx, pt, date, idx, v.Name)
			if err != nil {
				r.Error = fetcherr.KindOf(err).String()
				out[i] = r
				return fmt.Errorf("weather %s: %w", v.Name, err)
			}
			r.Value = val
			if unit != "" {
				r.Unit = unit
			}
			out[i] = r
			return nil
		})
	}
	return out, g.Wait()
}

type forecast struct {
	HourlyUnits map[string]string          `json:"hourly_units"`
	Hourly      map[string]json.RawMessage `json:"hourly"`
}

func (c *Client) read(ctx context.Context, pt orb.Point, date string, idx int, variable string) (*float64, string, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(pt.Lat(), 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(pt.Lon(), 'f', 6, 64))
	q.Set("start_date", date)
	q.Set("end_date", date)
	q.Set("hourly", variable)
	q.Set("temporal_resolution", "hourly_3")
	q.Set("timezone", c.loc.String())

	op := "weather " + variable
	var fc forecast
	if err := executor.DecodeJSON(ctx, c.exec, "weather", c.baseURL, q, &fc); err != nil {
		return nil, "", err
	}
	raw, ok := fc.Hourly[variable]
	if !ok {
		return nil, "", fetcherr.Empty(op)
	}
	var series []*float64
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, "", fetcherr.Decode(op, err)
	}
	if idx >= len(series) || series[idx] == nil {
		return nil, "", fetcherr.Empty(op)
	}
	return series[idx], fc.HourlyUnits[variable], nil
}

// Format renders a reading the way the result panel lists it.
func Format(r model.WeatherReading) string {
	if r.Value == nil {
		return r.Label + ": " + model.NotAvailable
	}
	return fmt.Sprintf("%s: %s %s", r.Label, strconv.FormatFloat(*r.Value, 'f', -1, 64), r.Unit)
}
