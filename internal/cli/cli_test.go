package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/shops.geojson", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[-79.381,43.651]},"properties":{"name":"Bike Shop A"}}]}`))
	})
	mux.HandleFunc("/parking.geojson", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	})
	mux.HandleFunc("/station_information", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"stations":[
			{"station_id":"7000","name":"Front St","lat":43.6499,"lon":-79.3801,"capacity":19},
			{"station_id":"7001","name":"Far Away","lat":44.5,"lon":-78.1,"capacity":11}]}}`))
	})
	mux.HandleFunc("/station_status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"stations":[]}}`))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query().Get("hourly")
		_, _ = w.Write([]byte(`{"hourly":{"` + v + `":[1,2,3,4,5,6,7,8]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func upstreamFlags(base string) []string {
	return []string{
		"--shops-url", base + "/shops.geojson",
		"--parking-urls", "toronto=" + base + "/parking.geojson",
		"--stations-url", base + "/station_information",
		"--station-status-url", base + "/station_status",
		"--weather-url", base + "/forecast",
		"--weather-tz", "UTC",
		"--radius-unit", "kilometers",
		"--fetch-retries", "0",
		"--log-level", "error",
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v\nstderr: %s", args, err, errOut.String())
	}
	return out.String()
}

func TestSearchCommand_PrintsOrderedResults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	up := upstream(t)

	args := append([]string{"search", "--lon", "-79.38", "--lat", "43.65", "--radius", "0.5", "--weather"}, upstreamFlags(up.URL)...)
	out := run(t, args...)

	var snap struct {
		State   string `json:"state"`
		Results []struct {
			Kind  string `json:"kind"`
			Label string `json:"label"`
		} `json:"results"`
		Weather []struct {
			Variable string   `json:"variable"`
			Value    *float64 `json:"value"`
		} `json:"weather"`
	}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if snap.State != "buffer_active" {
		t.Fatalf("state=%q want buffer_active", snap.State)
	}
	if len(snap.Results) != 2 || snap.Results[0].Kind != "shop" || snap.Results[1].Label != "Front St" {
		t.Fatalf("unexpected results: %+v", snap.Results)
	}
	if len(snap.Weather) != 4 {
		t.Fatalf("weather readings=%d want 4", len(snap.Weather))
	}
	for _, w := range snap.Weather {
		if w.Value == nil {
			t.Fatalf("weather %s has no value", w.Variable)
		}
	}
}

func TestStationsCommand_ReportsCount(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	up := upstream(t)

	out := run(t, append([]string{"stations"}, upstreamFlags(up.URL)...)...)
	if !strings.HasPrefix(out, "stations: 2 ") {
		t.Fatalf("output=%q", out)
	}
}
