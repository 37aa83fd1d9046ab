package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	driver "github.com/chrissnell/observerip/internal/observerip"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/internal/weatherstations"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
)

type fakeStation struct {
	name string
	info *driver.Info
}

func (s *fakeStation) StartWeatherStation() error { return nil }
func (s *fakeStation) StopWeatherStation() error  { return nil }
func (s *fakeStation) StationName() string        { return s.name }
func (s *fakeStation) Info() (*driver.Info, error) {
	if s.info == nil {
		return nil, errors.New("no probed device")
	}
	return s.info, nil
}

type fakeStations map[string]weatherstations.WeatherStation

func (f fakeStations) GetStation(name string) weatherstations.WeatherStation {
	if s, ok := f[name]; ok {
		return s
	}
	return nil
}

type fakeArchive struct {
	readings map[string]types.Reading
	rain     float64
}

func (a *fakeArchive) Latest(ctx context.Context, station string) (*types.Reading, error) {
	r, ok := a.readings[station]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (a *fakeArchive) RainSince(ctx context.Context, station string, t time.Time) (float64, error) {
	return a.rain, nil
}

func newTestController(t *testing.T, archive Archive) (*Controller, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	stations := fakeStations{
		"backyard": &fakeStation{name: "backyard", info: &driver.Info{IPAddr: "192.168.1.50", Version: "wh2600USA_v2.2.0"}},
		"garage":   &fakeStation{name: "garage"},
	}
	c, err := NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{}, stations, archive, reg,
		zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("NewController() error: %v", err)
	}
	return c, reg
}

func get(t *testing.T, c *Controller, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetLatest(t *testing.T) {
	archive := &fakeArchive{
		readings: map[string]types.Reading{"garage": {StationName: "garage", OutTemp: 60}},
		rain:     0.25,
	}
	c, _ := newTestController(t, archive)

	base := time.Unix(1700000000, 0)
	c.cacheReading(types.Reading{Timestamp: base, StationName: "backyard", OutTemp: 50})
	c.cacheReading(types.Reading{Timestamp: base.Add(time.Minute), StationName: "backyard", OutTemp: 51})
	// An older reading never replaces a newer one.
	c.cacheReading(types.Reading{Timestamp: base, StationName: "backyard", OutTemp: 49})

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantTemp   float32
	}{
		{"cached", "/latest/backyard", http.StatusOK, 51},
		{"query parameter", "/latest?station=backyard", http.StatusOK, 51},
		{"archive fallback", "/latest/garage", http.StatusOK, 60},
		{"unknown", "/latest/attic", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, c, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp LatestReading
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if resp.Reading.OutTemp != tt.wantTemp {
				t.Errorf("outTemp = %g, want %g", resp.Reading.OutTemp, tt.wantTemp)
			}
			if resp.DayRain == nil || *resp.DayRain != 0.25 {
				t.Errorf("day rain = %v, want 0.25", resp.DayRain)
			}
		})
	}

	rec := get(t, c, "/latest")
	var all []types.Reading
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil || len(all) != 1 {
		t.Errorf("/latest = %s, %v", rec.Body.String(), err)
	}
}

func TestGetStation(t *testing.T) {
	c, _ := newTestController(t, nil)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/station/backyard", http.StatusOK},
		{"/station/garage", http.StatusServiceUnavailable},
		{"/station/attic", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, c, tt.path)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"firmware_version":"wh2600USA_v2.2.0"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c, reg := newTestController(t, nil)
	driver.NewMetrics(reg)

	rec := get(t, c, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "observerip_last_packet_timestamp_seconds") {
		t.Errorf("metrics output lacks poll collectors:\n%s", rec.Body.String())
	}
}

func TestLatestCacheFedByChannel(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	ch := c.StartStorageEngine(ctx, &wg)
	ch <- types.Reading{Timestamp: time.Unix(1700000000, 0), StationName: "backyard", OutTemp: 42}

	deadline := time.Now().Add(5 * time.Second)
	for {
		c.mu.RLock()
		r, ok := c.latest["backyard"]
		c.mu.RUnlock()
		if ok {
			if r.OutTemp != 42 {
				t.Errorf("cached reading = %+v", r)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("reading never reached the cache")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewControllerNeedsCertAndKey(t *testing.T) {
	_, err := NewController(context.Background(), &sync.WaitGroup{}, config.RESTServerData{Cert: "cert.pem"}, nil, nil, nil,
		zaptest.NewLogger(t).Sugar())
	if err == nil {
		t.Error("NewController() accepted a cert without a key")
	}
}

func TestHandlerAllowsCrossOriginReads(t *testing.T) {
	c, _ := newTestController(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/latest", nil)
	req.Header.Set("Origin", "http://dashboard.example")
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
