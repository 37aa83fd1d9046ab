package observerip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	driver "github.com/chrissnell/observerip/internal/observerip"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func writeConfig(t *testing.T, xferFile string) config.ConfigProvider {
	t.Helper()
	dir := t.TempDir()
	doc := fmt.Sprintf(`
devices:
  - name: backyard
    type: observerip
    observerip:
      direct: false
      xferfile: %s
      check-calibration: false
      max-tries: 1
      retry-wait: 0.05
`, xferFile)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return config.NewYAMLProvider(path)
}

func TestStationEmitsReadings(t *testing.T) {
	xfer := filepath.Join(t.TempDir(), "observer_data")
	epoch := time.Now().Unix()
	data := fmt.Sprintf("tempf=30.0\nhumidity=60\nwindspeedmph=20\nwindgustmph=25\nyearlyrainin=1.5\nlowbatt=1\nepoch=%d\n", epoch)
	if err := os.WriteFile(xfer, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	readings := make(chan types.Reading, 1)
	reg := prometheus.NewRegistry()

	s, err := NewStation(ctx, &wg, writeConfig(t, xfer), "backyard", readings, reg, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("NewStation() error: %v", err)
	}
	if err := s.StartWeatherStation(); err != nil {
		t.Fatalf("StartWeatherStation() error: %v", err)
	}

	var r types.Reading
	select {
	case r = <-readings:
	case <-time.After(5 * time.Second):
		t.Fatal("no reading within 5s")
	}

	if r.StationName != "backyard" || r.StationType != driver.HardwareName || r.SessionID == "" {
		t.Errorf("reading identity = %q/%q/%q", r.StationName, r.StationType, r.SessionID)
	}
	if r.Timestamp.Unix() != epoch {
		t.Errorf("timestamp = %v, want %d", r.Timestamp, epoch)
	}
	if r.OutTemp != 30 || r.WindGust != 25 || r.TxBatteryStatus != 1 {
		t.Errorf("reading = %+v", r)
	}
	if r.RainIncremental != 0 {
		t.Errorf("first reading carries rain %g", r.RainIncremental)
	}
	if r.WindChill > 18 || r.WindChill < 17 {
		t.Errorf("wind chill = %g, want computed ~17.4", r.WindChill)
	}

	if _, err := s.Info(); err == nil {
		t.Error("Info() succeeded for an indirect station")
	}
	if n, err := testutil.GatherAndCount(reg, "observerip_poll_cycles_total"); err != nil || n != 1 {
		t.Errorf("poll cycle series = %d, %v; want 1", n, err)
	}

	s.StopWeatherStation()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("station did not stop")
	}
}

func TestStationStartupFailure(t *testing.T) {
	provider := writeConfig(t, filepath.Join(t.TempDir(), "observer_data"))
	var wg sync.WaitGroup

	// Calibration checking in indirect mode needs a device; with no transfer
	// file and nothing answering the probe, startup must fail.
	s, err := NewStation(context.Background(), &wg, provider, "backyard", make(chan types.Reading), nil,
		zaptest.NewLogger(t).Sugar(), driver.WithProbePort(1))
	if err != nil {
		t.Fatalf("NewStation() error: %v", err)
	}
	s.config.ObserverIP.CheckCalibration = true
	s.config.Hostname = "127.0.0.1"

	if err := s.StartWeatherStation(); err == nil {
		t.Error("StartWeatherStation() succeeded without a device")
	}
}

func TestNewStationUnknownDevice(t *testing.T) {
	var wg sync.WaitGroup
	_, err := NewStation(context.Background(), &wg, writeConfig(t, "/tmp/x"), "attic", nil, nil, zaptest.NewLogger(t).Sugar())
	if err == nil {
		t.Error("NewStation() succeeded for an unknown device")
	}
}
