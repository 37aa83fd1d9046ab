package observerip

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func calibrationPage(calib map[string]string) string {
	kv := make([]string, 0, 2*len(calib))
	for k, v := range calib {
		kv = append(kv, k, v)
	}
	return inputs(kv...)
}

func directConfig() Config {
	return Config{
		Direct:       true,
		Host:         "127.0.0.1",
		PollInterval: 16 * time.Second,
		DupInterval:  2 * time.Second,
		Retry:        RetryPolicy{MaxTries: 2, RetryWait: 200 * time.Millisecond},
	}
}

func TestNewDirect(t *testing.T) {
	tests := []struct {
		version     string
		wantProfile string
	}{
		{"wh2600USA_v2.2.0", ProfileWH2600USA},
		{"wh2650_v9.0.0", ProfileDefault},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			port, _ := udpResponder(t, testInfoPacket(tt.version), 0)
			_, srv := newFakeDevice(t, map[string]string{
				PageLiveData: inputs("outTemp", "55.5", "rainofyearly", "3.20", "inBattSta", "Normal"),
			})

			now := time.Unix(1700000000, 400*int64(time.Millisecond))
			reg := prometheus.NewRegistry()
			d, err := New(context.Background(), directConfig(), zaptest.NewLogger(t).Sugar(),
				WithProbePort(port), WithBaseURL(srv.URL), WithMetrics(NewMetrics(reg)), fixedClock(now))
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if d.Mapping.Name != tt.wantProfile {
				t.Errorf("profile %s, want %s", d.Mapping.Name, tt.wantProfile)
			}

			step, err := d.Poller.Next(context.Background())
			if err != nil {
				t.Fatalf("Next() error: %v", err)
			}
			if step.Outcome != OutcomeEmitted || step.Packet.DateTime != 1700000000 {
				t.Fatalf("step = %+v", step)
			}
			if v, _ := step.Packet.Get(FieldOutTemp); v != 55.5 {
				t.Errorf("outTemp = %g", v)
			}
			if _, ok := step.Packet.Get(FieldRain); ok {
				t.Error("first packet carries rain")
			}
			if step.Delay != 16*time.Second {
				t.Errorf("delay %v, want poll interval", step.Delay)
			}
			if n := testutil.ToFloat64(d.Poller.metrics.cycles.WithLabelValues("emitted")); n != 1 {
				t.Errorf("emitted cycles metric = %g, want 1", n)
			}
		})
	}
}

func TestNewProbeFailure(t *testing.T) {
	port, _ := udpResponder(t, nil, 0)
	cfg := directConfig()
	cfg.Retry = RetryPolicy{MaxTries: 1, RetryWait: 50 * time.Millisecond}

	_, err := New(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), WithProbePort(port))
	if !errors.Is(err, ErrProbeFailed) {
		t.Errorf("New() error = %v, want ErrProbeFailed", err)
	}
}

func TestNewUnitsMismatch(t *testing.T) {
	port, _ := udpResponder(t, testInfoPacket(ProfileWH2600USA), 0)
	_, srv := newFakeDevice(t, map[string]string{
		PageStation: inputs("unit_Pressure", "1", "unit_Temperature", "1"),
	})

	cfg := directConfig()
	cfg.ExpectedUnits = map[string]string{"unit_Pressure": "1", "unit_Temperature": "0"}

	_, err := New(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), WithProbePort(port), WithBaseURL(srv.URL))
	var ume *UnitsMismatchError
	if !errors.As(err, &ume) {
		t.Fatalf("New() error = %v, want *UnitsMismatchError", err)
	}
	if len(ume.Mismatches) != 1 || ume.Mismatches["unit_Temperature"] != [2]string{"0", "1"} {
		t.Errorf("mismatches = %v", ume.Mismatches)
	}
}

func TestNewCalibration(t *testing.T) {
	want := DefaultCalibration()
	drifted := DefaultCalibration()
	drifted["RainGain"] = "1.30"

	tests := []struct {
		name          string
		set           bool
		applies       bool
		calib         map[string]string
		wantCorrected bool
		wantErr       bool
		wantBound     bool
	}{
		{name: "matching", calib: want},
		{name: "mismatch without correction", calib: drifted, wantErr: true},
		{name: "corrected", calib: drifted, set: true, applies: true},
		{name: "correction ignored by device", calib: drifted, set: true, wantErr: true, wantCorrected: true},
		{name: "configured value out of bounds", calib: want, wantErr: true, wantBound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, _ := udpResponder(t, testInfoPacket(ProfileWH2600USA), 0)
			dev, srv := newFakeDevice(t, map[string]string{PageCalibration: calibrationPage(tt.calib)})
			if tt.applies {
				dev.onPost = func(pages map[string]string, page, body string) {
					values, _ := url.ParseQuery(body)
					calib := map[string]string{}
					for k := range values {
						if k != "Apply" {
							calib[k] = values.Get(k)
						}
					}
					pages[page] = calibrationPage(calib)
				}
			}

			cfg := directConfig()
			cfg.CheckCalibration = true
			cfg.SetCalibration = tt.set
			cfg.Calibration = DefaultCalibration()
			if tt.wantBound {
				cfg.Calibration["luxwm2"] = "0.5"
			}

			_, err := New(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), WithProbePort(port), WithBaseURL(srv.URL))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("New() error: %v", err)
				}
				return
			}

			if tt.wantBound {
				var be *BoundError
				if !errors.As(err, &be) {
					t.Fatalf("New() error = %v, want *BoundError", err)
				}
				return
			}
			var cme *CalibrationMismatchError
			if !errors.As(err, &cme) {
				t.Fatalf("New() error = %v, want *CalibrationMismatchError", err)
			}
			if cme.Corrected != tt.wantCorrected {
				t.Errorf("Corrected = %v, want %v", cme.Corrected, tt.wantCorrected)
			}
			if _, ok := cme.Mismatches["RainGain"]; !ok || len(cme.Mismatches) != 1 {
				t.Errorf("mismatches = %v", cme.Mismatches)
			}
		})
	}
}

func TestNewIndirect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observer_data")
	lines := []string{"tempf=61.0", "humidity=40", "yearlyrainin=1.5", "lowbatt=0", "epoch=1700000000"}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		PollInterval: 16 * time.Second,
		DupInterval:  2 * time.Second,
		TransferFile: path,
		Retry:        RetryPolicy{MaxTries: 1, RetryWait: 10 * time.Millisecond},
	}
	d, err := New(context.Background(), cfg, zaptest.NewLogger(t).Sugar(), fixedClock(time.Unix(1700000004, 0)))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if d.Client != nil {
		t.Error("indirect driver without calibration checking contacted the device")
	}
	if d.Mapping.Name != ProfileWU {
		t.Errorf("profile %s, want wu", d.Mapping.Name)
	}

	step, err := d.Poller.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}
	if step.Outcome != OutcomeEmitted || step.Delay != 12*time.Second {
		t.Errorf("step = %+v, want emitted with a 12s delay", step)
	}
	if v, _ := step.Packet.Get(FieldTxBatteryStatus); v != 0 {
		t.Errorf("txBatteryStatus = %g", v)
	}

	step, _ = d.Poller.Next(context.Background())
	if step.Outcome != OutcomeDiscarded || step.Delay != 2*time.Second {
		t.Errorf("re-reading an unchanged file: step = %+v, want discarded with dup interval", step)
	}
}
