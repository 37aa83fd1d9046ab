package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testYAML = `
devices:
  - name: backyard
    type: observerip
    hostname: 192.168.1.50
    observerip:
      poll-interval: 30
      set-calibration: true
      calibration:
        RainGain: "1.05"
      expected-units:
        unit_Temperature: "1"
  - name: garage
    type: observerip
    observerip:
      direct: false
      xferfile: /tmp/observer_data
storage:
  sqlite:
    path: /var/lib/observerip/archive.db
controllers:
  - type: rest
    rest:
      port: 8080
      listen-addr: 127.0.0.1
`

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(testYAML))
	if err != nil {
		t.Fatalf("ParseYAML() error: %v", err)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(cfg.Devices))
	}

	o := cfg.Devices[0].ObserverIP
	if o == nil {
		t.Fatal("backyard has no observerip stanza")
	}
	if !o.Direct || o.PollInterval != 30 || o.DupInterval != 2 || o.MaxTries != 5 {
		t.Errorf("backyard settings = %+v", o)
	}
	if !o.CheckCalibration || !o.SetCalibration {
		t.Errorf("calibration flags = %v/%v, want true/true", o.CheckCalibration, o.SetCalibration)
	}
	if o.Calibration["RainGain"] != "1.05" || o.Calibration["luxwm2"] != "126.7" {
		t.Errorf("calibration = %v, want overrides merged onto defaults", o.Calibration)
	}
	if o.ExpectedUnits["unit_Temperature"] != "1" {
		t.Errorf("expected units = %v", o.ExpectedUnits)
	}

	g := cfg.Devices[1].ObserverIP
	if g.Direct || g.XferFile != "/tmp/observer_data" || g.PollInterval != 16 {
		t.Errorf("garage settings = %+v", g)
	}

	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "/var/lib/observerip/archive.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Controllers) != 1 || cfg.Controllers[0].RESTServer.Port != 8080 {
		t.Errorf("controllers = %+v", cfg.Controllers)
	}
}

func TestParseYAMLValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no name", "devices:\n  - type: observerip\n"},
		{"indirect without file", "devices:\n  - name: a\n    type: observerip\n    observerip:\n      direct: false\n      xferfile: \"\"\n"},
		{"zero poll interval", "devices:\n  - name: a\n    type: observerip\n    observerip:\n      poll-interval: 0\n"},
		{"zero tries", "devices:\n  - name: a\n    type: observerip\n    observerip:\n      max-tries: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseYAML([]byte(tt.doc)); err == nil {
				t.Error("ParseYAML() succeeded, want a validation error")
			}
		})
	}
}

func TestYAMLProviderGetDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	d, err := p.GetDevice("garage")
	if err != nil {
		t.Fatalf("GetDevice() error: %v", err)
	}
	if d.ObserverIP.Direct {
		t.Error("garage should be indirect")
	}
	if _, err := p.GetDevice("attic"); err == nil {
		t.Error("GetDevice(unknown) succeeded")
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider reports writable")
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	cfg, err := ParseYAML([]byte(testYAML))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "config.db")
	p, err := NewSQLiteProvider(path)
	if err != nil {
		t.Fatalf("NewSQLiteProvider() error: %v", err)
	}
	defer p.Close()

	if err := p.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	// Saving twice replaces rather than duplicates.
	if err := p.SaveConfig(cfg); err != nil {
		t.Fatalf("second SaveConfig() error: %v", err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("LoadConfig() = %+v\nwant %+v", got, cfg)
	}

	d, err := p.GetDevice("backyard")
	if err != nil {
		t.Fatalf("GetDevice() error: %v", err)
	}
	if d.Hostname != "192.168.1.50" || d.ObserverIP.Calibration["RainGain"] != "1.05" {
		t.Errorf("GetDevice() = %+v", d)
	}
}

func TestSQLiteProviderAddDelete(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	o := DefaultObserverIP()
	dev := &DeviceData{Name: "roof", Type: "observerip", ObserverIP: &o}
	if err := p.AddDevice(dev); err != nil {
		t.Fatalf("AddDevice() error: %v", err)
	}
	if err := p.AddDevice(dev); err == nil {
		t.Error("adding a duplicate device succeeded")
	}

	got, err := p.GetDevice("roof")
	if err != nil {
		t.Fatalf("GetDevice() error: %v", err)
	}
	if !reflect.DeepEqual(*got.ObserverIP, o) {
		t.Errorf("stored settings = %+v, want %+v", *got.ObserverIP, o)
	}

	if err := p.DeleteDevice("roof"); err != nil {
		t.Fatalf("DeleteDevice() error: %v", err)
	}
	if err := p.DeleteDevice("roof"); err == nil {
		t.Error("deleting a missing device succeeded")
	}
	if devices, _ := p.GetDevices(); len(devices) != 0 {
		t.Errorf("devices after delete = %v", devices)
	}
}

func TestDefaultDeviceYAMLParsesToDefaults(t *testing.T) {
	b, err := DefaultDeviceYAML("observerip")
	if err != nil {
		t.Fatalf("DefaultDeviceYAML() error: %v", err)
	}

	cfg, err := ParseYAML(b)
	if err != nil {
		t.Fatalf("ParseYAML() error: %v\n%s", err, b)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].ObserverIP == nil {
		t.Fatalf("devices = %+v", cfg.Devices)
	}
	want := DefaultObserverIP()
	if got := *cfg.Devices[0].ObserverIP; !reflect.DeepEqual(got, want) {
		t.Errorf("stanza = %+v, want %+v", got, want)
	}
}
