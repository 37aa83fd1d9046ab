package config

import (
	"fmt"
)

// ConfigProvider is a source of configuration data.
type ConfigProvider interface {
	LoadConfig() (*ConfigData, error)

	GetDevices() ([]DeviceData, error)
	GetDevice(name string) (*DeviceData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData is the complete configuration.
type ConfigData struct {
	Devices     []DeviceData     `json:"devices"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
}

// DeviceData configures one weather station.
type DeviceData struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	// Hostname is probed by unicast; empty broadcasts.
	Hostname   string          `json:"hostname,omitempty"`
	ObserverIP *ObserverIPData `json:"observerip,omitempty"`
}

// ObserverIPData is the driver stanza of an ObserverIP device. Intervals are
// in seconds.
type ObserverIPData struct {
	Direct           bool              `json:"direct"`
	PollInterval     float64           `json:"poll_interval"`
	DupInterval      float64           `json:"dup_interval"`
	XferFile         string            `json:"xferfile,omitempty"`
	MaxTries         int               `json:"max_tries"`
	RetryWait        float64           `json:"retry_wait"`
	CheckCalibration bool              `json:"check_calibration"`
	SetCalibration   bool              `json:"set_calibration"`
	Calibration      map[string]string `json:"calibration,omitempty"`
	ExpectedUnits    map[string]string `json:"expected_units,omitempty"`
}

// StorageData holds the configuration of each storage engine.
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
	SQLite      *SQLiteData      `json:"sqlite,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// SQLiteData configures the local observation archive.
type SQLiteData struct {
	Path string `json:"path"`
}

// ControllerData holds the configuration of one controller.
type ControllerData struct {
	Type       string          `json:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty"`
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultObserverIP returns the stanza a new ObserverIP device starts from.
func DefaultObserverIP() ObserverIPData {
	return ObserverIPData{
		Direct:           true,
		PollInterval:     16,
		DupInterval:      2,
		XferFile:         "/var/tmp/observer_data",
		MaxTries:         5,
		RetryWait:        2,
		CheckCalibration: true,
		SetCalibration:   false,
		Calibration: map[string]string{
			"RainGain":      "1.00",
			"windDirOffset": "0",
			"inHumiOffset":  "0",
			"AbsOffset":     "0.00",
			"UVGain":        "1.00",
			"SolarGain":     "1.00",
			"WindGain":      "1.00",
			"RelOffset":     "0.00",
			"luxwm2":        "126.7",
			"outHumiOffset": "0",
			"outTempOffset": "0.0",
			"inTempOffset":  "0.0",
		},
	}
}

// Validate reports configuration that cannot work.
func (d *DeviceData) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("device has no name")
	}
	o := d.ObserverIP
	if d.Type != "observerip" || o == nil {
		return nil
	}
	if !o.Direct && o.XferFile == "" {
		return fmt.Errorf("device [%s]: indirect mode needs xferfile", d.Name)
	}
	if o.PollInterval <= 0 || o.DupInterval <= 0 {
		return fmt.Errorf("device [%s]: poll-interval and dup-interval must be positive", d.Name)
	}
	if o.MaxTries < 1 {
		return fmt.Errorf("device [%s]: max-tries must be at least 1", d.Name)
	}
	return nil
}

func findDevice(devices []DeviceData, name string) (*DeviceData, error) {
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}
