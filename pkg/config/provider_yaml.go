package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document into ConfigData, filling ObserverIP
// defaults for anything the document leaves out.
func ParseYAML(b []byte) (*ConfigData, error) {
	var yamlConfig struct {
		Devices     []DeviceYAML     `yaml:"devices"`
		Storage     StorageYAML      `yaml:"storage,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
	}

	if err := yaml.Unmarshal(b, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Devices:     make([]DeviceData, len(yamlConfig.Devices)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, device := range yamlConfig.Devices {
		config.Devices[i] = DeviceData{
			Name:     device.Name,
			Type:     device.Type,
			Hostname: device.Hostname,
		}
		if device.Type == "observerip" || device.ObserverIP != nil {
			o := device.ObserverIP.toData()
			config.Devices[i].ObserverIP = &o
		}
		if err := config.Devices[i].Validate(); err != nil {
			return nil, err
		}
	}

	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}
	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{
			Path: yamlConfig.Storage.SQLite.Path,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type: controller.Type,
		}
		if controller.RESTServer != nil {
			config.Controllers[i].RESTServer = &RESTServerData{
				Cert:       controller.RESTServer.Cert,
				Key:        controller.RESTServer.Key,
				Port:       controller.RESTServer.Port,
				ListenAddr: controller.RESTServer.ListenAddr,
			}
		}
	}

	return config, nil
}

// GetDevices returns device configurations
func (y *YAMLProvider) GetDevices() ([]DeviceData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return y.config.Devices, nil
}

// GetDevice returns the named device
func (y *YAMLProvider) GetDevice(name string) (*DeviceData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return findDevice(y.config.Devices, name)
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Storage, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return y.config.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// DefaultDeviceYAML renders a complete ObserverIP device stanza named name,
// with every key set to its default.
func DefaultDeviceYAML(name string) ([]byte, error) {
	d := DefaultObserverIP()
	doc := struct {
		Devices []DeviceYAML `yaml:"devices"`
	}{
		Devices: []DeviceYAML{{
			Name:       name,
			Type:       "observerip",
			ObserverIP: fromData(d),
		}},
	}
	return yaml.Marshal(doc)
}

func fromData(d ObserverIPData) *ObserverIPYAML {
	return &ObserverIPYAML{
		Direct:           &d.Direct,
		PollInterval:     &d.PollInterval,
		DupInterval:      &d.DupInterval,
		XferFile:         &d.XferFile,
		MaxTries:         &d.MaxTries,
		RetryWait:        &d.RetryWait,
		CheckCalibration: &d.CheckCalibration,
		SetCalibration:   &d.SetCalibration,
		Calibration:      d.Calibration,
		ExpectedUnits:    d.ExpectedUnits,
	}
}

func (y *YAMLProvider) ensureLoaded() error {
	if y.config != nil {
		return nil
	}
	_, err := y.LoadConfig()
	return err
}

// YAML-specific structs with proper YAML tags for parsing the file format
type DeviceYAML struct {
	Name       string          `yaml:"name"`
	Type       string          `yaml:"type,omitempty"`
	Hostname   string          `yaml:"hostname,omitempty"`
	ObserverIP *ObserverIPYAML `yaml:"observerip,omitempty"`
}

// ObserverIPYAML uses pointers so unset keys keep their defaults.
type ObserverIPYAML struct {
	Direct           *bool             `yaml:"direct,omitempty"`
	PollInterval     *float64          `yaml:"poll-interval,omitempty"`
	DupInterval      *float64          `yaml:"dup-interval,omitempty"`
	XferFile         *string           `yaml:"xferfile,omitempty"`
	MaxTries         *int              `yaml:"max-tries,omitempty"`
	RetryWait        *float64          `yaml:"retry-wait,omitempty"`
	CheckCalibration *bool             `yaml:"check-calibration,omitempty"`
	SetCalibration   *bool             `yaml:"set-calibration,omitempty"`
	Calibration      map[string]string `yaml:"calibration,omitempty"`
	ExpectedUnits    map[string]string `yaml:"expected-units,omitempty"`
}

func (o *ObserverIPYAML) toData() ObserverIPData {
	d := DefaultObserverIP()
	if o == nil {
		return d
	}
	if o.Direct != nil {
		d.Direct = *o.Direct
	}
	if o.PollInterval != nil {
		d.PollInterval = *o.PollInterval
	}
	if o.DupInterval != nil {
		d.DupInterval = *o.DupInterval
	}
	if o.XferFile != nil {
		d.XferFile = *o.XferFile
	}
	if o.MaxTries != nil {
		d.MaxTries = *o.MaxTries
	}
	if o.RetryWait != nil {
		d.RetryWait = *o.RetryWait
	}
	if o.CheckCalibration != nil {
		d.CheckCalibration = *o.CheckCalibration
	}
	if o.SetCalibration != nil {
		d.SetCalibration = *o.SetCalibration
	}
	for k, v := range o.Calibration {
		d.Calibration[k] = v
	}
	if len(o.ExpectedUnits) > 0 {
		d.ExpectedUnits = o.ExpectedUnits
	}
	return d
}

type StorageYAML struct {
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
	SQLite      *SQLiteYAML      `yaml:"sqlite,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type ControllerYAML struct {
	Type       string          `yaml:"type,omitempty"`
	RESTServer *RESTServerYAML `yaml:"rest,omitempty"`
}

type RESTServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}
