// Package observerip runs an ObserverIP driver as a weather station, turning
// its packets into readings for the storage engines.
package observerip

import (
	"context"
	"fmt"
	"sync"
	"time"

	driver "github.com/chrissnell/observerip/internal/observerip"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/internal/weatherstations"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Station is an ObserverIP weather station.
type Station struct {
	ctx                context.Context
	cancel             context.CancelFunc
	wg                 *sync.WaitGroup
	config             config.DeviceData
	ReadingDistributor chan types.Reading
	logger             *zap.SugaredLogger
	sessionID          string
	opts               []driver.Option

	mu     sync.RWMutex
	driver *driver.Driver
}

// NewStation loads the device's configuration. Metrics are registered on
// reg, labelled with the station name, unless reg is nil.
func NewStation(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, deviceName string,
	distributor chan types.Reading, reg prometheus.Registerer, logger *zap.SugaredLogger, opts ...driver.Option) (*Station, error) {
	deviceConfig, err := weatherstations.LoadDeviceConfig(configProvider, deviceName)
	if err != nil {
		return nil, err
	}
	if deviceConfig.ObserverIP == nil {
		d := config.DefaultObserverIP()
		deviceConfig.ObserverIP = &d
	}

	if reg != nil {
		m := driver.NewMetrics(prometheus.WrapRegistererWith(prometheus.Labels{"station": deviceName}, reg))
		opts = append([]driver.Option{driver.WithMetrics(m)}, opts...)
	}

	stationCtx, cancel := context.WithCancel(ctx)
	return &Station{
		ctx:                stationCtx,
		cancel:             cancel,
		wg:                 wg,
		config:             *deviceConfig,
		ReadingDistributor: distributor,
		logger:             logger.Named("observerip").With("station", deviceName),
		sessionID:          uuid.NewString(),
		opts:               opts,
	}, nil
}

// StationName returns the name of this weather station
func (s *Station) StationName() string {
	return s.config.Name
}

// DriverConfig translates a device's configuration into driver settings.
func DriverConfig(d config.DeviceData) driver.Config {
	o := d.ObserverIP
	return driver.Config{
		Direct:       o.Direct,
		Host:         d.Hostname,
		PollInterval: seconds(o.PollInterval),
		DupInterval:  seconds(o.DupInterval),
		TransferFile: o.XferFile,
		Retry: driver.RetryPolicy{
			MaxTries:  o.MaxTries,
			RetryWait: seconds(o.RetryWait),
		},
		CheckCalibration: o.CheckCalibration,
		SetCalibration:   o.SetCalibration,
		Calibration:      o.Calibration,
		ExpectedUnits:    o.ExpectedUnits,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// StartWeatherStation runs the startup checks and, if they pass, starts
// polling. A failed check is returned and nothing is started.
func (s *Station) StartWeatherStation() error {
	d, err := driver.New(s.ctx, DriverConfig(s.config), s.logger, s.opts...)
	if err != nil {
		return fmt.Errorf("station [%s] failed startup checks: %w", s.config.Name, err)
	}

	s.mu.Lock()
	s.driver = d
	s.mu.Unlock()

	s.logger.Infow("starting ObserverIP station",
		"direct", s.config.ObserverIP.Direct,
		"profile", d.Mapping.Name,
		"session", s.sessionID)

	s.wg.Add(1)
	go s.run(d)
	return nil
}

// StopWeatherStation stops polling. The packet stream ends at its next
// cancellation point.
func (s *Station) StopWeatherStation() error {
	s.logger.Info("stopping ObserverIP station")
	s.cancel()
	return nil
}

// Info returns the probe reply of a directly polled device.
func (s *Station) Info() (*driver.Info, error) {
	s.mu.RLock()
	d := s.driver
	s.mu.RUnlock()

	if d == nil || d.Client == nil {
		return nil, fmt.Errorf("station [%s] has no probed device", s.config.Name)
	}
	return d.Client.Packet().Decode()
}

func (s *Station) run(d *driver.Driver) {
	defer s.wg.Done()

	for pkt := range d.Packets(s.ctx) {
		r := s.toReading(pkt)
		select {
		case s.ReadingDistributor <- r:
		case <-s.ctx.Done():
			return
		}
	}
	s.logger.Info("poll loop stopped")
}

func (s *Station) toReading(pkt driver.Packet) types.Reading {
	r := types.Reading{
		Timestamp:   time.Unix(pkt.DateTime, 0),
		StationName: s.config.Name,
		StationType: driver.HardwareName,
		SessionID:   s.sessionID,
	}

	f := func(name string, dst *float32) bool {
		v, ok := pkt.Get(name)
		if ok {
			*dst = float32(v)
		}
		return ok
	}
	b := func(name string, dst *uint8) {
		if v, ok := pkt.Get(name); ok {
			*dst = uint8(v)
		}
	}

	f(driver.FieldPressure, &r.Barometer)
	f(driver.FieldInTemp, &r.InTemp)
	f(driver.FieldInHumidity, &r.InHumidity)
	hasTemp := f(driver.FieldOutTemp, &r.OutTemp)
	hasHumidity := f(driver.FieldOutHumidity, &r.OutHumidity)
	hasWind := f(driver.FieldWindSpeed, &r.WindSpeed)
	f(driver.FieldWindGust, &r.WindGust)
	f(driver.FieldWindDir, &r.WindDir)
	f(driver.FieldDewpoint, &r.DewPoint)
	f(driver.FieldRadiation, &r.SolarWatts)
	f(driver.FieldUV, &r.UV)
	f(driver.FieldRain, &r.RainIncremental)
	b(driver.FieldInTempBatteryStatus, &r.InTempBatteryStatus)
	b(driver.FieldOutTempBatteryStatus, &r.OutTempBatteryStatus)
	b(driver.FieldTxBatteryStatus, &r.TxBatteryStatus)

	if !f(driver.FieldWindchill, &r.WindChill) && hasTemp && hasWind {
		r.WindChill = weatherstations.CalculateWindChill(r.OutTemp, r.WindSpeed)
	}
	if hasTemp && hasHumidity {
		r.HeatIndex = weatherstations.CalculateHeatIndex(r.OutTemp, r.OutHumidity)
	}

	return r
}
