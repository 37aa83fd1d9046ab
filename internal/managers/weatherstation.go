package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/observerip/internal/interfaces"
	"github.com/chrissnell/observerip/internal/types"
	"github.com/chrissnell/observerip/internal/weatherstations"
	"github.com/chrissnell/observerip/internal/weatherstations/observerip"
	"github.com/chrissnell/observerip/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewWeatherStationManager creates a WeatherStationManager object, populated with all configured weather stations
func NewWeatherStationManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, distributor chan types.Reading,
	reg prometheus.Registerer, logger *zap.SugaredLogger) (interfaces.WeatherStationManager, error) {
	devices, err := configProvider.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	wsm := &weatherStationManager{
		logger:   logger,
		stations: make(map[string]weatherstations.WeatherStation),
	}

	for _, device := range devices {
		station, err := createStationFromConfig(ctx, wg, configProvider, device, distributor, reg, logger)
		if err != nil {
			return nil, fmt.Errorf("error creating weather station [%s]: %w", device.Name, err)
		}
		wsm.stations[device.Name] = station
		wsm.order = append(wsm.order, device.Name)
	}

	return wsm, nil
}

type weatherStationManager struct {
	logger   *zap.SugaredLogger
	stations map[string]weatherstations.WeatherStation
	order    []string
	mu       sync.RWMutex
}

// StartWeatherStations starts every station in configuration order. The first
// station that fails its startup checks stops the rest from starting.
func (w *weatherStationManager) StartWeatherStations() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, name := range w.order {
		w.logger.Infof("Starting weather station [%v]...", name)
		if err := w.stations[name].StartWeatherStation(); err != nil {
			return fmt.Errorf("failed to start weather station [%s]: %w", name, err)
		}
	}
	return nil
}

func (w *weatherStationManager) StopWeatherStations() {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for name, station := range w.stations {
		if err := station.StopWeatherStation(); err != nil {
			w.logger.Errorf("Error stopping weather station %s: %v", name, err)
		}
	}
}

// GetStation retrieves a weather station by name.
// Returns nil if the station does not exist.
// This method is safe for concurrent use.
func (w *weatherStationManager) GetStation(deviceName string) weatherstations.WeatherStation {
	w.mu.RLock()
	defer w.mu.RUnlock()

	station, exists := w.stations[deviceName]
	if !exists {
		return nil
	}
	return station
}

// createStationFromConfig creates the appropriate weather station based on device type
func createStationFromConfig(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, device config.DeviceData,
	distributor chan types.Reading, reg prometheus.Registerer, logger *zap.SugaredLogger) (weatherstations.WeatherStation, error) {
	switch device.Type {
	case "observerip", "":
		logger.Infof("Initializing ObserverIP weather station [%v]", device.Name)
		return observerip.NewStation(ctx, wg, configProvider, device.Name, distributor, reg, logger)
	default:
		return nil, fmt.Errorf("unknown weather station type: %s", device.Type)
	}
}
