// Package interfaces defines interface types shared across the application.
package interfaces

import "github.com/chrissnell/observerip/internal/weatherstations"

// WeatherStationManager defines the interface for managing weather stations
type WeatherStationManager interface {
	StartWeatherStations() error
	StopWeatherStations()
	GetStation(deviceName string) weatherstations.WeatherStation
}
