// Package weatherstations holds what every weather station backend shares.
package weatherstations

// WeatherStation is an interface that provides standard methods for various
// weather station backends
type WeatherStation interface {
	StartWeatherStation() error
	StopWeatherStation() error
	StationName() string
}
