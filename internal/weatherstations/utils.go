package weatherstations

import (
	"fmt"
	"math"

	"github.com/chrissnell/observerip/pkg/config"
)

// CalculateWindChill applies the NWS wind chill formula. It returns tempF
// unchanged when wind chill is undefined (above 50°F or below 3 mph).
func CalculateWindChill(tempF, windSpeedMph float32) float32 {
	if tempF > 50 || windSpeedMph < 3 {
		return tempF
	}
	v := float32(math.Pow(float64(windSpeedMph), 0.16))
	return 35.74 + 0.6215*tempF - 35.75*v + 0.4275*tempF*v
}

// CalculateHeatIndex applies the NWS Rothfusz regression. It returns tempF
// unchanged below 80°F.
func CalculateHeatIndex(tempF, humidity float32) float32 {
	if tempF < 80 {
		return tempF
	}

	c1 := float32(-42.379)
	c2 := float32(2.04901523)
	c3 := float32(10.14333127)
	c4 := float32(-0.22475541)
	c5 := float32(-0.00683783)
	c6 := float32(-0.05481717)
	c7 := float32(0.00122874)
	c8 := float32(0.00085282)
	c9 := float32(-0.00000199)

	return c1 + c2*tempF + c3*humidity + c4*tempF*humidity + c5*tempF*tempF +
		c6*humidity*humidity + c7*tempF*tempF*humidity + c8*tempF*humidity*humidity +
		c9*tempF*tempF*humidity*humidity
}

// LoadDeviceConfig returns the named device's configuration.
func LoadDeviceConfig(configProvider config.ConfigProvider, deviceName string) (*config.DeviceData, error) {
	device, err := configProvider.GetDevice(deviceName)
	if err != nil {
		return nil, fmt.Errorf("station [%s] failed to load config: %w", deviceName, err)
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	return device, nil
}
