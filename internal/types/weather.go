package types

import (
	"time"
)

// Reading is one observation as it flows from a weather station to the
// storage engines and controllers. Values are in US units (°F, mph, inHg,
// inches, W/m²) as the station reports them.
type Reading struct {
	Timestamp            time.Time `gorm:"column:time" json:"timestamp"`
	StationName          string    `gorm:"column:stationname" json:"station_name"`
	StationType          string    `gorm:"column:stationtype" json:"station_type"`
	SessionID            string    `gorm:"column:sessionid" json:"session_id"`
	Barometer            float32   `gorm:"column:barometer" json:"barometer"`
	InTemp               float32   `gorm:"column:intemp" json:"in_temp"`
	InHumidity           float32   `gorm:"column:inhumidity" json:"in_humidity"`
	OutTemp              float32   `gorm:"column:outtemp" json:"out_temp"`
	OutHumidity          float32   `gorm:"column:outhumidity" json:"out_humidity"`
	WindSpeed            float32   `gorm:"column:windspeed" json:"wind_speed"`
	WindGust             float32   `gorm:"column:windgust" json:"wind_gust"`
	WindDir              float32   `gorm:"column:winddir" json:"wind_dir"`
	WindChill            float32   `gorm:"column:windchill" json:"wind_chill"`
	HeatIndex            float32   `gorm:"column:heatindex" json:"heat_index"`
	DewPoint             float32   `gorm:"column:dewpoint" json:"dew_point"`
	SolarWatts           float32   `gorm:"column:solarwatts" json:"solar_watts"`
	UV                   float32   `gorm:"column:uv" json:"uv"`
	RainIncremental      float32   `gorm:"column:rainincremental" json:"rain_incremental"`
	InTempBatteryStatus  uint8     `gorm:"column:intempbatterystatus" json:"in_temp_battery_status"`
	OutTempBatteryStatus uint8     `gorm:"column:outtempbatterystatus" json:"out_temp_battery_status"`
	TxBatteryStatus      uint8     `gorm:"column:txbatterystatus" json:"tx_battery_status"`
}

// TableName implements the GORM Tabler interface for the Reading struct
func (Reading) TableName() string {
	return "weather"
}
