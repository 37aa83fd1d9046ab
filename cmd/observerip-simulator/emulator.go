package main

import (
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// WeatherEmulator generates synthetic live data with daily and seasonal
// swings. The yearly rain total only ever grows.
type WeatherEmulator struct {
	baseTemp     float64
	baseHumidity float64
	basePressure float64

	mu          sync.Mutex
	yearlyRain  float64
	lowBatt     bool
	now         func() time.Time
	rand        *rand.Rand
}

func NewWeatherEmulator(seed int64) *WeatherEmulator {
	return &WeatherEmulator{
		baseTemp:     60,
		baseHumidity: 55,
		basePressure: 29.9,
		now:          time.Now,
		rand:         rand.New(rand.NewSource(seed)),
	}
}

type sample struct {
	inTemp, inHumi, pressure  float64
	outTemp, outHumi          float64
	windDir, wind, gust       float64
	solar, uv                 float64
	dewpoint, windchill, rain float64
}

func (w *WeatherEmulator) next() sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	hour := float64(now.Hour()) + float64(now.Minute())/60
	day := float64(now.YearDay())

	seasonal := 20 * math.Sin(2*math.Pi*(day-81)/365)
	daily := 12 * math.Sin(2*math.Pi*(hour-9)/24)

	var s sample
	s.outTemp = w.baseTemp + seasonal + daily + (w.rand.Float64()-0.5)*2
	s.outHumi = math.Max(10, math.Min(98, w.baseHumidity+(w.baseTemp-s.outTemp)))
	s.inTemp = 70 + (w.rand.Float64()-0.5)*2
	s.inHumi = 40 + (w.rand.Float64()-0.5)*4
	s.pressure = w.basePressure + (w.rand.Float64()-0.5)*0.05
	s.wind = 3 + w.rand.Float64()*8
	s.gust = s.wind + w.rand.Float64()*6
	s.windDir = math.Floor(w.rand.Float64() * 360)

	if hour >= 6 && hour <= 18 {
		s.solar = math.Sin(math.Pi*(hour-6)/12) * 900 * (0.8 + w.rand.Float64()*0.2)
		s.uv = math.Floor(s.solar / 100)
	}

	if w.rand.Float64() < 0.05 {
		w.yearlyRain += 0.01
	}
	s.rain = w.yearlyRain

	// Magnus approximation, in fahrenheit.
	c := (s.outTemp - 32) * 5 / 9
	g := math.Log(s.outHumi/100) + 17.62*c/(243.12+c)
	s.dewpoint = 243.12*g/(17.62-g)*9/5 + 32
	s.windchill = s.outTemp
	if s.outTemp <= 50 && s.wind > 3 {
		v := math.Pow(s.wind, 0.16)
		s.windchill = 35.74 + 0.6215*s.outTemp - 35.75*v + 0.4275*s.outTemp*v
	}
	return s
}

func ff(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// LiveData returns a reading keyed the way the device's live data page
// names its fields.
func (w *WeatherEmulator) LiveData() map[string]string {
	s := w.next()
	battery := "Normal"
	if w.lowBatt {
		battery = "Low"
	}
	return map[string]string{
		"inTemp":       ff(s.inTemp, 1),
		"inHumi":       ff(s.inHumi, 0),
		"AbsPress":     ff(s.pressure, 2),
		"RelPress":     ff(s.pressure, 2),
		"outTemp":      ff(s.outTemp, 1),
		"outHumi":      ff(s.outHumi, 0),
		"windir":       ff(s.windDir, 0),
		"avgwind":      ff(s.wind, 1),
		"gustspeed":    ff(s.gust, 1),
		"solarrad":     ff(s.solar, 2),
		"uvi":          ff(s.uv, 0),
		"rainofyearly": ff(s.rain, 2),
		"inBattSta":    battery,
		"outBattSta1":  battery,
	}
}

// TransferData returns a reading keyed the way an upload intermediary
// writes the transfer file.
func (w *WeatherEmulator) TransferData() map[string]string {
	s := w.next()
	lowbatt := "0"
	if w.lowBatt {
		lowbatt = "1"
	}
	return map[string]string{
		"epoch":          strconv.FormatInt(w.now().Unix(), 10),
		"tempf":          ff(s.outTemp, 1),
		"humidity":       ff(s.outHumi, 0),
		"dewptf":         ff(s.dewpoint, 1),
		"windchillf":     ff(s.windchill, 1),
		"winddir":        ff(s.windDir, 0),
		"windspeedmph":   ff(s.wind, 1),
		"windgustmph":    ff(s.gust, 1),
		"yearlyrainin":   ff(s.rain, 2),
		"solarradiation": ff(s.solar, 2),
		"UV":             ff(s.uv, 0),
		"indoortempf":    ff(s.inTemp, 1),
		"indoorhumidity": ff(s.inHumi, 0),
		"baromin":        ff(s.pressure, 2),
		"lowbatt":        lowbatt,
	}
}
