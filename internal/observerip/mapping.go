package observerip

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Coercion converts a raw device string into a typed observation value.
type Coercion int

const (
	ToFloat Coercion = iota
	ToInt
	// NormBattery maps "Normal" to 0 and anything else to 1.
	NormBattery
)

func (c Coercion) String() string {
	switch c {
	case ToFloat:
		return "float"
	case ToInt:
		return "int"
	case NormBattery:
		return "battery"
	default:
		return fmt.Sprintf("Coercion(%d)", int(c))
	}
}

// Apply converts raw according to c.
func (c Coercion) Apply(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	switch c {
	case ToFloat:
		return strconv.ParseFloat(raw, 64)
	case ToInt:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return float64(i), nil
		}
		// accept "1414141414.0" the way the device and intermediary sometimes write epochs
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, err
		}
		return math.Trunc(f), nil
	case NormBattery:
		if raw == "Normal" {
			return 0, nil
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown coercion %d", int(c))
	}
}

// FieldRule names the vendor field a canonical observation comes from.
type FieldRule struct {
	Source string
	Coerce Coercion
}

// Canonical observation names.
const (
	FieldDateTime             = "dateTime"
	FieldInTemp               = "inTemp"
	FieldInHumidity           = "inHumidity"
	FieldPressure             = "pressure"
	FieldOutTemp              = "outTemp"
	FieldOutHumidity          = "outHumidity"
	FieldWindDir              = "windDir"
	FieldWindSpeed            = "windSpeed"
	FieldWindGust             = "windGust"
	FieldRadiation            = "radiation"
	FieldUV                   = "UV"
	FieldRain                 = "rain"
	FieldDewpoint             = "dewpoint"
	FieldWindchill            = "windchill"
	FieldInTempBatteryStatus  = "inTempBatteryStatus"
	FieldOutTempBatteryStatus = "outTempBatteryStatus"
	FieldTxBatteryStatus      = "txBatteryStatus"
)

// FieldMapping is one firmware profile: canonical name to vendor rule.
type FieldMapping struct {
	Name  string
	Rules map[string]FieldRule
}

// Fields returns the canonical names of m in a stable order.
func (m *FieldMapping) Fields() []string {
	names := make([]string, 0, len(m.Rules))
	for name := range m.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile names.
const (
	ProfileWH2600USA = "wh2600USA_v2.2.0"
	ProfileDefault   = "default"
	ProfileWU        = "wu"
)

var directRules = map[string]FieldRule{
	FieldDateTime:    {"epoch", ToInt},
	FieldInTemp:      {"inTemp", ToFloat},
	FieldInHumidity:  {"inHumi", ToFloat},
	FieldPressure:    {"AbsPress", ToFloat},
	FieldOutTemp:     {"outTemp", ToFloat},
	FieldOutHumidity: {"outHumi", ToFloat},
	FieldWindDir:     {"windir", ToFloat},
	FieldWindSpeed:   {"avgwind", ToFloat},
	FieldWindGust:    {"gustspeed", ToFloat},
	FieldRadiation:   {"solarrad", ToFloat},
	FieldUV:          {"uvi", ToFloat},
	FieldRain:        {"rainofyearly", ToFloat},
}

func withRules(base map[string]FieldRule, extra map[string]FieldRule) map[string]FieldRule {
	rules := make(map[string]FieldRule, len(base)+len(extra))
	for k, v := range base {
		rules[k] = v
	}
	for k, v := range extra {
		rules[k] = v
	}
	return rules
}

var profiles = map[string]*FieldMapping{
	ProfileWH2600USA: {
		Name: ProfileWH2600USA,
		Rules: withRules(directRules, map[string]FieldRule{
			FieldInTempBatteryStatus:  {"inBattSta", NormBattery},
			FieldOutTempBatteryStatus: {"outBattSta1", NormBattery},
		}),
	},
	ProfileDefault: {
		Name:  ProfileDefault,
		Rules: withRules(directRules, nil),
	},
	ProfileWU: {
		Name: ProfileWU,
		Rules: map[string]FieldRule{
			FieldDateTime:        {"epoch", ToInt},
			FieldOutTemp:         {"tempf", ToFloat},
			FieldOutHumidity:     {"humidity", ToFloat},
			FieldDewpoint:        {"dewptf", ToFloat},
			FieldWindchill:       {"windchillf", ToFloat},
			FieldWindDir:         {"winddir", ToFloat},
			FieldWindSpeed:       {"windspeedmph", ToFloat},
			FieldWindGust:        {"windgustmph", ToFloat},
			FieldRain:            {"yearlyrainin", ToFloat},
			FieldRadiation:       {"solarradiation", ToFloat},
			FieldUV:              {"UV", ToFloat},
			FieldInTemp:          {"indoortempf", ToFloat},
			FieldInHumidity:      {"indoorhumidity", ToFloat},
			FieldPressure:        {"baromin", ToFloat},
			FieldTxBatteryStatus: {"lowbatt", ToFloat},
		},
	},
}

// Profile returns the named mapping and whether it exists.
func Profile(name string) (*FieldMapping, bool) {
	m, ok := profiles[name]
	return m, ok
}

// ProfileForFirmware picks the mapping for a firmware version string,
// falling back to the default profile. matched is false on fallback.
func ProfileForFirmware(version string) (m *FieldMapping, matched bool) {
	if m, ok := profiles[version]; ok && version != ProfileWU {
		return m, true
	}
	return profiles[ProfileDefault], false
}
