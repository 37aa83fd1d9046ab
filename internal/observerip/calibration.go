package observerip

import (
	"sort"
	"strconv"
	"strings"
)

// Bound is the accepted range of one calibration constant.
type Bound struct {
	Coerce Coercion
	Min    float64
	Max    float64
}

// CalibrationBounds lists every calibration key the device accepts.
var CalibrationBounds = map[string]Bound{
	"RainGain":      {ToFloat, 0.1, 5.0},
	"UVGain":        {ToFloat, 0.1, 5.0},
	"SolarGain":     {ToFloat, 0.1, 5.0},
	"WindGain":      {ToFloat, 0.1, 5.0},
	"windDirOffset": {ToInt, -180, 180},
	"inHumiOffset":  {ToInt, -10, 10},
	"outHumiOffset": {ToInt, -10, 10},
	"inTempOffset":  {ToFloat, -10.0, 10.0},
	"outTempOffset": {ToFloat, -10.0, 10.0},
	"AbsOffset":     {ToFloat, -80.0, 80.0},
	"RelOffset":     {ToFloat, -80.0, 80.0},
	"luxwm2":        {ToFloat, 1.0, 1000.0},
}

// DefaultCalibration is the factory calibration of the base unit.
func DefaultCalibration() map[string]string {
	return map[string]string{
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
	}
}

// CheckCalibration verifies every value in calib against CalibrationBounds
// and returns a *BoundError for the first offending key in sorted order.
// Integer-coerced keys must parse as integers.
func CheckCalibration(calib map[string]string) error {
	keys := make([]string, 0, len(calib))
	for k := range calib {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := calib[k]
		b, ok := CalibrationBounds[k]
		if !ok {
			return &BoundError{Key: k, Value: v, Unknown: true}
		}

		var (
			n   float64
			err error
		)
		if b.Coerce == ToInt {
			var i int64
			i, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			n = float64(i)
		} else {
			n, err = b.Coerce.Apply(v)
		}
		if err != nil {
			return &BoundError{Key: k, Value: v, Min: b.Min, Max: b.Max, Err: err}
		}
		if n < b.Min || n > b.Max {
			return &BoundError{Key: k, Value: v, Min: b.Min, Max: b.Max}
		}
	}
	return nil
}

// DiffCalibration returns the keys of want whose numeric value differs from
// have, as want/have pairs. A key missing from have always differs.
func DiffCalibration(want, have map[string]string) map[string][2]string {
	diff := make(map[string][2]string)
	for k, w := range want {
		h, ok := have[k]
		if !ok {
			diff[k] = [2]string{w, ""}
			continue
		}
		wf, werr := strconv.ParseFloat(strings.TrimSpace(w), 64)
		hf, herr := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if werr != nil || herr != nil {
			if w != h {
				diff[k] = [2]string{w, h}
			}
			continue
		}
		if wf != hf {
			diff[k] = [2]string{w, h}
		}
	}
	return diff
}
