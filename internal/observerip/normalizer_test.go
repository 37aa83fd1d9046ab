package observerip

import (
	"strconv"
	"testing"

	"go.uber.org/zap/zaptest"
)

func reading(epoch int64, kv ...string) RawReading {
	r := RawReading{"epoch": strconv.FormatInt(epoch, 10)}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i]] = kv[i+1]
	}
	return r
}

func TestNormalizeRainDelta(t *testing.T) {
	mapping, _ := Profile(ProfileDefault)
	n := NewNormalizer(mapping, zaptest.NewLogger(t).Sugar())

	totals := []string{"10.0", "10.0", "12.5", "12.5", "3.0", "3.0", "8.0"}
	want := []struct {
		present bool
		delta   float64
	}{
		{false, 0}, {true, 0}, {true, 2.5}, {true, 0}, {false, 0}, {true, 0}, {true, 5.0},
	}

	for i, total := range totals {
		p, outcome := n.Normalize(reading(int64(100+i*16), "rainofyearly", total))
		if outcome != OutcomeEmitted {
			t.Fatalf("sample %d: outcome %v, want emitted", i, outcome)
		}
		got, ok := p.Get(FieldRain)
		if ok != want[i].present {
			t.Errorf("sample %d: rain present = %v, want %v", i, ok, want[i].present)
			continue
		}
		if ok && got != want[i].delta {
			t.Errorf("sample %d: rain = %g, want %g", i, got, want[i].delta)
		}
		if got < 0 {
			t.Errorf("sample %d: negative rain %g", i, got)
		}
	}
}

func TestNormalizeRejectsStaleTimestamps(t *testing.T) {
	mapping, _ := Profile(ProfileWU)
	n := NewNormalizer(mapping, zaptest.NewLogger(t).Sugar())

	tests := []struct {
		epoch int64
		want  Outcome
	}{
		{100, OutcomeEmitted},
		{100, OutcomeDiscarded},
		{99, OutcomeDiscarded},
		{150, OutcomeEmitted},
	}

	var emitted []int64
	for _, tt := range tests {
		p, outcome := n.Normalize(reading(tt.epoch, "tempf", "60.1"))
		if outcome != tt.want {
			t.Errorf("epoch %d: outcome %v, want %v", tt.epoch, outcome, tt.want)
		}
		if outcome == OutcomeEmitted {
			emitted = append(emitted, p.DateTime)
		}
	}
	if len(emitted) != 2 || emitted[0] != 100 || emitted[1] != 150 {
		t.Errorf("emitted timestamps %v, want [100 150]", emitted)
	}
}

func TestNormalizeDiscardKeepsRainBaseline(t *testing.T) {
	mapping, _ := Profile(ProfileWU)
	n := NewNormalizer(mapping, zaptest.NewLogger(t).Sugar())

	n.Normalize(reading(100, "yearlyrainin", "10"))
	if _, outcome := n.Normalize(reading(100, "yearlyrainin", "20")); outcome != OutcomeDiscarded {
		t.Fatalf("duplicate was not discarded")
	}
	p, _ := n.Normalize(reading(200, "yearlyrainin", "12"))
	if got, _ := p.Get(FieldRain); got != 2 {
		t.Errorf("rain after a discarded sample = %g, want 2", got)
	}
}

func TestNormalizeFields(t *testing.T) {
	mapping, _ := Profile(ProfileWH2600USA)
	n := NewNormalizer(mapping, zaptest.NewLogger(t).Sugar())

	raw := reading(1700000000,
		"inTemp", "71.6",
		"outTemp", "not-a-number",
		"windir", "270",
		"inBattSta", "Normal",
		"outBattSta1", "Low",
		"Cancel", "Cancel",
	)
	p, outcome := n.Normalize(raw)
	if outcome != OutcomeEmitted {
		t.Fatalf("outcome %v, want emitted", outcome)
	}

	want := map[string]float64{
		FieldInTemp:               71.6,
		FieldWindDir:              270,
		FieldInTempBatteryStatus:  0,
		FieldOutTempBatteryStatus: 1,
	}
	if len(p.Fields) != len(want) {
		t.Errorf("fields = %v, want %v", p.Fields, want)
	}
	for k, v := range want {
		if got, ok := p.Get(k); !ok || got != v {
			t.Errorf("%s = %g (present %v), want %g", k, got, ok, v)
		}
	}
	if p.DateTime != 1700000000 || p.Units != USUnits {
		t.Errorf("DateTime %d Units %d", p.DateTime, p.Units)
	}
}

func TestNormalizeWithoutTimestamp(t *testing.T) {
	mapping, _ := Profile(ProfileWU)
	n := NewNormalizer(mapping, zaptest.NewLogger(t).Sugar())

	if _, outcome := n.Normalize(RawReading{"tempf": "50"}); outcome != OutcomeDiscarded {
		t.Errorf("outcome %v, want discarded", outcome)
	}
	if _, outcome := n.Normalize(nil); outcome != OutcomeNoData {
		t.Errorf("outcome %v for no reading, want nodata", outcome)
	}
	if n.State.LastDateTime != 0 || n.State.LastRain != nil {
		t.Errorf("state changed without an accepted packet: %+v", n.State)
	}
}
