package observerip

import (
	"go.uber.org/zap"
)

// USUnits tags packets whose values are in US customary units.
const USUnits = 1

// Packet is one accepted observation, keyed by canonical field name.
type Packet struct {
	DateTime int64
	Units    int
	Fields   map[string]float64
}

// Get returns the named observation and whether the packet carries it.
func (p Packet) Get(name string) (float64, bool) {
	v, ok := p.Fields[name]
	return v, ok
}

// PollState is what the normalizer remembers between cycles. It changes
// only when a packet is accepted.
type PollState struct {
	// LastRain is the last cumulative rain counter; nil until the first
	// sample that carries one.
	LastRain *float64
	// LastDateTime is the dateTime of the last accepted packet.
	LastDateTime int64
}

// Normalizer turns raw readings into packets using one field mapping.
// It is not safe for concurrent use.
type Normalizer struct {
	Mapping *FieldMapping
	State   PollState
	logger  *zap.SugaredLogger
}

// NewNormalizer starts from empty state.
func NewNormalizer(mapping *FieldMapping, logger *zap.SugaredLogger) *Normalizer {
	return &Normalizer{Mapping: mapping, logger: logger}
}

// Normalize maps raw onto the canonical fields. Fields whose source is
// missing or unparseable are left out. The sample is discarded if it has no
// dateTime or is not newer than the last accepted one. The rain counter is
// turned into the increment since the previous accepted sample; the first
// sample and any counter decrease only set the baseline.
func (n *Normalizer) Normalize(raw RawReading) (Packet, Outcome) {
	if len(raw) == 0 {
		return Packet{}, OutcomeNoData
	}

	fields := make(map[string]float64, len(n.Mapping.Rules))
	for _, name := range n.Mapping.Fields() {
		rule := n.Mapping.Rules[name]
		v, ok := raw[rule.Source]
		if !ok {
			n.logger.Infof("packet missing %s", name)
			continue
		}
		f, err := rule.Coerce.Apply(v)
		if err != nil {
			n.logger.Infof("packet field %s: can't convert %s=%q: %v", name, rule.Source, v, err)
			continue
		}
		fields[name] = f
	}

	dt, ok := fields[FieldDateTime]
	if !ok {
		n.logger.Info("packet has no dateTime, discarding")
		return Packet{}, OutcomeDiscarded
	}
	delete(fields, FieldDateTime)

	dateTime := int64(dt)
	if dateTime <= n.State.LastDateTime {
		n.logger.Infof("duplicate packet or out of order packet (%d <= %d)", dateTime, n.State.LastDateTime)
		return Packet{}, OutcomeDiscarded
	}

	lastRain := n.State.LastRain
	if total, ok := fields[FieldRain]; ok {
		delete(fields, FieldRain)
		if lastRain != nil && total >= *lastRain {
			fields[FieldRain] = total - *lastRain
		} else if lastRain != nil {
			n.logger.Infof("rain counter went from %g to %g, resetting baseline", *lastRain, total)
		}
		lastRain = &total
	}

	if n.State.LastDateTime > 0 {
		n.logger.Debugf("packet interval %d", dateTime-n.State.LastDateTime)
	}
	n.State = PollState{LastRain: lastRain, LastDateTime: dateTime}

	return Packet{DateTime: dateTime, Units: USUnits, Fields: fields}, OutcomeEmitted
}
