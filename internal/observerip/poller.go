package observerip

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"
)

// Outcome is the result of one poll cycle.
type Outcome int

const (
	OutcomeNoData Outcome = iota
	OutcomeDiscarded
	OutcomeEmitted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoData:
		return "nodata"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeEmitted:
		return "emitted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Step is one fetch and normalize cycle. Packet is set only when Outcome is
// OutcomeEmitted. Delay is how long to wait before the next cycle.
type Step struct {
	Outcome Outcome
	Packet  Packet
	Delay   time.Duration
}

// Poller drives a Source through a Normalizer at the configured cadence.
// One cycle runs at a time.
type Poller struct {
	Source     Source
	Normalizer *Normalizer
	// Direct selects fixed pacing; otherwise wake-ups follow the
	// producer's timestamps.
	Direct       bool
	PollInterval time.Duration
	DupInterval  time.Duration

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewPoller creates a poller using the wall clock.
func NewPoller(source Source, normalizer *Normalizer, direct bool, pollInterval, dupInterval time.Duration, logger *zap.SugaredLogger, opts ...Option) *Poller {
	o := buildOptions(opts)
	return &Poller{
		Source:       source,
		Normalizer:   normalizer,
		Direct:       direct,
		PollInterval: pollInterval,
		DupInterval:  dupInterval,
		now:          o.now,
		sleep:        o.sleep,
		metrics:      o.metrics,
		logger:       logger,
	}
}

// Next runs one cycle. Fetch failures are reported as OutcomeNoData; the
// only error returned is the context's.
func (p *Poller) Next(ctx context.Context) (Step, error) {
	if err := ctx.Err(); err != nil {
		return Step{}, err
	}

	raw, err := p.Source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Step{}, ctx.Err()
		}
		if !errors.Is(err, ErrNoData) {
			p.logger.Errorf("fetch failed: %v", err)
		}
		raw = nil
	}

	packet, outcome := p.Normalizer.Normalize(raw)
	p.metrics.observeCycle(outcome)

	step := Step{Outcome: outcome, Delay: p.DupInterval}
	if outcome != OutcomeEmitted {
		return step, nil
	}

	step.Packet = packet
	p.metrics.observePacket(packet, &p.Normalizer.State)

	if p.Direct {
		step.Delay = p.PollInterval
	} else {
		age := p.now().Sub(time.Unix(packet.DateTime, 0))
		step.Delay = p.PollInterval - age
		if step.Delay < 0 {
			step.Delay = p.DupInterval
		}
	}
	return step, nil
}

// Packets yields accepted packets until the consumer stops or ctx ends,
// sleeping between cycles.
func (p *Poller) Packets(ctx context.Context) iter.Seq[Packet] {
	return func(yield func(Packet) bool) {
		for {
			step, err := p.Next(ctx)
			if err != nil {
				return
			}
			if step.Outcome == OutcomeEmitted && !yield(step.Packet) {
				return
			}
			if err := p.sleep(ctx, step.Delay); err != nil {
				return
			}
		}
	}
}
