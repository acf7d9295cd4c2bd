// Package latency models delivery delay by connectivity tier. Latency here is
// a logical timestamp offset, not a real delay: slow participants simply see
// larger arrival times, and the event log orders by those timestamps. This is
// what reproduces real information asymmetry between co-located and retail
// participants.
package latency

import (
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/rng"
)

// Tier is a participant's connectivity class.
type Tier int

const (
	TierColocated Tier = iota
	TierProximity
	TierDirect
	TierRetail
)

func (t Tier) String() string {
	switch t {
	case TierColocated:
		return "colocated"
	case TierProximity:
		return "proximity"
	case TierDirect:
		return "direct"
	case TierRetail:
		return "retail"
	}
	return "unknown"
}

// profile is one tier's delay model: a base delay, bounded jitter, and a rare
// multiplicative spike.
type profile struct {
	base      uint64 // nanoseconds
	jitter    uint64 // max additional nanoseconds
	spikeProb float64
	spikeMult uint64
}

// Simulator samples delivery delays. All draws route through the run's
// generator; the spike gate is drawn before the jitter so the draw order is
// fixed per sample.
type Simulator struct {
	r        *rng.Rand
	profiles [4]profile
}

// NewSimulator builds the four-tier model with defaults spanning co-located
// microseconds to retail tens of milliseconds.
func NewSimulator(r *rng.Rand) *Simulator {
	return &Simulator{
		r: r,
		profiles: [4]profile{
			TierColocated: {base: 5_000, jitter: 2_000, spikeProb: 0.0001, spikeMult: 10},
			TierProximity: {base: 50_000, jitter: 20_000, spikeProb: 0.0005, spikeMult: 10},
			TierDirect:    {base: 1_000_000, jitter: 500_000, spikeProb: 0.001, spikeMult: 5},
			TierRetail:    {base: 30_000_000, jitter: 20_000_000, spikeProb: 0.005, spikeMult: 5},
		},
	}
}

// Sample returns one delay for the tier.
func (s *Simulator) Sample(tier Tier) model.Nanos {
	p := s.profiles[tier]
	spike := s.r.Float64() < p.spikeProb
	d := p.base
	if p.jitter > 0 {
		d += uint64(s.r.IntN(int64(p.jitter)))
	}
	if spike {
		d *= p.spikeMult
	}
	return model.Nanos(d)
}

// OrderArrival is when an order submitted at t reaches the exchange.
func (s *Simulator) OrderArrival(tier Tier, submitted model.Nanos) model.Nanos {
	return submitted + s.Sample(tier)
}

// DataDelivery is when an event emitted at t reaches the participant.
func (s *Simulator) DataDelivery(tier Tier, emitted model.Nanos) model.Nanos {
	return emitted + s.Sample(tier)
}
