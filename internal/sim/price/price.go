// Package price implements the stochastic processes that drive reference
// prices: geometric Brownian motion, Merton jump-diffusion, and Heston
// stochastic volatility. All randomness comes from the caller's seeded
// generator so runs replay exactly.
package price

import (
	"math"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/rng"
)

// Model selects the process for an instrument.
type Model int

const (
	ModelGBM Model = iota
	ModelJumpDiffusion
	ModelHeston
)

func (m Model) String() string {
	switch m {
	case ModelGBM:
		return "gbm"
	case ModelJumpDiffusion:
		return "jump_diffusion"
	case ModelHeston:
		return "heston"
	}
	return "unknown"
}

// Params holds every process parameter; unused fields are ignored by the
// simpler models. Rates are annualized, dt is the fraction of a year one tick
// represents.
type Params struct {
	Model         Model
	Drift         float64
	Volatility    float64
	JumpIntensity float64 // expected jumps per year
	JumpMean      float64 // mean log jump size
	JumpStd       float64
	Kappa         float64 // Heston mean-reversion speed
	Theta         float64 // Heston long-run variance
	Xi            float64 // Heston vol-of-vol
}

// Process advances one instrument's price. The draw order per step is fixed:
// diffusion normal first, then jump gate, then jump size (jump-diffusion),
// or variance normal then diffusion normal (Heston). Changing it changes
// every replay.
type Process struct {
	params   Params
	price    float64 // ticks, kept in float between steps to avoid drift bias
	variance float64 // Heston state
}

// NewProcess builds a process starting at the instrument's reference price.
func NewProcess(p Params, start model.Price) *Process {
	v := p.Volatility * p.Volatility
	return &Process{params: p, price: float64(start), variance: v}
}

// Price returns the current price, rounded to ticks and floored at one.
func (p *Process) Price() model.Price {
	if p.price < 1 {
		return 1
	}
	return model.Price(math.Round(p.price))
}

// Step advances the process by dt years using r and returns the new price.
func (p *Process) Step(r *rng.Rand, dt float64) model.Price {
	switch p.params.Model {
	case ModelJumpDiffusion:
		p.stepJumpDiffusion(r, dt)
	case ModelHeston:
		p.stepHeston(r, dt)
	default:
		p.stepGBM(r, dt, p.params.Volatility)
	}
	if p.price < 1 {
		p.price = 1
	}
	return p.Price()
}

func (p *Process) stepGBM(r *rng.Rand, dt, sigma float64) {
	z := r.Norm()
	logRet := -0.5*sigma*sigma*dt + p.params.Drift*dt + sigma*math.Sqrt(dt)*z
	p.price *= math.Exp(logRet)
}

func (p *Process) stepJumpDiffusion(r *rng.Rand, dt float64) {
	p.stepGBM(r, dt, p.params.Volatility)
	if r.Float64() < p.params.JumpIntensity*dt {
		jump := p.params.JumpMean + p.params.JumpStd*r.Norm()
		p.price *= math.Exp(jump)
	}
}

func (p *Process) stepHeston(r *rng.Rand, dt float64) {
	// Variance first so the diffusion draw uses this step's vol.
	zv := r.Norm()
	v := p.variance
	v += p.params.Kappa*(p.params.Theta-v)*dt + p.params.Xi*math.Sqrt(math.Max(v, 0)*dt)*zv
	if v < 0 {
		v = 0
	}
	p.variance = v
	p.stepGBM(r, dt, math.Sqrt(v))
}

// ApplyShock multiplies the price by (1+magnitude) for a discrete news event.
// The result is floored at one tick.
func (p *Process) ApplyShock(magnitude float64) model.Price {
	p.price *= 1 + magnitude
	if p.price < 1 {
		p.price = 1
	}
	return p.Price()
}
