package price

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/rng"
)

const dt = 1.0 / (252 * 24 * 3600) // one simulated second

func TestGBMPositiveAndDeterministic(t *testing.T) {
	params := Params{Model: ModelGBM, Volatility: 0.3}
	p1 := NewProcess(params, 10_000)
	p2 := NewProcess(params, 10_000)
	r1 := rng.New(42)
	r2 := rng.New(42)

	for i := 0; i < 10_000; i++ {
		a := p1.Step(r1, dt)
		b := p2.Step(r2, dt)
		require.Equal(t, a, b)
		require.GreaterOrEqual(t, a, model.Price(1))
	}
}

func TestJumpDiffusionJumps(t *testing.T) {
	// Absurdly high intensity so jumps certainly fire within the horizon.
	params := Params{
		Model:         ModelJumpDiffusion,
		Volatility:    0.0001,
		JumpIntensity: 252 * 24 * 3600, // one expected jump per second
		JumpMean:      0.05,
		JumpStd:       0,
	}
	p := NewProcess(params, 10_000)
	r := rng.New(1)
	var last model.Price = 10_000
	jumped := false
	for i := 0; i < 1000 && !jumped; i++ {
		next := p.Step(r, dt)
		if next > last+(last/50) { // 2%+ single-step move is a jump
			jumped = true
		}
		last = next
	}
	require.True(t, jumped)
}

func TestHestonVarianceStaysNonNegative(t *testing.T) {
	params := Params{
		Model:      ModelHeston,
		Volatility: 0.3,
		Kappa:      2,
		Theta:      0.09,
		Xi:         3, // violent vol-of-vol to force the floor
	}
	p := NewProcess(params, 10_000)
	r := rng.New(9)
	for i := 0; i < 10_000; i++ {
		p.Step(r, dt*1000)
		require.GreaterOrEqual(t, p.variance, 0.0)
		require.GreaterOrEqual(t, p.Price(), model.Price(1))
	}
}

func TestApplyShock(t *testing.T) {
	p := NewProcess(Params{Model: ModelGBM, Volatility: 0.2}, 100)
	require.Equal(t, model.Price(110), p.ApplyShock(0.10))
	require.Equal(t, model.Price(99), p.ApplyShock(-0.10))
}

func TestApplyShockFloorsAtOneTick(t *testing.T) {
	p := NewProcess(Params{Model: ModelGBM}, 100)
	require.Equal(t, model.Price(1), p.ApplyShock(-0.9999))
	// Recovery from the floor still works.
	require.GreaterOrEqual(t, p.ApplyShock(1.0), model.Price(1))
}

func TestPriceRounds(t *testing.T) {
	p := NewProcess(Params{Model: ModelGBM}, 100)
	p.price = 99.6
	require.Equal(t, model.Price(100), p.Price())
	p.price = 0.2
	require.Equal(t, model.Price(1), p.Price())
}
