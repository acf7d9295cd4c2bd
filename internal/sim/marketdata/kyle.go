package marketdata

import "github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"

const defaultKyleWindow = 100

// KyleLambda estimates per-unit price impact as the rolling OLS slope of
// price change against signed trade volume: lambda = sum(dp*v) / sum(v^2)
// over the window.
type KyleLambda struct {
	window    int
	lastPrice model.Price
	hasLast   bool
	obs       []kyleObs
}

type kyleObs struct {
	dp float64 // price change in ticks
	v  float64 // signed volume, buy positive
}

// NewKyleLambda builds an estimator over the given observation window.
func NewKyleLambda(window int) *KyleLambda {
	return &KyleLambda{window: window}
}

// Record adds one trade. The first trade only seeds the price reference.
func (k *KyleLambda) Record(t *model.Trade) {
	if !k.hasLast {
		k.lastPrice = t.Price
		k.hasLast = true
		return
	}
	v := float64(t.Quantity)
	if t.Aggressor == model.SideSell {
		v = -v
	}
	k.obs = append(k.obs, kyleObs{dp: float64(t.Price - k.lastPrice), v: v})
	if len(k.obs) > k.window {
		k.obs = k.obs[1:]
	}
	k.lastPrice = t.Price
}

// Value returns the current slope, 0 until enough observations exist.
func (k *KyleLambda) Value() float64 {
	var num, den float64
	for _, o := range k.obs {
		num += o.dp * o.v
		den += o.v * o.v
	}
	if den == 0 {
		return 0
	}
	return num / den
}
