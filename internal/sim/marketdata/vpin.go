package marketdata

import "github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"

const (
	defaultBucketSize  = model.Qty(1000)
	defaultBucketCount = 50
)

// bucket accumulates classified volume until it reaches the target size.
type bucket struct {
	buy, sell model.Qty
}

func (b bucket) total() model.Qty { return b.buy + b.sell }

// VPIN is the volume-synchronized probability of informed trading: trades
// fill fixed-size volume buckets tagged by aggressor side, and the estimate
// is the mean |buy-sell| imbalance over total volume across the most recent
// buckets. 0 is balanced flow, 1 maximally one-sided.
type VPIN struct {
	bucketSize model.Qty
	maxBuckets int
	current    bucket
	done       []bucket
}

// NewVPIN builds an estimator over maxBuckets buckets of bucketSize volume.
func NewVPIN(bucketSize model.Qty, maxBuckets int) *VPIN {
	return &VPIN{bucketSize: bucketSize, maxBuckets: maxBuckets}
}

// Record adds one trade's volume. Overflow beyond the bucket target is split
// proportionally into the next bucket so bucket boundaries stay exact.
func (v *VPIN) Record(t *model.Trade) {
	qty := t.Quantity
	for qty > 0 {
		room := v.bucketSize - v.current.total()
		take := qty
		if take > room {
			take = room
		}
		if t.Aggressor == model.SideBuy {
			v.current.buy += take
		} else {
			v.current.sell += take
		}
		qty -= take
		if v.current.total() >= v.bucketSize {
			v.done = append(v.done, v.current)
			v.current = bucket{}
			if len(v.done) > v.maxBuckets {
				v.done = v.done[1:]
			}
		}
	}
}

// Value returns the current estimate, 0 until at least one bucket completes.
func (v *VPIN) Value() float64 {
	if len(v.done) == 0 {
		return 0
	}
	var imbalance, volume float64
	for _, b := range v.done {
		diff := b.buy - b.sell
		if diff < 0 {
			diff = -diff
		}
		imbalance += float64(diff)
		volume += float64(b.total())
	}
	if volume == 0 {
		return 0
	}
	return imbalance / volume
}

// CompletedBuckets reports how many buckets have filled.
func (v *VPIN) CompletedBuckets() int { return len(v.done) }
