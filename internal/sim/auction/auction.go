// Package auction implements batch price discovery for scheduled open/close
// auctions and volatility-halt resumptions. Orders accumulate while
// collecting; the uncross picks the single price maximizing executable
// volume, ties broken by minimum surplus.
package auction

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// State is the auction lifecycle. One auction at a time per instrument.
type State int

const (
	StateCollecting State = iota
	StateUncrossed
	StateExecuted
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateUncrossed:
		return "uncrossed"
	case StateExecuted:
		return "executed"
	}
	return "unknown"
}

// Result is the outcome of an uncross computation. A zero Price with zero
// Volume means no crossable price existed.
type Result struct {
	Price   model.Price
	Volume  model.Qty
	Surplus model.Qty
}

type entry struct {
	order *model.Order
	seq   int // arrival order, ties broken by it
}

// Engine is one instrument's auction book.
type Engine struct {
	instrument model.InstrumentID
	buys       []entry
	sells      []entry
	seq        int
	state      State
	nextTrade  func() model.TradeID
	logger     *zap.Logger
}

// New creates a collecting auction engine sharing the coordinator's trade id
// sequence.
func New(instrument model.InstrumentID, nextTrade func() model.TradeID, logger *zap.Logger) *Engine {
	return &Engine{instrument: instrument, nextTrade: nextTrade, logger: logger}
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// OrderCount returns the number of accumulated orders.
func (e *Engine) OrderCount() int { return len(e.buys) + len(e.sells) }

// Add accumulates an auction-eligible order.
func (e *Engine) Add(o *model.Order) {
	ent := entry{order: o, seq: e.seq}
	e.seq++
	if o.Side == model.SideBuy {
		e.buys = append(e.buys, ent)
	} else {
		e.sells = append(e.sells, ent)
	}
	o.Status = model.OrderStatusOpen
}

// Indicative computes the clearing price without mutating state, for
// pre-auction informational broadcasts.
func (e *Engine) Indicative() Result {
	return e.uncross()
}

// uncross evaluates every limit price present on either side. Market orders
// count as volume at every candidate level. Among equal executable volumes the
// smaller surplus wins; among full ties the lowest price wins, which keeps the
// choice deterministic.
func (e *Engine) uncross() Result {
	prices := map[model.Price]struct{}{}
	for _, b := range e.buys {
		if !b.order.IsMarket() {
			prices[b.order.Price] = struct{}{}
		}
	}
	for _, s := range e.sells {
		if !s.order.IsMarket() {
			prices[s.order.Price] = struct{}{}
		}
	}
	if len(prices) == 0 {
		return Result{}
	}
	candidates := make([]model.Price, 0, len(prices))
	for p := range prices {
		candidates = append(candidates, p)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	var best Result
	for _, p := range candidates {
		var buyVol, sellVol model.Qty
		for _, b := range e.buys {
			if b.order.IsMarket() || b.order.Price >= p {
				buyVol += b.order.Remaining
			}
		}
		for _, s := range e.sells {
			if s.order.IsMarket() || s.order.Price <= p {
				sellVol += s.order.Remaining
			}
		}
		exec := buyVol
		if sellVol < exec {
			exec = sellVol
		}
		surplus := buyVol - sellVol
		if surplus < 0 {
			surplus = -surplus
		}
		if exec > best.Volume || (exec == best.Volume && exec > 0 && surplus < best.Surplus) {
			best = Result{Price: p, Volume: exec, Surplus: surplus}
		}
	}
	return best
}

// Execute uncrosses the book and emits auction trades at the single clearing
// price, then clears the engine for the next auction. A conflicting
// counter-order from the same participant is skipped and left unmatched; it
// is not retried against later orders. Orders with remaining quantity after
// the uncross are returned cancelled so the caller can record their terminal
// state.
func (e *Engine) Execute(now model.Nanos) (Result, []*model.Trade, []*model.Order) {
	res := e.uncross()
	e.state = StateUncrossed
	if res.Volume == 0 {
		left := e.leftovers()
		e.reset()
		return res, nil, left
	}

	buys := e.eligible(e.buys, res.Price, true)
	sells := e.eligible(e.sells, res.Price, false)

	var trades []*model.Trade
	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		buy, sell := buys[bi].order, sells[si].order
		if buy.Participant == sell.Participant {
			si++ // self-trade: skip the counter-order, its volume stays unmatched
			continue
		}
		qty := buy.Remaining
		if sell.Remaining < qty {
			qty = sell.Remaining
		}
		buy.Remaining -= qty
		sell.Remaining -= qty
		trades = append(trades, &model.Trade{
			ID:          e.nextTrade(),
			Instrument:  e.instrument,
			Price:       res.Price,
			Quantity:    qty,
			Aggressor:   model.SideBuy,
			Buyer:       buy.Participant,
			Seller:      sell.Participant,
			BuyOrderID:  buy.ID,
			SellOrderID: sell.ID,
			ExecutedAt:  now,
			Auction:     true,
		})
		if buy.Remaining == 0 {
			buy.Status = model.OrderStatusFilled
			bi++
		}
		if sell.Remaining == 0 {
			sell.Status = model.OrderStatusFilled
			si++
		}
	}

	e.logger.Info("auction executed",
		zap.Int64("instrument", int64(e.instrument)),
		zap.Int64("price", int64(res.Price)),
		zap.Int64("volume", int64(res.Volume)),
		zap.Int("trades", len(trades)))

	e.state = StateExecuted
	left := e.leftovers()
	e.reset()
	return res, trades, left
}

// leftovers collects every order still holding remaining quantity and marks
// it cancelled.
func (e *Engine) leftovers() []*model.Order {
	var out []*model.Order
	for _, sides := range [][]entry{e.buys, e.sells} {
		for _, ent := range sides {
			if ent.order.Remaining > 0 {
				ent.order.Status = model.OrderStatusCancelled
				out = append(out, ent.order)
			}
		}
	}
	return out
}

// eligible filters and orders one side for execution: market orders first,
// then best price (descending for buys, ascending for sells), arrival order
// breaking ties.
func (e *Engine) eligible(entries []entry, clearing model.Price, isBuy bool) []entry {
	out := make([]entry, 0, len(entries))
	for _, ent := range entries {
		o := ent.order
		if o.Remaining == 0 {
			continue
		}
		if o.IsMarket() || (isBuy && o.Price >= clearing) || (!isBuy && o.Price <= clearing) {
			out = append(out, ent)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := out[i].order, out[j].order
		mi, mj := oi.IsMarket(), oj.IsMarket()
		if mi != mj {
			return mi
		}
		if !mi && oi.Price != oj.Price {
			if isBuy {
				return oi.Price > oj.Price
			}
			return oi.Price < oj.Price
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// reset clears the book and returns the engine to collecting.
func (e *Engine) reset() {
	e.buys = e.buys[:0]
	e.sells = e.sells[:0]
	e.state = StateCollecting
}
