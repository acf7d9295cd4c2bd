// Package orderbook implements the per-instrument continuous matching engine:
// two price-keyed B-trees of FIFO levels, price-time priority, self-trade
// prevention, and L1/L2 snapshot views.
//
// Validation of quantities and price bands happens upstream in the risk
// engine; the book assumes admitted orders. All mutation is serialized by the
// coordinator, so the book itself carries no locks.
package orderbook

import (
	"fmt"

	"github.com/tidwall/btree"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// ErrOrderNotFound is returned by Cancel and Modify for unknown ids.
var ErrOrderNotFound = fmt.Errorf("order not found")

// priceLevel is the FIFO queue of resting orders at one price.
type priceLevel struct {
	price  model.Price
	orders []*model.Order
}

func (pl *priceLevel) volume() model.Qty {
	var v model.Qty
	for _, o := range pl.orders {
		v += o.Remaining
	}
	return v
}

func (pl *priceLevel) remove(id model.OrderID) bool {
	for i, o := range pl.orders {
		if o.ID == id {
			pl.orders = append(pl.orders[:i], pl.orders[i+1:]...)
			return true
		}
	}
	return false
}

// Book is one instrument's order book. Bids are keyed by negated price so an
// ascending scan visits the best bid first; asks are keyed by price directly.
type Book struct {
	instrument model.InstrumentID
	bids       *btree.Map[int64, *priceLevel]
	asks       *btree.Map[int64, *priceLevel]
	ordersByID map[model.OrderID]*model.Order
	nextTrade  func() model.TradeID
	logger     *zap.Logger

	lastTradePrice model.Price
	hasLastTrade   bool
}

// New creates an empty book. nextTrade allocates trade ids from the
// coordinator-owned sequence so ids stay globally unique across books.
func New(instrument model.InstrumentID, nextTrade func() model.TradeID, logger *zap.Logger) *Book {
	return &Book{
		instrument: instrument,
		bids:       btree.NewMap[int64, *priceLevel](32),
		asks:       btree.NewMap[int64, *priceLevel](32),
		ordersByID: make(map[model.OrderID]*model.Order),
		nextTrade:  nextTrade,
		logger:     logger,
	}
}

func bidKey(p model.Price) int64 { return -int64(p) }
func askKey(p model.Price) int64 { return int64(p) }

// Submit matches the order against the opposite side while crossable,
// producing trades at the resting order's price, and rests any remainder
// (unless the order is market or IOC, in which case the remainder is
// cancelled). Returns the trades in execution order.
func (b *Book) Submit(o *model.Order, now model.Nanos) []*model.Trade {
	trades := b.match(o, now)

	if o.Remaining > 0 && o.Type == model.OrderTypeLimit && !o.IsMarket() {
		b.rest(o)
		if o.Status == model.OrderStatusNew {
			o.Status = model.OrderStatusOpen
		}
	} else if o.Remaining > 0 {
		o.Status = model.OrderStatusCancelled
	}
	if o.Remaining == 0 {
		o.Status = model.OrderStatusFilled
	}
	return trades
}

// match walks the opposite side in priority order. Resting orders from the
// same participant are skipped without losing their own priority; the
// incoming order keeps matching against the next eligible order.
func (b *Book) match(o *model.Order, now model.Nanos) []*model.Trade {
	opp := b.asks
	if o.Side == model.SideSell {
		opp = b.bids
	}

	var trades []*model.Trade
	var emptied []int64

	opp.Scan(func(key int64, level *priceLevel) bool {
		if !b.crosses(o, level.price) {
			return false
		}
		for i := 0; i < len(level.orders) && o.Remaining > 0; {
			maker := level.orders[i]
			if maker.Participant == o.Participant {
				i++ // self-trade prevention: skip, maker keeps priority
				continue
			}
			qty := o.Remaining
			if maker.Remaining < qty {
				qty = maker.Remaining
			}
			trades = append(trades, b.execute(o, maker, level.price, qty, now))
			if maker.Remaining == 0 {
				maker.Status = model.OrderStatusFilled
				level.orders = append(level.orders[:i], level.orders[i+1:]...)
				delete(b.ordersByID, maker.ID)
			} else {
				maker.Status = model.OrderStatusPartiallyFilled
				i++
			}
		}
		if len(level.orders) == 0 {
			emptied = append(emptied, key)
		}
		return o.Remaining > 0
	})

	for _, key := range emptied {
		opp.Delete(key)
	}
	return trades
}

func (b *Book) crosses(o *model.Order, restingPrice model.Price) bool {
	if o.IsMarket() {
		return true
	}
	if o.Side == model.SideBuy {
		return o.Price >= restingPrice
	}
	return o.Price <= restingPrice
}

func (b *Book) execute(agg, maker *model.Order, p model.Price, qty model.Qty, now model.Nanos) *model.Trade {
	agg.Remaining -= qty
	maker.Remaining -= qty
	if agg.Remaining > 0 {
		agg.Status = model.OrderStatusPartiallyFilled
	}

	t := &model.Trade{
		ID:         b.nextTrade(),
		Instrument: b.instrument,
		Price:      p,
		Quantity:   qty,
		Aggressor:  agg.Side,
		ExecutedAt: now,
	}
	if agg.Side == model.SideBuy {
		t.Buyer, t.Seller = agg.Participant, maker.Participant
		t.BuyOrderID, t.SellOrderID = agg.ID, maker.ID
	} else {
		t.Buyer, t.Seller = maker.Participant, agg.Participant
		t.BuyOrderID, t.SellOrderID = maker.ID, agg.ID
	}
	b.lastTradePrice = p
	b.hasLastTrade = true

	b.logger.Debug("trade executed",
		zap.Int64("trade_id", int64(t.ID)),
		zap.Int64("price", int64(p)),
		zap.Int64("qty", int64(qty)))
	return t
}

func (b *Book) rest(o *model.Order) {
	side, key := b.sideFor(o.Side), b.keyFor(o.Side, o.Price)
	level, ok := side.Get(key)
	if !ok {
		level = &priceLevel{price: o.Price}
		side.Set(key, level)
	}
	level.orders = append(level.orders, o)
	b.ordersByID[o.ID] = o
}

func (b *Book) sideFor(s model.Side) *btree.Map[int64, *priceLevel] {
	if s == model.SideBuy {
		return b.bids
	}
	return b.asks
}

func (b *Book) keyFor(s model.Side, p model.Price) int64 {
	if s == model.SideBuy {
		return bidKey(p)
	}
	return askKey(p)
}

// Cancel removes a resting order and returns it.
func (b *Book) Cancel(id model.OrderID) (*model.Order, error) {
	o, ok := b.ordersByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	b.unlink(o)
	o.Status = model.OrderStatusCancelled
	return o, nil
}

func (b *Book) unlink(o *model.Order) {
	side, key := b.sideFor(o.Side), b.keyFor(o.Side, o.Price)
	if level, ok := side.Get(key); ok {
		level.remove(o.ID)
		if len(level.orders) == 0 {
			side.Delete(key)
		}
	}
	delete(b.ordersByID, o.ID)
}

// Modify amends a resting order. A price change or a quantity increase loses
// time priority (the order moves to the back of its level); a pure quantity
// decrease keeps it.
func (b *Book) Modify(id model.OrderID, newPrice model.Price, newQty model.Qty, now model.Nanos) (*model.Order, error) {
	o, ok := b.ordersByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	filled := o.Quantity - o.Remaining
	if newQty <= filled {
		// Nothing left to work after the amendment; treat as a cancel.
		b.unlink(o)
		o.Quantity = newQty
		o.Remaining = 0
		o.Status = model.OrderStatusFilled
		return o, nil
	}

	keepPriority := newPrice == o.Price && newQty < o.Quantity
	if keepPriority {
		o.Quantity = newQty
		o.Remaining = newQty - filled
		return o, nil
	}

	b.unlink(o)
	o.Price = newPrice
	o.Quantity = newQty
	o.Remaining = newQty - filled
	o.SubmittedAt = now
	b.rest(o)
	return o, nil
}

// ExpireDue cancels every resting order whose ExpiresAt has elapsed, visiting
// levels in price order so the result is deterministic.
func (b *Book) ExpireDue(now model.Nanos) []*model.Order {
	var due []*model.Order
	collect := func(_ int64, level *priceLevel) bool {
		for _, o := range level.orders {
			if o.ExpiresAt != 0 && o.ExpiresAt <= now {
				due = append(due, o)
			}
		}
		return true
	}
	b.bids.Scan(collect)
	b.asks.Scan(collect)
	for _, o := range due {
		b.unlink(o)
		o.Status = model.OrderStatusExpired
	}
	return due
}

// BestBid returns the top bid level, ok=false on an empty side.
func (b *Book) BestBid() (model.Price, model.Qty, bool) {
	return bestOf(b.bids)
}

// BestAsk returns the top ask level, ok=false on an empty side.
func (b *Book) BestAsk() (model.Price, model.Qty, bool) {
	return bestOf(b.asks)
}

func bestOf(side *btree.Map[int64, *priceLevel]) (model.Price, model.Qty, bool) {
	var (
		p  model.Price
		q  model.Qty
		ok bool
	)
	side.Scan(func(_ int64, level *priceLevel) bool {
		p, q, ok = level.price, level.volume(), true
		return false
	})
	return p, q, ok
}

// L1Quote returns the best bid/ask view at ts. Empty sides are reported via
// the Has flags, never as an error.
func (b *Book) L1Quote(ts model.Nanos) model.L1Quote {
	q := model.L1Quote{Instrument: b.instrument, Timestamp: ts}
	q.BidPrice, q.BidSize, q.HasBid = b.BestBid()
	q.AskPrice, q.AskSize, q.HasAsk = b.BestAsk()
	return q
}

// L2Snapshot returns the top depth aggregated levels per side at ts.
func (b *Book) L2Snapshot(depth int, ts model.Nanos) model.L2Snapshot {
	snap := model.L2Snapshot{Instrument: b.instrument, Timestamp: ts}
	take := func(side *btree.Map[int64, *priceLevel], out *[]model.L2Level) {
		side.Scan(func(_ int64, level *priceLevel) bool {
			*out = append(*out, model.L2Level{
				Price:  level.price,
				Volume: level.volume(),
				Orders: len(level.orders),
			})
			return len(*out) < depth
		})
	}
	take(b.bids, &snap.Bids)
	take(b.asks, &snap.Asks)
	return snap
}

// LastTradePrice returns the most recent execution price on this book.
func (b *Book) LastTradePrice() (model.Price, bool) {
	return b.lastTradePrice, b.hasLastTrade
}

// OrderCount returns the number of resting orders.
func (b *Book) OrderCount() int {
	return len(b.ordersByID)
}

// Order returns a resting order by id.
func (b *Book) Order(id model.OrderID) (*model.Order, bool) {
	o, ok := b.ordersByID[id]
	return o, ok
}
