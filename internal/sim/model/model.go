// Package model defines the core data types shared by every engine in the
// market simulator: identifiers, orders, trades, instruments, participant
// accounts, settlement records, and the event taxonomy.
package model

import (
	"github.com/shopspring/decimal"
)

// Opaque identifiers. Prices are integer multiples of the minimum price
// increment so ordering comparisons never touch floating point; quantities are
// whole share/contract counts; Nanos is simulated time in nanoseconds.
type (
	InstrumentID  int64
	ParticipantID int64
	OrderID       int64
	TradeID       int64
	Price         int64
	Qty           int64
	Nanos         uint64
)

// Side is the direction of an order or the aggressor side of a trade.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType distinguishes resting limit orders from orders that never rest.
type OrderType int

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
	OrderTypeIOC
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	case OrderTypeIOC:
		return "ioc"
	}
	return "unknown"
}

// OrderStatus tracks an order through its lifecycle.
type OrderStatus int

const (
	OrderStatusNew OrderStatus = iota
	OrderStatusOpen
	OrderStatusPartiallyFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	OrderStatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusNew:
		return "new"
	case OrderStatusOpen:
		return "open"
	case OrderStatusPartiallyFilled:
		return "partially_filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusExpired:
		return "expired"
	}
	return "unknown"
}

// MarketPrice is the sentinel price carried by market orders.
const MarketPrice Price = 0

// Order is a request to trade. It is mutable only by the book or auction
// engine that owns it: Remaining decreases on fill and the record leaves the
// book on full fill, cancel, or expiry.
type Order struct {
	ID          OrderID
	Participant ParticipantID
	Instrument  InstrumentID
	Side        Side
	Type        OrderType
	Price       Price // MarketPrice (0) for market orders
	Quantity    Qty
	Remaining   Qty
	Status      OrderStatus
	SubmittedAt Nanos
	ExpiresAt   Nanos // 0 = good till cancelled
}

// IsMarket reports whether the order executes at any price.
func (o *Order) IsMarket() bool {
	return o.Type == OrderTypeMarket || o.Price == MarketPrice
}

// Trade is one execution. Immutable once created; it is the single source of
// truth for clearing, market data, and analytics.
type Trade struct {
	ID          TradeID
	Instrument  InstrumentID
	Price       Price
	Quantity    Qty
	Aggressor   Side
	Buyer       ParticipantID
	Seller      ParticipantID
	BuyOrderID  OrderID
	SellOrderID OrderID
	ExecutedAt  Nanos
	Auction     bool
}

// Notional returns price*quantity scaled by the instrument tick value.
func (t *Trade) Notional(tickValue decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(t.Price)).Mul(decimal.NewFromInt(int64(t.Quantity))).Mul(tickValue)
}

// Instrument is the static definition of a tradable plus its evolving
// reference price.
type Instrument struct {
	ID             InstrumentID
	Symbol         string
	TickSize       Price // minimum increment, in ticks (normally 1)
	TickValue      decimal.Decimal
	LotSize        Qty
	MinQty         Qty
	MaxQty         Qty
	PriceBandPct   float64 // admissible distance from reference, e.g. 0.10
	ReferencePrice Price   // updated as trading occurs
	MakerFeeRate   decimal.Decimal
	TakerFeeRate   decimal.Decimal
	ShortSellOK    bool
	Volatility     float64 // annualized, drives the price process
}

// Position is a participant's net holding in one instrument.
type Position struct {
	Instrument InstrumentID
	NetQty     Qty
	AvgPrice   Price
}

// ParticipantAccount is the ledger view of one trading participant. Cash is
// mutated by the clearing house; positions by trade application; everything is
// read by the risk engine.
type ParticipantAccount struct {
	ID             ParticipantID
	Cash           decimal.Decimal
	InitialCash    decimal.Decimal
	MarginPosted   decimal.Decimal
	Positions      map[InstrumentID]*Position
	RealizedPnL    decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	Active         bool
	OrdersPlaced   int64
	TradesExecuted int64
}

// NewParticipantAccount creates an active account with the given opening cash.
func NewParticipantAccount(id ParticipantID, cash decimal.Decimal) *ParticipantAccount {
	return &ParticipantAccount{
		ID:          id,
		Cash:        cash,
		InitialCash: cash,
		Positions:   make(map[InstrumentID]*Position),
		Active:      true,
	}
}

// Position returns the account's position for an instrument, creating a zero
// record on first touch.
func (a *ParticipantAccount) Position(id InstrumentID) *Position {
	p, ok := a.Positions[id]
	if !ok {
		p = &Position{Instrument: id}
		a.Positions[id] = p
	}
	return p
}

// ApplyFill updates the position and realized PnL for one fill. signedQty is
// positive for buys and negative for sells.
func (a *ParticipantAccount) ApplyFill(instr InstrumentID, signedQty Qty, price Price, tickValue decimal.Decimal) {
	p := a.Position(instr)
	prev := p.NetQty
	next := prev + signedQty

	switch {
	case prev == 0 || (prev > 0) == (signedQty > 0):
		// Opening or extending: blend the average price.
		total := abs64(int64(prev)) + abs64(int64(signedQty))
		if total > 0 {
			weighted := int64(p.AvgPrice)*abs64(int64(prev)) + int64(price)*abs64(int64(signedQty))
			p.AvgPrice = Price(weighted / total)
		}
	default:
		// Reducing or flipping: realize PnL on the closed portion.
		closed := min64(abs64(int64(prev)), abs64(int64(signedQty)))
		perTick := decimal.NewFromInt(int64(price) - int64(p.AvgPrice)).Mul(tickValue)
		if prev < 0 {
			perTick = perTick.Neg()
		}
		a.RealizedPnL = a.RealizedPnL.Add(perTick.Mul(decimal.NewFromInt(closed)))
		if (prev > 0) != (next > 0) && next != 0 {
			p.AvgPrice = price // flipped through zero, remainder opens here
		}
	}
	p.NetQty = next
	if next == 0 {
		p.AvgPrice = 0
	}
	a.TradesExecuted++
}

// MarkToMarket recomputes unrealized PnL across all positions from the given
// reference prices.
func (a *ParticipantAccount) MarkToMarket(refs map[InstrumentID]Price, tickValues map[InstrumentID]decimal.Decimal) {
	total := decimal.Zero
	for id, p := range a.Positions {
		if p.NetQty == 0 {
			continue
		}
		ref, ok := refs[id]
		if !ok {
			continue
		}
		tv := tickValues[id]
		diff := decimal.NewFromInt(int64(ref) - int64(p.AvgPrice)).Mul(tv)
		total = total.Add(diff.Mul(decimal.NewFromInt(int64(p.NetQty))))
	}
	a.UnrealizedPnL = total
}

// Equity is cash plus open PnL.
func (a *ParticipantAccount) Equity() decimal.Decimal {
	return a.Cash.Add(a.UnrealizedPnL)
}

// SettlementStatus is the lifecycle of one settlement obligation.
type SettlementStatus int

const (
	SettlementPending SettlementStatus = iota
	SettlementNetted
	SettlementSettled
	SettlementFailed
)

func (s SettlementStatus) String() string {
	switch s {
	case SettlementPending:
		return "pending"
	case SettlementNetted:
		return "netted"
	case SettlementSettled:
		return "settled"
	case SettlementFailed:
		return "failed"
	}
	return "unknown"
}

// Settlement is a registered trade awaiting its due time.
type Settlement struct {
	TradeID    TradeID
	Buyer      ParticipantID
	Seller     ParticipantID
	Instrument InstrumentID
	Quantity   Qty
	Price      Price
	Notional   decimal.Decimal
	TradeTime  Nanos
	DueTime    Nanos
	Status     SettlementStatus
	FailReason string
}

// NettingEntry accumulates net obligations per participant per instrument
// between end-of-day resets.
type NettingEntry struct {
	Participant ParticipantID
	Instrument  InstrumentID
	NetQty      Qty
	NetCash     decimal.Decimal
}

// FailToDeliver records one settlement that could not complete.
type FailToDeliver struct {
	TradeID    TradeID
	Instrument InstrumentID
	Quantity   Qty
	Reason     string
	FailedAt   Nanos
}

// RiskLimits is the per-participant admission configuration. KillSwitchActive
// is the one mutable field, set by risk breaches.
type RiskLimits struct {
	MaxOrderQty         Qty
	MaxOrderNotional    decimal.Decimal
	MaxPositionPerInstr Qty
	MaxTotalPosition    Qty
	MaxOrdersPerSecond  int
	MaxDrawdownPct      float64
	MaxDailyLossPct     float64
	MaxOrderTradeRatio  float64
	KillSwitchActive    bool
}

// MarginRequirement is the per-instrument margin configuration, read-only for
// the risk engine.
type MarginRequirement struct {
	Instrument      InstrumentID
	InitialRate     decimal.Decimal
	MaintenanceRate decimal.Decimal
}

// L1Quote is the best bid/offer view of a book at a point in time. Derived
// and ephemeral; regenerated on demand, never persisted.
type L1Quote struct {
	Instrument InstrumentID
	BidPrice   Price
	BidSize    Qty
	AskPrice   Price
	AskSize    Qty
	HasBid     bool
	HasAsk     bool
	Timestamp  Nanos
}

// L2Level is one aggregated price level of depth.
type L2Level struct {
	Price  Price
	Volume Qty
	Orders int
}

// L2Snapshot is the top-N aggregated depth view per side.
type L2Snapshot struct {
	Instrument InstrumentID
	Bids       []L2Level
	Asks       []L2Level
	Timestamp  Nanos
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
