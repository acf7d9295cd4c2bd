package model

// EventKind enumerates every observable state transition. The taxonomy is
// closed: new kinds are added here, one struct per kind below.
type EventKind int

const (
	EventOrderSubmitted EventKind = iota
	EventOrderAccepted
	EventOrderRejected
	EventOrderCancelled
	EventOrderExpired
	EventOrderModified
	EventTradeExecuted
	EventQuoteUpdate
	EventPhaseChange
	EventCircuitBreaker
	EventHaltLifted
	EventMarginCall
	EventKillSwitch
	EventForcedLiquidation
	EventAuctionIndicative
	EventAuctionResult
	EventNewsInjected
	EventSettlementSettled
	EventSettlementFailed
)

func (k EventKind) String() string {
	switch k {
	case EventOrderSubmitted:
		return "order_submitted"
	case EventOrderAccepted:
		return "order_accepted"
	case EventOrderRejected:
		return "order_rejected"
	case EventOrderCancelled:
		return "order_cancelled"
	case EventOrderExpired:
		return "order_expired"
	case EventOrderModified:
		return "order_modified"
	case EventTradeExecuted:
		return "trade_executed"
	case EventQuoteUpdate:
		return "quote_update"
	case EventPhaseChange:
		return "phase_change"
	case EventCircuitBreaker:
		return "circuit_breaker"
	case EventHaltLifted:
		return "halt_lifted"
	case EventMarginCall:
		return "margin_call"
	case EventKillSwitch:
		return "kill_switch"
	case EventForcedLiquidation:
		return "forced_liquidation"
	case EventAuctionIndicative:
		return "auction_indicative"
	case EventAuctionResult:
		return "auction_result"
	case EventNewsInjected:
		return "news_injected"
	case EventSettlementSettled:
		return "settlement_settled"
	case EventSettlementFailed:
		return "settlement_failed"
	}
	return "unknown"
}

// Event is the common face of every simulation event. Implementations are the
// concrete structs in this file and nothing else.
type Event interface {
	Kind() EventKind
	Time() Nanos
}

// OrderEvent covers the order lifecycle kinds: submitted, accepted, rejected,
// cancelled, expired, modified.
type OrderEvent struct {
	EventKind   EventKind
	Timestamp   Nanos
	OrderID     OrderID
	Participant ParticipantID
	Instrument  InstrumentID
	Side        Side
	Price       Price
	Quantity    Qty
	Reason      string // populated for rejections
}

func (e OrderEvent) Kind() EventKind { return e.EventKind }
func (e OrderEvent) Time() Nanos     { return e.Timestamp }

// TradeEvent records one execution.
type TradeEvent struct {
	Timestamp Nanos
	Trade     Trade
}

func (e TradeEvent) Kind() EventKind { return EventTradeExecuted }
func (e TradeEvent) Time() Nanos     { return e.Timestamp }

// QuoteEvent records a top-of-book change.
type QuoteEvent struct {
	Timestamp Nanos
	Quote     L1Quote
}

func (e QuoteEvent) Kind() EventKind { return EventQuoteUpdate }
func (e QuoteEvent) Time() Nanos     { return e.Timestamp }

// PhaseChangeEvent records a session phase transition.
type PhaseChangeEvent struct {
	Timestamp Nanos
	From      string
	To        string
}

func (e PhaseChangeEvent) Kind() EventKind { return EventPhaseChange }
func (e PhaseChangeEvent) Time() Nanos     { return e.Timestamp }

// CircuitBreakerEvent records a volatility halt being tripped.
type CircuitBreakerEvent struct {
	Timestamp  Nanos
	Instrument InstrumentID
	LastPrice  Price
	Reference  Price
	ResumeAt   Nanos
}

func (e CircuitBreakerEvent) Kind() EventKind { return EventCircuitBreaker }
func (e CircuitBreakerEvent) Time() Nanos     { return e.Timestamp }

// HaltLiftedEvent records trading resuming after a halt.
type HaltLiftedEvent struct {
	Timestamp  Nanos
	Instrument InstrumentID
}

func (e HaltLiftedEvent) Kind() EventKind { return EventHaltLifted }
func (e HaltLiftedEvent) Time() Nanos     { return e.Timestamp }

// MarginCallEvent records a maintenance-margin breach.
type MarginCallEvent struct {
	Timestamp   Nanos
	Participant ParticipantID
	Instrument  InstrumentID
	Required    string // decimal string, kept flat for the log
	Available   string
}

func (e MarginCallEvent) Kind() EventKind { return EventMarginCall }
func (e MarginCallEvent) Time() Nanos     { return e.Timestamp }

// KillSwitchEvent records a participant being cut off.
type KillSwitchEvent struct {
	Timestamp   Nanos
	Participant ParticipantID
	Reason      string
}

func (e KillSwitchEvent) Kind() EventKind { return EventKillSwitch }
func (e KillSwitchEvent) Time() Nanos     { return e.Timestamp }

// ForcedLiquidationEvent records a risk-driven closing order.
type ForcedLiquidationEvent struct {
	Timestamp   Nanos
	Participant ParticipantID
	Instrument  InstrumentID
	Side        Side
	Quantity    Qty
}

func (e ForcedLiquidationEvent) Kind() EventKind { return EventForcedLiquidation }
func (e ForcedLiquidationEvent) Time() Nanos     { return e.Timestamp }

// AuctionIndicativeEvent is the informational pre-uncross broadcast.
type AuctionIndicativeEvent struct {
	Timestamp  Nanos
	Instrument InstrumentID
	Price      Price
	Volume     Qty
	Surplus    Qty
}

func (e AuctionIndicativeEvent) Kind() EventKind { return EventAuctionIndicative }
func (e AuctionIndicativeEvent) Time() Nanos     { return e.Timestamp }

// AuctionResultEvent records an executed uncross.
type AuctionResultEvent struct {
	Timestamp  Nanos
	Instrument InstrumentID
	Price      Price
	Volume     Qty
	Trades     int
}

func (e AuctionResultEvent) Kind() EventKind { return EventAuctionResult }
func (e AuctionResultEvent) Time() Nanos     { return e.Timestamp }

// NewsEvent records an injected headline and the shock applied.
type NewsEvent struct {
	Timestamp   Nanos
	Headline    string
	Sentiment   float64 // [-1, 1]
	Magnitude   float64 // [0, 1]
	Instruments []InstrumentID
}

func (e NewsEvent) Kind() EventKind { return EventNewsInjected }
func (e NewsEvent) Time() Nanos     { return e.Timestamp }

// SettlementEvent covers settled and failed obligations.
type SettlementEvent struct {
	EventKind  EventKind
	Timestamp  Nanos
	TradeID    TradeID
	Instrument InstrumentID
	Quantity   Qty
	Reason     string // populated for failures
}

func (e SettlementEvent) Kind() EventKind { return e.EventKind }
func (e SettlementEvent) Time() Nanos     { return e.Timestamp }
