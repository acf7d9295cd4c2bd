// Package risk implements pre-trade admission control and post-trade
// monitoring. Admission rejections are values, never errors: a rejected order
// simply never reaches the book. Post-trade checks emit events for the
// coordinator to act on; they do not mutate accounts themselves.
package risk

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// RejectReason is the structured admission failure taxonomy.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectKillSwitch
	RejectFatFingerQty
	RejectFatFingerNotional
	RejectPositionLimit
	RejectTotalPositionLimit
	RejectRateLimit
	RejectPriceBand
	RejectInsufficientMargin
	RejectInsufficientBalance
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectKillSwitch:
		return "kill_switch_active"
	case RejectFatFingerQty:
		return "fat_finger_quantity"
	case RejectFatFingerNotional:
		return "fat_finger_notional"
	case RejectPositionLimit:
		return "position_limit_exceeded"
	case RejectTotalPositionLimit:
		return "total_position_limit_exceeded"
	case RejectRateLimit:
		return "rate_limit_exceeded"
	case RejectPriceBand:
		return "price_out_of_bands"
	case RejectInsufficientMargin:
		return "insufficient_margin"
	case RejectInsufficientBalance:
		return "insufficient_balance"
	}
	return "unknown"
}

// Admission is the outcome of a pre-trade check.
type Admission struct {
	OK     bool
	Reason RejectReason
}

func admit() Admission                { return Admission{OK: true} }
func reject(r RejectReason) Admission { return Admission{Reason: r} }

// Breach is one post-trade finding. The coordinator decides what to do with
// it (activate a kill switch, issue a margin call, force liquidation).
type Breach struct {
	Kind        BreachKind
	Participant model.ParticipantID
	Instrument  model.InstrumentID // margin calls only
	Reason      string
	Required    decimal.Decimal
	Available   decimal.Decimal
}

// BreachKind enumerates post-trade findings.
type BreachKind int

const (
	BreachDrawdown BreachKind = iota
	BreachDailyLoss
	BreachMarginCall
	BreachOrderTradeRatio
)

func (k BreachKind) String() string {
	switch k {
	case BreachDrawdown:
		return "drawdown"
	case BreachDailyLoss:
		return "daily_loss"
	case BreachMarginCall:
		return "margin_call"
	case BreachOrderTradeRatio:
		return "order_trade_ratio"
	}
	return "unknown"
}

// Engine evaluates admission and monitoring rules against read-only limit
// configuration. The sliding rate window and PnL high-water marks are its
// only internal state.
type Engine struct {
	limits     map[model.ParticipantID]*model.RiskLimits
	margins    map[model.InstrumentID]model.MarginRequirement
	rateWindow map[model.ParticipantID][]model.Nanos
	highWater  map[model.ParticipantID]decimal.Decimal
	logger     *zap.Logger
}

// NewEngine builds a risk engine over the given limit and margin tables.
func NewEngine(limits map[model.ParticipantID]*model.RiskLimits, margins map[model.InstrumentID]model.MarginRequirement, logger *zap.Logger) *Engine {
	return &Engine{
		limits:     limits,
		margins:    margins,
		rateWindow: make(map[model.ParticipantID][]model.Nanos),
		highWater:  make(map[model.ParticipantID]decimal.Decimal),
		logger:     logger,
	}
}

const rateWindowNanos = model.Nanos(1_000_000_000)

// CheckOrder runs the admission pipeline in its documented order and returns
// the first failing reason. Every check is side-effect-free except the rate
// counter, which records the attempt regardless of outcome.
func (e *Engine) CheckOrder(o *model.Order, acct *model.ParticipantAccount, instr *model.Instrument, now model.Nanos) Admission {
	limits := e.limits[o.Participant]
	if limits == nil {
		limits = &model.RiskLimits{}
	}
	rate := e.recordAndCountRate(o.Participant, now)

	if limits.KillSwitchActive {
		return reject(RejectKillSwitch)
	}
	if limits.MaxOrderQty > 0 && o.Quantity > limits.MaxOrderQty {
		return reject(RejectFatFingerQty)
	}

	notional := e.notional(o, instr)
	if !limits.MaxOrderNotional.IsZero() && notional.GreaterThan(limits.MaxOrderNotional) {
		return reject(RejectFatFingerNotional)
	}

	signed := int64(o.Quantity)
	if o.Side == model.SideSell {
		signed = -signed
	}
	projected := int64(acct.Position(o.Instrument).NetQty) + signed
	if limits.MaxPositionPerInstr > 0 && abs64(projected) > int64(limits.MaxPositionPerInstr) {
		return reject(RejectPositionLimit)
	}
	if limits.MaxTotalPosition > 0 {
		total := abs64(projected)
		for id, p := range acct.Positions {
			if id != o.Instrument {
				total += abs64(int64(p.NetQty))
			}
		}
		if total > int64(limits.MaxTotalPosition) {
			return reject(RejectTotalPositionLimit)
		}
	}
	if limits.MaxOrdersPerSecond > 0 && rate > limits.MaxOrdersPerSecond {
		return reject(RejectRateLimit)
	}
	if !o.IsMarket() && instr.PriceBandPct > 0 && instr.ReferencePrice > 0 {
		band := float64(instr.ReferencePrice) * instr.PriceBandPct
		diff := float64(o.Price - instr.ReferencePrice)
		if diff < 0 {
			diff = -diff
		}
		if diff > band {
			return reject(RejectPriceBand)
		}
	}
	if margin, ok := e.margins[o.Instrument]; ok && !margin.InitialRate.IsZero() {
		required := notional.Mul(margin.InitialRate)
		if required.GreaterThan(e.availableMargin(acct)) {
			return reject(RejectInsufficientMargin)
		}
	}
	if o.Side == model.SideBuy && notional.GreaterThan(acct.Cash) {
		return reject(RejectInsufficientBalance)
	}
	return admit()
}

// recordAndCountRate appends the attempt and returns the number of attempts
// in the trailing one-second window, including this one.
func (e *Engine) recordAndCountRate(p model.ParticipantID, now model.Nanos) int {
	w := e.rateWindow[p]
	cutoff := model.Nanos(0)
	if now > rateWindowNanos {
		cutoff = now - rateWindowNanos
	}
	kept := w[:0]
	for _, ts := range w {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	e.rateWindow[p] = kept
	return len(kept)
}

func (e *Engine) notional(o *model.Order, instr *model.Instrument) decimal.Decimal {
	p := o.Price
	if o.IsMarket() {
		p = instr.ReferencePrice
	}
	return decimal.NewFromInt(int64(p)).
		Mul(decimal.NewFromInt(int64(o.Quantity))).
		Mul(instr.TickValue)
}

func (e *Engine) availableMargin(acct *model.ParticipantAccount) decimal.Decimal {
	return acct.Equity().Sub(acct.MarginPosted)
}

// PostTradeCheck updates the participant's PnL high-water mark and reports
// breaches: drawdown or daily loss beyond thresholds, maintenance-margin
// shortfalls per instrument, and order-to-trade ratio abuse. It mutates no
// account state.
func (e *Engine) PostTradeCheck(acct *model.ParticipantAccount, instruments map[model.InstrumentID]*model.Instrument) []Breach {
	limits := e.limits[acct.ID]
	if limits == nil {
		return nil
	}
	var breaches []Breach

	equity := acct.Equity()
	if hw, ok := e.highWater[acct.ID]; !ok || equity.GreaterThan(hw) {
		e.highWater[acct.ID] = equity
	}

	if limits.MaxDrawdownPct > 0 && acct.InitialCash.IsPositive() {
		dd := acct.InitialCash.Sub(equity).Div(acct.InitialCash)
		if dd.InexactFloat64() > limits.MaxDrawdownPct {
			breaches = append(breaches, Breach{
				Kind:        BreachDrawdown,
				Participant: acct.ID,
				Reason:      "drawdown limit exceeded",
			})
		}
	}
	if limits.MaxDailyLossPct > 0 && acct.InitialCash.IsPositive() {
		loss := acct.RealizedPnL.Add(acct.UnrealizedPnL).Neg()
		if loss.Div(acct.InitialCash).InexactFloat64() > limits.MaxDailyLossPct {
			breaches = append(breaches, Breach{
				Kind:        BreachDailyLoss,
				Participant: acct.ID,
				Reason:      "daily loss limit exceeded",
			})
		}
	}

	avail := e.availableMargin(acct)
	for _, instr := range sortedInstruments(instruments) {
		p := acct.Positions[instr.ID]
		if p == nil || p.NetQty == 0 {
			continue
		}
		margin, ok := e.margins[instr.ID]
		if !ok || margin.MaintenanceRate.IsZero() {
			continue
		}
		notional := decimal.NewFromInt(abs64(int64(p.NetQty))).
			Mul(decimal.NewFromInt(int64(instr.ReferencePrice))).
			Mul(instr.TickValue)
		required := notional.Mul(margin.MaintenanceRate)
		if required.GreaterThan(avail) {
			breaches = append(breaches, Breach{
				Kind:        BreachMarginCall,
				Participant: acct.ID,
				Instrument:  instr.ID,
				Reason:      "maintenance margin shortfall",
				Required:    required,
				Available:   avail,
			})
		}
	}

	if limits.MaxOrderTradeRatio > 0 && acct.TradesExecuted > 0 {
		ratio := float64(acct.OrdersPlaced) / float64(acct.TradesExecuted)
		if ratio > limits.MaxOrderTradeRatio {
			breaches = append(breaches, Breach{
				Kind:        BreachOrderTradeRatio,
				Participant: acct.ID,
				Reason:      "order-to-trade ratio exceeded",
			})
		}
	}
	return breaches
}

// ActivateKillSwitch cuts the participant off from admission.
func (e *Engine) ActivateKillSwitch(p model.ParticipantID, reason string) {
	if limits, ok := e.limits[p]; ok && !limits.KillSwitchActive {
		limits.KillSwitchActive = true
		e.logger.Warn("kill switch activated",
			zap.Int64("participant", int64(p)),
			zap.String("reason", reason))
	}
}

// KillSwitchActive reports the participant's kill-switch state.
func (e *Engine) KillSwitchActive(p model.ParticipantID) bool {
	limits, ok := e.limits[p]
	return ok && limits.KillSwitchActive
}

// ForcedLiquidationOrders returns one market closing order per open position:
// sells for longs, buys for shorts. Order ids are left for the caller to
// assign through its normal sequence.
func (e *Engine) ForcedLiquidationOrders(acct *model.ParticipantAccount, instruments map[model.InstrumentID]*model.Instrument, now model.Nanos) []*model.Order {
	var orders []*model.Order
	for _, instr := range sortedInstruments(instruments) {
		p := acct.Positions[instr.ID]
		if p == nil || p.NetQty == 0 {
			continue
		}
		side := model.SideSell
		qty := p.NetQty
		if qty < 0 {
			side = model.SideBuy
			qty = -qty
		}
		orders = append(orders, &model.Order{
			Participant: acct.ID,
			Instrument:  instr.ID,
			Side:        side,
			Type:        model.OrderTypeMarket,
			Quantity:    qty,
			Remaining:   qty,
			SubmittedAt: now,
		})
	}
	return orders
}

// sortedInstruments gives a stable iteration order; map order would leak into
// event ordering and break replay.
func sortedInstruments(m map[model.InstrumentID]*model.Instrument) []*model.Instrument {
	out := make([]*model.Instrument, 0, len(m))
	for _, instr := range m {
		out = append(out, instr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
