// Package clearing implements the central counterparty: trade registration
// with netting, scheduled settlement, fail-to-deliver tracking, and the
// default-loss waterfall.
package clearing

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// Config sets the settlement cycle and the waterfall resources.
type Config struct {
	SettlementCycle    model.Nanos     // due = trade time + cycle
	CCPCapital         decimal.Decimal // clearing house's own layer
	GuaranteeFundPer   decimal.Decimal // each member's contribution
	MutualizedCapFrac  float64         // max fraction of the mutual fund usable per default
}

// DefaultConfig settles one simulated day after the trade.
func DefaultConfig() Config {
	return Config{
		SettlementCycle:   model.Nanos(24) * 3_600_000_000_000,
		CCPCapital:        decimal.NewFromInt(10_000_000),
		GuaranteeFundPer:  decimal.NewFromInt(100_000),
		MutualizedCapFrac: 0.5,
	}
}

// DefaultResult reports how a defaulter's loss was allocated across the
// waterfall layers.
type DefaultResult struct {
	Loss            decimal.Decimal
	DefaulterFund   decimal.Decimal
	CCPCapital      decimal.Decimal
	MutualizedFund  decimal.Decimal
	Uncovered       decimal.Decimal
	LayersDrawnUpon []string
}

// House is the clearing house for one simulation run.
type House struct {
	cfg       Config
	pending   []*model.Settlement
	completed []*model.Settlement
	netting   map[model.ParticipantID]map[model.InstrumentID]*model.NettingEntry
	fails     []model.FailToDeliver
	ccpLeft   decimal.Decimal
	guarantee map[model.ParticipantID]decimal.Decimal
	mutualPot decimal.Decimal
	fees      decimal.Decimal // accumulated maker/taker fees collected
	logger    *zap.Logger

	settledCount int64
	failedCount  int64
}

// NewHouse creates a clearing house funding each member's guarantee
// contribution from configuration.
func NewHouse(cfg Config, members []model.ParticipantID, logger *zap.Logger) *House {
	h := &House{
		cfg:       cfg,
		netting:   make(map[model.ParticipantID]map[model.InstrumentID]*model.NettingEntry),
		guarantee: make(map[model.ParticipantID]decimal.Decimal),
		ccpLeft:   cfg.CCPCapital,
		logger:    logger,
	}
	for _, m := range members {
		h.guarantee[m] = cfg.GuaranteeFundPer
		h.mutualPot = h.mutualPot.Add(cfg.GuaranteeFundPer)
	}
	return h
}

// RegisterTrade creates the settlement obligation due one cycle after the
// trade, debits maker/taker fees, and updates both counterparties' netting
// entries: buyer +quantity/-notional, seller -quantity/+notional.
func (h *House) RegisterTrade(t *model.Trade, instr *model.Instrument, accounts map[model.ParticipantID]*model.ParticipantAccount) *model.Settlement {
	notional := t.Notional(instr.TickValue)
	s := &model.Settlement{
		TradeID:    t.ID,
		Buyer:      t.Buyer,
		Seller:     t.Seller,
		Instrument: t.Instrument,
		Quantity:   t.Quantity,
		Price:      t.Price,
		Notional:   notional,
		TradeTime:  t.ExecutedAt,
		DueTime:    t.ExecutedAt + h.cfg.SettlementCycle,
		Status:     model.SettlementPending,
	}
	h.pending = append(h.pending, s)
	h.net(t.Buyer, t.Instrument).NetQty += t.Quantity
	h.net(t.Buyer, t.Instrument).NetCash = h.net(t.Buyer, t.Instrument).NetCash.Sub(notional)
	h.net(t.Seller, t.Instrument).NetQty -= t.Quantity
	h.net(t.Seller, t.Instrument).NetCash = h.net(t.Seller, t.Instrument).NetCash.Add(notional)

	h.applyFees(t, instr, notional, accounts)
	return s
}

// applyFees charges the aggressor the taker rate and the passive side the
// maker rate. In an auction both sides pay the maker rate.
func (h *House) applyFees(t *model.Trade, instr *model.Instrument, notional decimal.Decimal, accounts map[model.ParticipantID]*model.ParticipantAccount) {
	takerRate, makerRate := instr.TakerFeeRate, instr.MakerFeeRate
	taker, maker := t.Buyer, t.Seller
	if t.Aggressor == model.SideSell {
		taker, maker = t.Seller, t.Buyer
	}
	if t.Auction {
		takerRate = makerRate
	}
	h.charge(accounts[taker], notional.Mul(takerRate))
	h.charge(accounts[maker], notional.Mul(makerRate))
}

func (h *House) charge(acct *model.ParticipantAccount, fee decimal.Decimal) {
	if acct == nil || fee.IsZero() {
		return
	}
	acct.Cash = acct.Cash.Sub(fee)
	h.fees = h.fees.Add(fee)
}

func (h *House) net(p model.ParticipantID, i model.InstrumentID) *model.NettingEntry {
	byInstr, ok := h.netting[p]
	if !ok {
		byInstr = make(map[model.InstrumentID]*model.NettingEntry)
		h.netting[p] = byInstr
	}
	entry, ok := byInstr[i]
	if !ok {
		entry = &model.NettingEntry{Participant: p, Instrument: i}
		byInstr[i] = entry
	}
	return entry
}

// ProcessSettlements settles every pending obligation whose due time has
// elapsed: if both counterparties are active, cash moves buyer -> seller and
// the settlement is marked settled; otherwise it fails and a fail-to-deliver
// is recorded. Each settlement is processed exactly once. When dayBoundary is
// set the netting ledger is reset afterwards so the next day's trades cannot
// net against stale entries.
func (h *House) ProcessSettlements(now model.Nanos, accounts map[model.ParticipantID]*model.ParticipantAccount, dayBoundary bool) (settled, failed []*model.Settlement) {
	remaining := h.pending[:0]
	for _, s := range h.pending {
		if s.DueTime > now {
			remaining = append(remaining, s)
			continue
		}
		buyer, seller := accounts[s.Buyer], accounts[s.Seller]
		switch {
		case buyer == nil || seller == nil || !buyer.Active || !seller.Active:
			s.Status = model.SettlementFailed
			s.FailReason = "counterparty inactive"
			h.fails = append(h.fails, model.FailToDeliver{
				TradeID:    s.TradeID,
				Instrument: s.Instrument,
				Quantity:   s.Quantity,
				Reason:     s.FailReason,
				FailedAt:   now,
			})
			h.failedCount++
			failed = append(failed, s)
		default:
			buyer.Cash = buyer.Cash.Sub(s.Notional)
			seller.Cash = seller.Cash.Add(s.Notional)
			s.Status = model.SettlementSettled
			h.settledCount++
			settled = append(settled, s)
		}
		h.completed = append(h.completed, s)
	}
	h.pending = remaining

	if dayBoundary {
		h.ResetNetting()
	}
	return settled, failed
}

// ResetNetting clears the ledger at the end-of-day boundary. The coordinator
// drives this through ProcessSettlements' dayBoundary flag.
func (h *House) ResetNetting() {
	h.netting = make(map[model.ParticipantID]map[model.InstrumentID]*model.NettingEntry)
}

// NettingEntry returns the accumulated entry for one participant/instrument,
// zero-valued if none.
func (h *House) NettingEntry(p model.ParticipantID, i model.InstrumentID) model.NettingEntry {
	if byInstr, ok := h.netting[p]; ok {
		if e, ok := byInstr[i]; ok {
			return *e
		}
	}
	return model.NettingEntry{Participant: p, Instrument: i}
}

// ProcessDefault allocates loss through the waterfall in strict order:
// defaulter's guarantee contribution, CCP capital, then the mutualized fund
// capped at the configured fraction. Residual uncovered loss is returned to
// the caller; the house never socializes beyond the cap.
func (h *House) ProcessDefault(defaulter model.ParticipantID, loss decimal.Decimal) DefaultResult {
	res := DefaultResult{Loss: loss}
	left := loss

	if fund := h.guarantee[defaulter]; fund.IsPositive() && left.IsPositive() {
		draw := decimal.Min(fund, left)
		h.guarantee[defaulter] = fund.Sub(draw)
		h.mutualPot = h.mutualPot.Sub(draw)
		res.DefaulterFund = draw
		left = left.Sub(draw)
		res.LayersDrawnUpon = append(res.LayersDrawnUpon, "defaulter_fund")
	}
	if h.ccpLeft.IsPositive() && left.IsPositive() {
		draw := decimal.Min(h.ccpLeft, left)
		h.ccpLeft = h.ccpLeft.Sub(draw)
		res.CCPCapital = draw
		left = left.Sub(draw)
		res.LayersDrawnUpon = append(res.LayersDrawnUpon, "ccp_capital")
	}
	if left.IsPositive() {
		capAmt := h.mutualPot.Mul(decimal.NewFromFloat(h.cfg.MutualizedCapFrac))
		draw := decimal.Min(capAmt, left)
		if draw.IsPositive() {
			h.mutualPot = h.mutualPot.Sub(draw)
			res.MutualizedFund = draw
			left = left.Sub(draw)
			res.LayersDrawnUpon = append(res.LayersDrawnUpon, "mutualized_fund")
		}
	}
	res.Uncovered = left

	h.logger.Warn("default processed",
		zap.Int64("participant", int64(defaulter)),
		zap.String("loss", loss.String()),
		zap.String("uncovered", left.String()))
	return res
}

// Stats summarizes settlement outcomes for the analytics surface.
type Stats struct {
	Pending       int
	Settled       int64
	Failed        int64
	FailsOnRecord int
	FeesCollected decimal.Decimal
}

// Stats returns current counts.
func (h *House) Stats() Stats {
	return Stats{
		Pending:       len(h.pending),
		Settled:       h.settledCount,
		Failed:        h.failedCount,
		FailsOnRecord: len(h.fails),
		FeesCollected: h.fees,
	}
}

// Fails returns the fail-to-deliver record.
func (h *House) Fails() []model.FailToDeliver {
	out := make([]model.FailToDeliver, len(h.fails))
	copy(out, h.fails)
	return out
}
