package exchange

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/risk"
)

// indicativeInterval is how often (in ticks) collecting auctions broadcast
// their indicative price.
const indicativeInterval = 10

// stepLocked advances one tick. The sub-steps run in a fixed, documented
// order; together with the single seeded generator this is what makes two
// runs with the same seed byte-identical:
//
//	1. clock advance and phase transitions
//	2. order expiry
//	3. price-process steps (instrument order)
//	4. synthetic order generation (agent order)
//	5. arrival processing: admission -> matching/auction -> clearing
//	6. volatility-halt resumption auctions
//	7. post-trade risk, kill switches, forced liquidations
//	8. due settlements (with day-boundary netting reset)
//	9. market data publication
func (e *Exchange) stepLocked() {
	prevDay := dayIndex(e.now)
	e.tick++
	e.now += e.cfg.TickInterval
	dayBoundary := dayIndex(e.now) != prevDay
	e.mx.Ticks.Inc()

	e.advancePhase()
	e.expireOrders()
	e.advancePrices()
	e.generateFlow()
	e.processArrivals()
	e.resumeHalts()
	e.postTradeRisk()
	e.settle(dayBoundary)
	e.publishMarketData()
}

func (e *Exchange) targetPhase() Phase {
	if e.tick <= e.cfg.Session.OpenAuctionTicks {
		return PhasePreOpen
	}
	h := e.cfg.HorizonTicks
	if h > 0 && e.tick >= h {
		return PhaseClosed
	}
	if h > 0 && e.cfg.Session.CloseAuctionTicks > 0 && e.tick > h-e.cfg.Session.CloseAuctionTicks {
		return PhaseClosingAuction
	}
	return PhaseContinuous
}

// advancePhase moves the session machine, executing scheduled auctions on
// the way out of a collection phase.
func (e *Exchange) advancePhase() {
	next := e.targetPhase()
	if next == e.phase {
		if (e.phase == PhasePreOpen || e.phase == PhaseClosingAuction) && e.tick%indicativeInterval == 0 {
			e.broadcastIndicatives()
		}
		return
	}

	if e.phase == PhasePreOpen || e.phase == PhaseClosingAuction {
		e.executeScheduledAuctions()
	}
	e.record(model.PhaseChangeEvent{Timestamp: e.now, From: e.phase.String(), To: next.String()})
	e.logger.Info("phase change", zap.String("from", e.phase.String()), zap.String("to", next.String()))
	e.phase = next
}

func (e *Exchange) broadcastIndicatives() {
	for _, id := range e.instrOrder {
		eng := e.auctions[id]
		if eng.OrderCount() == 0 {
			continue
		}
		res := eng.Indicative()
		e.record(model.AuctionIndicativeEvent{
			Timestamp:  e.now,
			Instrument: id,
			Price:      res.Price,
			Volume:     res.Volume,
			Surplus:    res.Surplus,
		})
	}
}

func (e *Exchange) executeScheduledAuctions() {
	for _, id := range e.instrOrder {
		e.executeAuction(id)
	}
}

func (e *Exchange) executeAuction(id model.InstrumentID) {
	eng := e.auctions[id]
	if eng.OrderCount() == 0 {
		return
	}
	res, trades, leftovers := eng.Execute(e.now)
	for _, t := range trades {
		e.applyTrade(t)
	}
	if res.Volume > 0 {
		e.instruments[id].ReferencePrice = res.Price
	}
	for _, o := range leftovers {
		e.record(model.OrderEvent{
			EventKind:   model.EventOrderCancelled,
			Timestamp:   e.now,
			OrderID:     o.ID,
			Participant: o.Participant,
			Instrument:  o.Instrument,
			Side:        o.Side,
			Price:       o.Price,
			Quantity:    o.Quantity,
		})
	}
	e.record(model.AuctionResultEvent{
		Timestamp:  e.now,
		Instrument: id,
		Price:      res.Price,
		Volume:     res.Volume,
		Trades:     len(trades),
	})
}

func (e *Exchange) expireOrders() {
	for _, id := range e.instrOrder {
		for _, o := range e.books[id].ExpireDue(e.now) {
			e.record(model.OrderEvent{
				EventKind:   model.EventOrderExpired,
				Timestamp:   e.now,
				OrderID:     o.ID,
				Participant: o.Participant,
				Instrument:  o.Instrument,
				Side:        o.Side,
				Price:       o.Price,
				Quantity:    o.Quantity,
			})
		}
	}
}

func (e *Exchange) advancePrices() {
	dt := float64(e.cfg.TickInterval) / float64(nanosPerDay) / 252.0 // year fraction
	for _, id := range e.instrOrder {
		e.processes[id].Step(e.rnd, dt)
	}
}

// generateFlow lets each synthetic agent place background orders around the
// fundamental price of a randomly chosen instrument.
func (e *Exchange) generateFlow() {
	if e.phase == PhaseClosed {
		return
	}
	for _, a := range e.agents {
		if e.rnd.Float64() >= a.orderProb {
			continue
		}
		id := e.instrOrder[e.rnd.IntN(int64(len(e.instrOrder)))]
		instr := e.instruments[id]
		fundamental := e.processes[id].Price()

		side := model.SideBuy
		if e.rnd.Float64() < 0.5 {
			side = model.SideSell
		}
		typ := model.OrderTypeLimit
		var px model.Price
		if e.rnd.Float64() < 0.1 {
			typ = model.OrderTypeMarket
		} else {
			offset := model.Price(e.rnd.Norm() * float64(fundamental) * 0.002)
			if side == model.SideBuy {
				px = fundamental - 1 + offset
			} else {
				px = fundamental + 1 + offset
			}
			if px < 1 {
				px = 1
			}
		}

		maxQty := a.maxQty
		if maxQty == 0 || maxQty > 100 {
			maxQty = 100
		}
		qty := model.Qty(e.rnd.Range(1, int64(maxQty)))

		if side == model.SideSell && !instr.ShortSellOK {
			held := e.accounts[a.participant].Position(id).NetQty
			if held <= 0 {
				continue
			}
			if qty > held {
				qty = held
			}
		}

		o := &model.Order{
			ID:          e.nextOrderID(),
			Participant: a.participant,
			Instrument:  id,
			Side:        side,
			Type:        typ,
			Price:       px,
			Quantity:    qty,
			Remaining:   qty,
			Status:      model.OrderStatusNew,
			SubmittedAt: e.now,
		}
		e.enqueue(o, a.tier)
	}
}

// processArrivals admits and routes every order whose latency has elapsed,
// in arrival order with order-id tie-breaks.
func (e *Exchange) processArrivals() {
	if len(e.pending) == 0 {
		return
	}
	sort.SliceStable(e.pending, func(i, j int) bool {
		if e.pending[i].arrival != e.pending[j].arrival {
			return e.pending[i].arrival < e.pending[j].arrival
		}
		return e.pending[i].order.ID < e.pending[j].order.ID
	})

	remaining := e.pending[:0]
	for _, p := range e.pending {
		if p.arrival > e.now {
			remaining = append(remaining, p)
			continue
		}
		e.admitAndRoute(p.order, p.arrival)
	}
	e.pending = remaining
}

func (e *Exchange) admitAndRoute(o *model.Order, arrival model.Nanos) {
	instr := e.instruments[o.Instrument]
	acct := e.accounts[o.Participant]

	if e.phase == PhaseClosed {
		e.rejectOrder(o, arrival, "market_closed")
		return
	}

	adm := e.riskEng.CheckOrder(o, acct, instr, arrival)
	if !adm.OK {
		e.rejectOrder(o, arrival, adm.Reason.String())
		e.mx.OrdersRejected.WithLabelValues(adm.Reason.String()).Inc()
		return
	}

	e.record(model.OrderEvent{
		EventKind:   model.EventOrderAccepted,
		Timestamp:   arrival,
		OrderID:     o.ID,
		Participant: o.Participant,
		Instrument:  o.Instrument,
		Side:        o.Side,
		Price:       o.Price,
		Quantity:    o.Quantity,
	})

	_, isHalted := e.halted[o.Instrument]
	if isHalted || e.phase == PhasePreOpen || e.phase == PhaseClosingAuction {
		e.auctions[o.Instrument].Add(o)
		return
	}

	for _, t := range e.books[o.Instrument].Submit(o, arrival) {
		e.applyTrade(t)
	}
}

func (e *Exchange) rejectOrder(o *model.Order, ts model.Nanos, reason string) {
	o.Status = model.OrderStatusRejected
	e.record(model.OrderEvent{
		EventKind:   model.EventOrderRejected,
		Timestamp:   ts,
		OrderID:     o.ID,
		Participant: o.Participant,
		Instrument:  o.Instrument,
		Side:        o.Side,
		Price:       o.Price,
		Quantity:    o.Quantity,
		Reason:      reason,
	})
}

// applyTrade runs the full post-execution pipeline for one trade: position
// updates, clearing registration, analytics, event log, metrics, and the
// volatility-halt check.
func (e *Exchange) applyTrade(t *model.Trade) {
	instr := e.instruments[t.Instrument]

	e.accounts[t.Buyer].ApplyFill(t.Instrument, t.Quantity, t.Price, instr.TickValue)
	e.accounts[t.Seller].ApplyFill(t.Instrument, -t.Quantity, t.Price, instr.TickValue)
	e.house.RegisterTrade(t, instr, e.accounts)
	e.feed.RecordTrade(t)
	e.record(model.TradeEvent{Timestamp: t.ExecutedAt, Trade: *t})
	e.mx.TradesExecuted.Inc()
	e.mx.TradedVolume.Add(float64(t.Quantity))

	if !t.Auction {
		e.checkVolatilityHalt(t, instr)
	}
	instr.ReferencePrice = t.Price
}

// checkVolatilityHalt trips a circuit breaker when a continuous trade prints
// outside the band around the pre-trade reference price.
func (e *Exchange) checkVolatilityHalt(t *model.Trade, instr *model.Instrument) {
	if instr.PriceBandPct <= 0 || instr.ReferencePrice == 0 {
		return
	}
	if _, already := e.halted[instr.ID]; already {
		return
	}
	band := float64(instr.ReferencePrice) * instr.PriceBandPct
	diff := float64(t.Price - instr.ReferencePrice)
	if diff < 0 {
		diff = -diff
	}
	if diff <= band {
		return
	}
	resume := e.now + model.Nanos(e.cfg.Session.HaltPauseTicks)*e.cfg.TickInterval
	e.halted[instr.ID] = resume
	e.record(model.CircuitBreakerEvent{
		Timestamp:  e.now,
		Instrument: instr.ID,
		LastPrice:  t.Price,
		Reference:  instr.ReferencePrice,
		ResumeAt:   resume,
	})
	e.logger.Warn("volatility halt",
		zap.Int64("instrument", int64(instr.ID)),
		zap.Int64("last_price", int64(t.Price)),
		zap.Int64("reference", int64(instr.ReferencePrice)))
}

// resumeHalts uncrosses the resumption auction for every instrument whose
// pause has elapsed.
func (e *Exchange) resumeHalts() {
	for _, id := range e.instrOrder {
		resume, ok := e.halted[id]
		if !ok || resume > e.now {
			continue
		}
		delete(e.halted, id)
		e.executeAuction(id)
		e.record(model.HaltLiftedEvent{Timestamp: e.now, Instrument: id})
		e.logger.Info("halt lifted", zap.Int64("instrument", int64(id)))
	}
}

// postTradeRisk marks accounts to market and acts on breaches: kill switches
// trigger forced liquidation, margin shortfalls raise margin calls.
func (e *Exchange) postTradeRisk() {
	refs, tvs := e.refPrices()
	for _, pid := range e.acctOrder {
		acct := e.accounts[pid]
		if !acct.Active {
			continue
		}
		acct.MarkToMarket(refs, tvs)
		for _, b := range e.riskEng.PostTradeCheck(acct, e.instruments) {
			switch b.Kind {
			case risk.BreachMarginCall:
				e.record(model.MarginCallEvent{
					Timestamp:   e.now,
					Participant: pid,
					Instrument:  b.Instrument,
					Required:    b.Required.String(),
					Available:   b.Available.String(),
				})
			default:
				if e.riskEng.KillSwitchActive(pid) {
					continue
				}
				e.riskEng.ActivateKillSwitch(pid, b.Reason)
				e.record(model.KillSwitchEvent{Timestamp: e.now, Participant: pid, Reason: b.Reason})
				e.forceLiquidate(acct)
			}
		}
	}
}

// forceLiquidate closes every open position with immediate market orders.
// These bypass admission: the exchange itself is the submitter.
func (e *Exchange) forceLiquidate(acct *model.ParticipantAccount) {
	for _, o := range e.riskEng.ForcedLiquidationOrders(acct, e.instruments, e.now) {
		o.ID = e.nextOrderID()
		e.record(model.ForcedLiquidationEvent{
			Timestamp:   e.now,
			Participant: o.Participant,
			Instrument:  o.Instrument,
			Side:        o.Side,
			Quantity:    o.Quantity,
		})
		for _, t := range e.books[o.Instrument].Submit(o, e.now) {
			e.applyTrade(t)
		}
	}
}

func (e *Exchange) settle(dayBoundary bool) {
	settled, failed := e.house.ProcessSettlements(e.now, e.accounts, dayBoundary)
	for _, s := range settled {
		e.mx.Settlements.WithLabelValues("settled").Inc()
		e.record(model.SettlementEvent{
			EventKind:  model.EventSettlementSettled,
			Timestamp:  e.now,
			TradeID:    s.TradeID,
			Instrument: s.Instrument,
			Quantity:   s.Quantity,
		})
	}
	for _, s := range failed {
		e.mx.Settlements.WithLabelValues("failed").Inc()
		e.record(model.SettlementEvent{
			EventKind:  model.EventSettlementFailed,
			Timestamp:  e.now,
			TradeID:    s.TradeID,
			Instrument: s.Instrument,
			Quantity:   s.Quantity,
			Reason:     s.FailReason,
		})
	}
}

// publishMarketData refreshes the feed cache and logs top-of-book changes.
func (e *Exchange) publishMarketData() {
	for _, id := range e.instrOrder {
		book := e.books[id]
		e.feed.UpdateFromBook(id, book, e.now)
		q := book.L1Quote(e.now)
		last := e.lastQuote[id]
		if quoteChanged(last, q) {
			e.lastQuote[id] = q
			e.record(model.QuoteEvent{Timestamp: e.now, Quote: q})
		}
	}
}

func quoteChanged(a, b model.L1Quote) bool {
	return a.HasBid != b.HasBid || a.HasAsk != b.HasAsk ||
		a.BidPrice != b.BidPrice || a.BidSize != b.BidSize ||
		a.AskPrice != b.AskPrice || a.AskSize != b.AskSize
}
