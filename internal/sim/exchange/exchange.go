// Package exchange is the coordinator that owns every engine of one
// simulation run: order books, auction engines, the risk engine, the clearing
// house, the market data feed, the event log, and the latency/price
// simulator. It advances simulated time deterministically and is the only
// entry point external layers touch.
package exchange

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/auction"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/clearing"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/eventlog"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/latency"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/marketdata"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/orderbook"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/price"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/risk"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/rng"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/pkg/metrics"
)

// Errors surfaced to the embedding layer. None of them is fatal to the run.
var (
	ErrSimulationBusy     = fmt.Errorf("simulation busy")
	ErrNotRunning         = fmt.Errorf("simulation not running")
	ErrInstrumentNotFound = fmt.Errorf("instrument not found")
	ErrUnknownParticipant = fmt.Errorf("unknown participant")
)

// Lock acquisition contract for externally-triggered operations: a short
// bounded retry, then a user-facing busy error. Never blocks indefinitely.
const (
	lockAttempts = 5
	lockBackoff  = 10 * time.Millisecond
)

// Phase is the session state of the whole venue.
type Phase int

const (
	PhasePreOpen Phase = iota
	PhaseContinuous
	PhaseClosingAuction
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhasePreOpen:
		return "pre_open"
	case PhaseContinuous:
		return "continuous"
	case PhaseClosingAuction:
		return "closing_auction"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

const nanosPerDay = model.Nanos(24) * 3_600_000_000_000

// pendingOrder is an admitted-for-transport order waiting out its latency.
type pendingOrder struct {
	order   *model.Order
	arrival model.Nanos
}

// agent is one synthetic participant generating background order flow.
type agent struct {
	participant model.ParticipantID
	tier        latency.Tier
	orderProb   float64
	maxQty      model.Qty
}

// Exchange coordinates one run. One mutex guards the whole instance; all
// engine state underneath it is mutated single-threaded, which makes every
// tick race-free by construction.
type Exchange struct {
	mu  sync.Mutex
	cfg Config

	runID  uuid.UUID
	logger *zap.Logger
	mx     *metrics.Metrics

	rnd       *rng.Rand
	lat       *latency.Simulator
	processes map[model.InstrumentID]*price.Process

	instruments map[model.InstrumentID]*model.Instrument
	instrOrder  []model.InstrumentID // deterministic iteration order
	books       map[model.InstrumentID]*orderbook.Book
	auctions    map[model.InstrumentID]*auction.Engine
	riskEng     *risk.Engine
	house       *clearing.House
	feed        *marketdata.Feed
	log         *eventlog.Log

	accounts  map[model.ParticipantID]*model.ParticipantAccount
	acctOrder []model.ParticipantID
	tiers     map[model.ParticipantID]latency.Tier
	agents    []agent

	now     model.Nanos
	tick    uint64
	phase   Phase
	halted  map[model.InstrumentID]model.Nanos // instrument -> resume time
	pending []pendingOrder
	running bool

	orderSeq  int64
	tradeSeq  int64
	lastQuote map[model.InstrumentID]model.L1Quote
}

// New builds a run from configuration. Everything stochastic derives from
// cfg.Seed; identical config gives an identical run.
func New(cfg Config, logger *zap.Logger) (*Exchange, error) {
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("no instruments configured")
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 1_000_000
	}
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = 10
	}

	e := &Exchange{
		cfg:         cfg,
		runID:       uuid.New(),
		logger:      logger,
		mx:          metrics.New(),
		rnd:         rng.New(cfg.Seed),
		processes:   make(map[model.InstrumentID]*price.Process),
		instruments: make(map[model.InstrumentID]*model.Instrument),
		books:       make(map[model.InstrumentID]*orderbook.Book),
		auctions:    make(map[model.InstrumentID]*auction.Engine),
		accounts:    make(map[model.ParticipantID]*model.ParticipantAccount),
		tiers:       make(map[model.ParticipantID]latency.Tier),
		halted:      make(map[model.InstrumentID]model.Nanos),
		lastQuote:   make(map[model.InstrumentID]model.L1Quote),
		log:         eventlog.New(),
		phase:       PhasePreOpen,
		running:     true,
	}
	e.lat = latency.NewSimulator(e.rnd)
	e.feed = marketdata.NewFeed(cfg.Feed, cfg.DepthLevels, logger)

	limits := make(map[model.ParticipantID]*model.RiskLimits)
	margins := make(map[model.InstrumentID]model.MarginRequirement)

	for i, ic := range cfg.Instruments {
		id := model.InstrumentID(i + 1)
		instr := &model.Instrument{
			ID:             id,
			Symbol:         ic.Symbol,
			TickSize:       1,
			TickValue:      ic.TickValue,
			LotSize:        ic.LotSize,
			MinQty:         ic.MinQty,
			MaxQty:         ic.MaxQty,
			PriceBandPct:   ic.PriceBandPct,
			ReferencePrice: ic.ReferencePrice,
			MakerFeeRate:   ic.MakerFeeRate,
			TakerFeeRate:   ic.TakerFeeRate,
			ShortSellOK:    ic.ShortSellOK,
			Volatility:     ic.Volatility,
		}
		e.instruments[id] = instr
		e.instrOrder = append(e.instrOrder, id)
		e.books[id] = orderbook.New(id, e.nextTradeID, logger)
		e.auctions[id] = auction.New(id, e.nextTradeID, logger)
		e.processes[id] = price.NewProcess(price.Params{
			Model:         ic.PriceModel,
			Volatility:    ic.Volatility,
			JumpIntensity: 10,
			JumpMean:      0,
			JumpStd:       0.02,
			Kappa:         2,
			Theta:         ic.Volatility * ic.Volatility,
			Xi:            0.3,
		}, ic.ReferencePrice)
		margins[id] = model.MarginRequirement{
			Instrument:      id,
			InitialRate:     cfg.InitialMarginRate,
			MaintenanceRate: cfg.MaintenanceMarginRate,
		}
	}

	var pid model.ParticipantID
	for _, pc := range cfg.Participants {
		for i := 0; i < pc.Count; i++ {
			pid++
			e.accounts[pid] = model.NewParticipantAccount(pid, pc.InitialCash)
			e.acctOrder = append(e.acctOrder, pid)
			e.tiers[pid] = pc.Tier
			lim := pc.Limits
			limits[pid] = &lim
			e.agents = append(e.agents, agent{
				participant: pid,
				tier:        pc.Tier,
				orderProb:   pc.OrderProb,
				maxQty:      lim.MaxOrderQty,
			})
		}
	}

	e.riskEng = risk.NewEngine(limits, margins, logger)
	e.house = clearing.NewHouse(cfg.Clearing, e.acctOrder, logger)

	logger.Info("simulation created",
		zap.String("run_id", e.runID.String()),
		zap.Uint64("seed", cfg.Seed),
		zap.Int("instruments", len(e.instruments)),
		zap.Int("participants", len(e.accounts)))
	return e, nil
}

// RunID identifies this simulation instance.
func (e *Exchange) RunID() uuid.UUID { return e.runID }

// Metrics exposes the run's prometheus registry.
func (e *Exchange) Metrics() *metrics.Metrics { return e.mx }

// lock acquires the instance mutex with the bounded-retry contract.
func (e *Exchange) lock() error {
	for i := 0; i < lockAttempts; i++ {
		if e.mu.TryLock() {
			return nil
		}
		time.Sleep(lockBackoff)
	}
	return ErrSimulationBusy
}

// Step advances the simulation by n ticks.
func (e *Exchange) Step(n int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	for i := 0; i < n && e.phase != PhaseClosed; i++ {
		e.stepLocked()
	}
	return nil
}

// Run advances to the configured horizon.
func (e *Exchange) Run() error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	for e.phase != PhaseClosed && (e.cfg.HorizonTicks == 0 || e.tick < e.cfg.HorizonTicks) {
		e.stepLocked()
	}
	return nil
}

// Stop discards all in-memory state immediately. Anything still pending is
// lost, which is fine: nothing persists between runs.
func (e *Exchange) Stop() error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	e.running = false
	e.pending = nil
	e.logger.Info("simulation stopped", zap.Uint64("tick", e.tick))
	return nil
}

// Running reports whether the run can still advance.
func (e *Exchange) Running() bool {
	if err := e.lock(); err != nil {
		return false
	}
	defer e.mu.Unlock()
	return e.running
}

func (e *Exchange) nextTradeID() model.TradeID {
	e.tradeSeq++
	return model.TradeID(e.tradeSeq)
}

func (e *Exchange) nextOrderID() model.OrderID {
	e.orderSeq++
	return model.OrderID(e.orderSeq)
}

// record appends to the event log and bumps the counter.
func (e *Exchange) record(ev model.Event) {
	e.log.Append(ev)
	e.mx.EventsLogged.Inc()
}

// NewsInjection is the external news-shock request.
type NewsInjection struct {
	Headline  string
	Sentiment float64 // [-1, 1]
	Magnitude float64 // [0, 1]
	// Instruments limits the shock; empty means all.
	Instruments []model.InstrumentID
}

// InjectNews applies a price shock to the affected instruments and records a
// news event. The shock direction follows the sentiment sign.
func (e *Exchange) InjectNews(n NewsInjection) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}

	affected := n.Instruments
	if len(affected) == 0 {
		affected = e.instrOrder
	}
	// Validate every id before touching any process, so a bad id rejects the
	// whole request without a partial shock.
	procs := make([]*price.Process, len(affected))
	for i, id := range affected {
		proc, ok := e.processes[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrInstrumentNotFound, id)
		}
		procs[i] = proc
	}
	shock := n.Sentiment * n.Magnitude * maxShockPct
	for i, id := range affected {
		newPrice := procs[i].ApplyShock(shock)
		e.logger.Info("news shock applied",
			zap.Int64("instrument", int64(id)),
			zap.Float64("shock", shock),
			zap.Int64("price", int64(newPrice)))
	}
	e.record(model.NewsEvent{
		Timestamp:   e.now,
		Headline:    n.Headline,
		Sentiment:   n.Sentiment,
		Magnitude:   n.Magnitude,
		Instruments: affected,
	})
	return nil
}

// maxShockPct bounds a full-magnitude news event to a 10% move.
const maxShockPct = 0.10

// OrderRequest is an externally injected order (strategy layer). It rides
// the same admission and latency path as synthetic flow.
type OrderRequest struct {
	Participant model.ParticipantID
	Instrument  model.InstrumentID
	Side        model.Side
	Type        model.OrderType
	Price       model.Price
	Quantity    model.Qty
	ExpiresAt   model.Nanos
}

// SubmitOrder queues an external order for arrival after the participant's
// latency. The returned id can be used to cancel before execution.
func (e *Exchange) SubmitOrder(req OrderRequest) (model.OrderID, error) {
	if err := e.lock(); err != nil {
		return 0, err
	}
	defer e.mu.Unlock()
	if !e.running {
		return 0, ErrNotRunning
	}
	if _, ok := e.instruments[req.Instrument]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrInstrumentNotFound, req.Instrument)
	}
	tier, ok := e.tiers[req.Participant]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownParticipant, req.Participant)
	}

	o := &model.Order{
		ID:          e.nextOrderID(),
		Participant: req.Participant,
		Instrument:  req.Instrument,
		Side:        req.Side,
		Type:        req.Type,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Remaining:   req.Quantity,
		Status:      model.OrderStatusNew,
		SubmittedAt: e.now,
		ExpiresAt:   req.ExpiresAt,
	}
	e.enqueue(o, tier)
	return o.ID, nil
}

// CancelOrder cancels a resting order.
func (e *Exchange) CancelOrder(instrument model.InstrumentID, id model.OrderID) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	book, ok := e.books[instrument]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInstrumentNotFound, instrument)
	}
	o, err := book.Cancel(id)
	if err != nil {
		return err
	}
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
	return nil
}

// ModifyOrder amends a resting order's price and quantity. Price changes and
// quantity increases lose time priority.
func (e *Exchange) ModifyOrder(instrument model.InstrumentID, id model.OrderID, newPrice model.Price, newQty model.Qty) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()
	if !e.running {
		return ErrNotRunning
	}
	book, ok := e.books[instrument]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInstrumentNotFound, instrument)
	}
	o, err := book.Modify(id, newPrice, newQty, e.now)
	if err != nil {
		return err
	}
	e.record(model.OrderEvent{
		EventKind:   model.EventOrderModified,
		Timestamp:   e.now,
		OrderID:     o.ID,
		Participant: o.Participant,
		Instrument:  o.Instrument,
		Side:        o.Side,
		Price:       o.Price,
		Quantity:    o.Quantity,
	})
	return nil
}

// enqueue stamps latency on the order and records its submission.
func (e *Exchange) enqueue(o *model.Order, tier latency.Tier) {
	arrival := e.lat.OrderArrival(tier, o.SubmittedAt)
	e.pending = append(e.pending, pendingOrder{order: o, arrival: arrival})
	e.mx.OrdersSubmitted.WithLabelValues(o.Side.String()).Inc()
	if acct, ok := e.accounts[o.Participant]; ok {
		acct.OrdersPlaced++
	}
	e.record(model.OrderEvent{
		EventKind:   model.EventOrderSubmitted,
		Timestamp:   o.SubmittedAt,
		OrderID:     o.ID,
		Participant: o.Participant,
		Instrument:  o.Instrument,
		Side:        o.Side,
		Price:       o.Price,
		Quantity:    o.Quantity,
	})
}

// dayIndex is the simulated day number for a timestamp.
func dayIndex(ts model.Nanos) uint64 {
	return uint64(ts / nanosPerDay)
}

// refPrices builds the mark-to-market inputs in instrument order.
func (e *Exchange) refPrices() (map[model.InstrumentID]model.Price, map[model.InstrumentID]decimal.Decimal) {
	refs := make(map[model.InstrumentID]model.Price, len(e.instrOrder))
	tvs := make(map[model.InstrumentID]decimal.Decimal, len(e.instrOrder))
	for _, id := range e.instrOrder {
		refs[id] = e.instruments[id].ReferencePrice
		tvs[id] = e.instruments[id].TickValue
	}
	return refs, tvs
}
