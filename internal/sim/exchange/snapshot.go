package exchange

import (
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/eventlog"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// InstrumentState is the per-instrument slice of a Snapshot.
type InstrumentState struct {
	ID             model.InstrumentID
	Symbol         string
	ReferencePrice model.Price
	LastTrade      model.Price
	HasLastTrade   bool
	BestBid        model.Price
	BidSize        model.Qty
	HasBid         bool
	BestAsk        model.Price
	AskSize        model.Qty
	HasAsk         bool
	RestingOrders  int
	Halted         bool
}

// ParticipantState is the per-account slice of a Snapshot.
type ParticipantState struct {
	ID            model.ParticipantID
	Cash          string // decimal string
	Equity        string
	RealizedPnL   string
	UnrealizedPnL string
	OpenPositions int
	Active        bool
	KillSwitch    bool
}

// Snapshot is a point-in-time view of the whole simulation, safe to hold
// after the lock is released. All values are copies.
type Snapshot struct {
	RunID        string
	Tick         uint64
	Now          model.Nanos
	Phase        string
	Instruments  []InstrumentState
	Participants []ParticipantState
	Events       int
	Clamped      int64
}

// Analytics bundles the microstructure estimators and clearing counters.
type Analytics struct {
	VPIN                 map[model.InstrumentID]float64
	KyleLambda           map[model.InstrumentID]float64
	InformationAdvantage model.Nanos
	PendingSettlements   int
	Settled              int64
	Failed               int64
	FailsOnRecord        int
	FeesCollected        string // decimal string
}

// Snapshot captures the current simulation state. It takes the coordinator
// lock like every other operation and can return ErrSimulationBusy.
func (e *Exchange) Snapshot() (Snapshot, error) {
	if err := e.lock(); err != nil {
		return Snapshot{}, err
	}
	defer e.mu.Unlock()

	snap := Snapshot{
		RunID:   e.runID.String(),
		Tick:    e.tick,
		Now:     e.now,
		Phase:   e.phase.String(),
		Events:  e.log.Len(),
		Clamped: e.log.Clamped(),
	}
	for _, id := range e.instrOrder {
		instr := e.instruments[id]
		book := e.books[id]
		st := InstrumentState{
			ID:             id,
			Symbol:         instr.Symbol,
			ReferencePrice: instr.ReferencePrice,
			RestingOrders:  book.OrderCount(),
		}
		st.LastTrade, st.HasLastTrade = book.LastTradePrice()
		st.BestBid, st.BidSize, st.HasBid = book.BestBid()
		st.BestAsk, st.AskSize, st.HasAsk = book.BestAsk()
		_, st.Halted = e.halted[id]
		snap.Instruments = append(snap.Instruments, st)
	}
	for _, pid := range e.acctOrder {
		acct := e.accounts[pid]
		open := 0
		for _, pos := range acct.Positions {
			if pos.NetQty != 0 {
				open++
			}
		}
		snap.Participants = append(snap.Participants, ParticipantState{
			ID:            pid,
			Cash:          acct.Cash.String(),
			Equity:        acct.Equity().String(),
			RealizedPnL:   acct.RealizedPnL.String(),
			UnrealizedPnL: acct.UnrealizedPnL.String(),
			OpenPositions: open,
			Active:        acct.Active,
			KillSwitch:    e.riskEng.KillSwitchActive(pid),
		})
	}
	return snap, nil
}

// Analytics returns the toxicity and impact estimators plus clearing stats.
func (e *Exchange) Analytics() (Analytics, error) {
	if err := e.lock(); err != nil {
		return Analytics{}, err
	}
	defer e.mu.Unlock()

	a := Analytics{
		VPIN:                 make(map[model.InstrumentID]float64, len(e.instrOrder)),
		KyleLambda:           make(map[model.InstrumentID]float64, len(e.instrOrder)),
		InformationAdvantage: e.feed.InformationAdvantage(),
	}
	for _, id := range e.instrOrder {
		a.VPIN[id] = e.feed.VPINFor(id)
		a.KyleLambda[id] = e.feed.KyleLambdaFor(id)
	}
	st := e.house.Stats()
	a.PendingSettlements = st.Pending
	a.Settled = st.Settled
	a.Failed = st.Failed
	a.FailsOnRecord = st.FailsOnRecord
	a.FeesCollected = st.FeesCollected.String()
	return a, nil
}

// OrderBook returns a depth view of one instrument's book.
func (e *Exchange) OrderBook(id model.InstrumentID, depth int) (model.L2Snapshot, error) {
	if err := e.lock(); err != nil {
		return model.L2Snapshot{}, err
	}
	defer e.mu.Unlock()

	book, ok := e.books[id]
	if !ok {
		return model.L2Snapshot{}, ErrInstrumentNotFound
	}
	return book.L2Snapshot(depth, e.now), nil
}

// Events returns the last n event-log entries rendered for display.
func (e *Exchange) Events(n int) ([]string, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	tail := e.log.Tail(n)
	out := make([]string, 0, len(tail))
	for _, ev := range tail {
		out = append(out, eventlog.Describe(ev))
	}
	return out, nil
}

// EventLog exposes the raw event slice for analysis. Callers must treat the
// returned events as immutable.
func (e *Exchange) EventLog(from, to model.Nanos) ([]model.Event, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.log.Range(from, to), nil
}

// Trades returns every execution recorded so far.
func (e *Exchange) Trades() ([]model.Trade, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.log.Trades(), nil
}
