package auction

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

func newEngine() *Engine {
	var seq model.TradeID
	return New(1, func() model.TradeID { seq++; return seq }, zap.NewNop())
}

func order(id model.OrderID, p model.ParticipantID, side model.Side, typ model.OrderType, px model.Price, qty model.Qty) *model.Order {
	return &model.Order{
		ID: id, Participant: p, Instrument: 1, Side: side,
		Type: typ, Price: px, Quantity: qty, Remaining: qty,
	}
}

func TestUncrossMaximizesVolume(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 102, 30))
	e.Add(order(2, 2, model.SideBuy, model.OrderTypeLimit, 101, 20))
	e.Add(order(3, 3, model.SideSell, model.OrderTypeLimit, 100, 20))
	e.Add(order(4, 4, model.SideSell, model.OrderTypeLimit, 101, 20))

	// At 100: exec 20. At 101: buys 50 vs sells 40, exec 40. At 102: exec 30.
	res := e.Indicative()
	require.Equal(t, model.Price(101), res.Price)
	require.Equal(t, model.Qty(40), res.Volume)
	require.Equal(t, model.Qty(10), res.Surplus)

	got, trades, leftovers := e.Execute(10)
	require.Equal(t, res, got)
	require.Len(t, trades, 3)

	// Buy 2 is the only order left holding quantity (10 of its 20).
	require.Len(t, leftovers, 1)
	require.Equal(t, model.OrderID(2), leftovers[0].ID)
	require.Equal(t, model.Qty(10), leftovers[0].Remaining)
	require.Equal(t, model.OrderStatusCancelled, leftovers[0].Status)

	var total model.Qty
	for _, tr := range trades {
		require.Equal(t, model.Price(101), tr.Price)
		require.True(t, tr.Auction)
		total += tr.Quantity
	}
	require.Equal(t, model.Qty(40), total)
	require.Equal(t, StateCollecting, e.State())
	require.Zero(t, e.OrderCount())
}

func TestUncrossTieBreaksToLowestPrice(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 100, 10))
	e.Add(order(2, 2, model.SideSell, model.OrderTypeLimit, 99, 10))

	// Both 99 and 100 clear 10 with zero surplus; the lower price wins.
	res := e.Indicative()
	require.Equal(t, model.Price(99), res.Price)
	require.Equal(t, model.Qty(10), res.Volume)
	require.Zero(t, res.Surplus)
}

func TestUncrossedBookWithNoCross(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 99, 10))
	e.Add(order(2, 2, model.SideSell, model.OrderTypeLimit, 101, 10))

	res, trades, leftovers := e.Execute(10)
	require.Zero(t, res.Volume)
	require.Empty(t, trades)
	require.Equal(t, StateCollecting, e.State())

	// Both orders come back cancelled in full.
	require.Len(t, leftovers, 2)
	for _, o := range leftovers {
		require.Equal(t, model.OrderStatusCancelled, o.Status)
		require.Equal(t, o.Quantity, o.Remaining)
	}
}

func TestMarketOrdersCountAtEveryLevel(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeMarket, 0, 10))
	e.Add(order(2, 2, model.SideSell, model.OrderTypeLimit, 100, 10))

	res, trades, leftovers := e.Execute(10)
	require.Equal(t, model.Price(100), res.Price)
	require.Equal(t, model.Qty(10), res.Volume)
	require.Len(t, trades, 1)
	require.Equal(t, model.ParticipantID(1), trades[0].Buyer)
	require.Equal(t, model.ParticipantID(2), trades[0].Seller)
	require.Empty(t, leftovers)
}

func TestMarketOrdersHaveAllocationPriority(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 101, 10))
	e.Add(order(2, 2, model.SideBuy, model.OrderTypeMarket, 0, 10))
	e.Add(order(3, 3, model.SideSell, model.OrderTypeLimit, 100, 10))

	_, trades, _ := e.Execute(10)
	require.Len(t, trades, 1)
	require.Equal(t, model.ParticipantID(2), trades[0].Buyer)
}

func TestSelfTradeSkippedAndLeftUnmatched(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 100, 10))
	e.Add(order(2, 1, model.SideSell, model.OrderTypeLimit, 100, 10))
	e.Add(order(3, 2, model.SideSell, model.OrderTypeLimit, 100, 10))

	res, trades, leftovers := e.Execute(10)
	require.Equal(t, model.Qty(10), res.Volume)
	require.Len(t, trades, 1)
	require.Equal(t, model.ParticipantID(1), trades[0].Buyer)
	require.Equal(t, model.ParticipantID(2), trades[0].Seller)

	// The skipped counter-order stays unmatched and surfaces cancelled.
	require.Len(t, leftovers, 1)
	require.Equal(t, model.OrderID(2), leftovers[0].ID)
	require.Equal(t, model.OrderStatusCancelled, leftovers[0].Status)
}

func TestSelfTradeOnlyCounterpartyProducesNoTrades(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 100, 10))
	e.Add(order(2, 1, model.SideSell, model.OrderTypeLimit, 100, 10))

	res, trades, leftovers := e.Execute(10)
	require.Equal(t, model.Qty(10), res.Volume)
	require.Empty(t, trades)
	require.Len(t, leftovers, 2)
}

func TestArrivalOrderBreaksAllocationTies(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 100, 10))
	e.Add(order(2, 2, model.SideBuy, model.OrderTypeLimit, 100, 10))
	e.Add(order(3, 3, model.SideSell, model.OrderTypeLimit, 100, 10))

	_, trades, _ := e.Execute(10)
	require.Len(t, trades, 1)
	require.Equal(t, model.ParticipantID(1), trades[0].Buyer)
}

func TestIndicativeDoesNotMutate(t *testing.T) {
	e := newEngine()
	e.Add(order(1, 1, model.SideBuy, model.OrderTypeLimit, 100, 10))
	e.Add(order(2, 2, model.SideSell, model.OrderTypeLimit, 100, 10))

	first := e.Indicative()
	second := e.Indicative()
	require.Equal(t, first, second)
	require.Equal(t, 2, e.OrderCount())
	require.Equal(t, StateCollecting, e.State())
}
