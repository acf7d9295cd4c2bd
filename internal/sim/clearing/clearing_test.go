package clearing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

func testHouse(cfg Config, members ...model.ParticipantID) *House {
	return NewHouse(cfg, members, zap.NewNop())
}

func testAccounts(cash int64, ids ...model.ParticipantID) map[model.ParticipantID]*model.ParticipantAccount {
	out := make(map[model.ParticipantID]*model.ParticipantAccount)
	for _, id := range ids {
		out[id] = model.NewParticipantAccount(id, decimal.NewFromInt(cash))
	}
	return out
}

func testTrade(id model.TradeID, buyer, seller model.ParticipantID, qty model.Qty, px model.Price, at model.Nanos) *model.Trade {
	return &model.Trade{
		ID: id, Instrument: 1, Price: px, Quantity: qty,
		Aggressor: model.SideBuy, Buyer: buyer, Seller: seller, ExecutedAt: at,
	}
}

func feeFreeInstrument() *model.Instrument {
	return &model.Instrument{ID: 1, TickValue: decimal.NewFromInt(1)}
}

func TestSettlementLifecycle(t *testing.T) {
	cfg := Config{SettlementCycle: 1000}
	h := testHouse(cfg, 1, 2)
	accounts := testAccounts(5000, 1, 2)

	s := h.RegisterTrade(testTrade(1, 1, 2, 10, 100, 50), feeFreeInstrument(), accounts)
	require.Equal(t, model.SettlementPending, s.Status)
	require.Equal(t, model.Nanos(1050), s.DueTime)
	require.True(t, s.Notional.Equal(decimal.NewFromInt(1000)))

	// Not yet due.
	settled, failed := h.ProcessSettlements(1049, accounts, false)
	require.Empty(t, settled)
	require.Empty(t, failed)
	require.Equal(t, 1, h.Stats().Pending)

	settled, failed = h.ProcessSettlements(1050, accounts, false)
	require.Len(t, settled, 1)
	require.Empty(t, failed)
	require.Equal(t, model.SettlementSettled, settled[0].Status)
	require.True(t, accounts[1].Cash.Equal(decimal.NewFromInt(4000)))
	require.True(t, accounts[2].Cash.Equal(decimal.NewFromInt(6000)))

	// Processed exactly once.
	settled, _ = h.ProcessSettlements(2000, accounts, false)
	require.Empty(t, settled)
	require.Equal(t, int64(1), h.Stats().Settled)
	require.Zero(t, h.Stats().Pending)
}

func TestSettlementFailsOnInactiveCounterparty(t *testing.T) {
	h := testHouse(Config{SettlementCycle: 100}, 1, 2)
	accounts := testAccounts(5000, 1, 2)
	h.RegisterTrade(testTrade(1, 1, 2, 10, 100, 0), feeFreeInstrument(), accounts)

	accounts[2].Active = false
	settled, failed := h.ProcessSettlements(100, accounts, false)
	require.Empty(t, settled)
	require.Len(t, failed, 1)
	require.Equal(t, model.SettlementFailed, failed[0].Status)
	require.Equal(t, "counterparty inactive", failed[0].FailReason)

	// No cash moved.
	require.True(t, accounts[1].Cash.Equal(decimal.NewFromInt(5000)))

	fails := h.Fails()
	require.Len(t, fails, 1)
	require.Equal(t, model.TradeID(1), fails[0].TradeID)
	require.Equal(t, model.Qty(10), fails[0].Quantity)
}

func TestFeesChargedMakerTaker(t *testing.T) {
	h := testHouse(Config{SettlementCycle: 100}, 1, 2)
	accounts := testAccounts(5000, 1, 2)
	instr := &model.Instrument{
		ID:           1,
		TickValue:    decimal.NewFromInt(1),
		MakerFeeRate: decimal.NewFromFloat(0.001),
		TakerFeeRate: decimal.NewFromFloat(0.002),
	}

	// Buyer is the aggressor: buyer pays taker, seller pays maker on 1000.
	h.RegisterTrade(testTrade(1, 1, 2, 10, 100, 0), instr, accounts)
	require.True(t, accounts[1].Cash.Equal(decimal.NewFromInt(4998)), accounts[1].Cash.String())
	require.True(t, accounts[2].Cash.Equal(decimal.NewFromInt(4999)), accounts[2].Cash.String())
	require.True(t, h.Stats().FeesCollected.Equal(decimal.NewFromInt(3)))
}

func TestAuctionTradesPayMakerRateBothSides(t *testing.T) {
	h := testHouse(Config{SettlementCycle: 100}, 1, 2)
	accounts := testAccounts(5000, 1, 2)
	instr := &model.Instrument{
		ID:           1,
		TickValue:    decimal.NewFromInt(1),
		MakerFeeRate: decimal.NewFromFloat(0.001),
		TakerFeeRate: decimal.NewFromFloat(0.002),
	}

	tr := testTrade(1, 1, 2, 10, 100, 0)
	tr.Auction = true
	h.RegisterTrade(tr, instr, accounts)
	require.True(t, accounts[1].Cash.Equal(decimal.NewFromInt(4999)))
	require.True(t, accounts[2].Cash.Equal(decimal.NewFromInt(4999)))
}

func TestNettingAccumulatesAndResets(t *testing.T) {
	h := testHouse(Config{SettlementCycle: 1_000_000}, 1, 2)
	accounts := testAccounts(100_000, 1, 2)
	instr := feeFreeInstrument()

	h.RegisterTrade(testTrade(1, 1, 2, 10, 100, 0), instr, accounts)
	h.RegisterTrade(testTrade(2, 2, 1, 4, 110, 0), instr, accounts)

	buyerNet := h.NettingEntry(1, 1)
	require.Equal(t, model.Qty(6), buyerNet.NetQty)
	// -1000 paid, +440 received.
	require.True(t, buyerNet.NetCash.Equal(decimal.NewFromInt(-560)), buyerNet.NetCash.String())

	sellerNet := h.NettingEntry(2, 1)
	require.Equal(t, model.Qty(-6), sellerNet.NetQty)
	require.True(t, sellerNet.NetCash.Equal(decimal.NewFromInt(560)))

	h.ProcessSettlements(0, accounts, true) // day boundary resets the ledger
	require.Zero(t, h.NettingEntry(1, 1).NetQty)
	require.True(t, h.NettingEntry(1, 1).NetCash.IsZero())
}

func TestDefaultWaterfallStrictOrder(t *testing.T) {
	cfg := Config{
		CCPCapital:        decimal.NewFromInt(500),
		GuaranteeFundPer:  decimal.NewFromInt(100),
		MutualizedCapFrac: 0.5,
	}
	h := testHouse(cfg, 1, 2, 3) // mutual pot 300

	res := h.ProcessDefault(1, decimal.NewFromInt(1000))
	require.True(t, res.DefaulterFund.Equal(decimal.NewFromInt(100)))
	require.True(t, res.CCPCapital.Equal(decimal.NewFromInt(500)))
	// Pot is 200 after the defaulter's draw; cap 50% allows 100.
	require.True(t, res.MutualizedFund.Equal(decimal.NewFromInt(100)))
	require.True(t, res.Uncovered.Equal(decimal.NewFromInt(300)))
	require.Equal(t, []string{"defaulter_fund", "ccp_capital", "mutualized_fund"}, res.LayersDrawnUpon)
}

func TestDefaultCoveredByFirstLayer(t *testing.T) {
	cfg := Config{
		CCPCapital:        decimal.NewFromInt(500),
		GuaranteeFundPer:  decimal.NewFromInt(100),
		MutualizedCapFrac: 0.5,
	}
	h := testHouse(cfg, 1, 2)

	res := h.ProcessDefault(1, decimal.NewFromInt(60))
	require.True(t, res.DefaulterFund.Equal(decimal.NewFromInt(60)))
	require.True(t, res.CCPCapital.IsZero())
	require.True(t, res.Uncovered.IsZero())
	require.Equal(t, []string{"defaulter_fund"}, res.LayersDrawnUpon)

	// The second default by the same member has only 40 left in its fund.
	res = h.ProcessDefault(1, decimal.NewFromInt(100))
	require.True(t, res.DefaulterFund.Equal(decimal.NewFromInt(40)))
	require.True(t, res.CCPCapital.Equal(decimal.NewFromInt(60)))
}
