package marketdata

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

func trade(px model.Price, qty model.Qty, aggressor model.Side) *model.Trade {
	return &model.Trade{Instrument: 1, Price: px, Quantity: qty, Aggressor: aggressor}
}

func TestVPINOneSidedFlowIsToxic(t *testing.T) {
	v := NewVPIN(10, 5)
	v.Record(trade(100, 25, model.SideBuy))
	require.Equal(t, 2, v.CompletedBuckets())
	require.Equal(t, 1.0, v.Value())
}

func TestVPINBalancedFlowIsBenign(t *testing.T) {
	v := NewVPIN(20, 5)
	for i := 0; i < 4; i++ {
		v.Record(trade(100, 10, model.SideBuy))
		v.Record(trade(100, 10, model.SideSell))
	}
	require.Equal(t, 4, v.CompletedBuckets())
	require.Equal(t, 0.0, v.Value())
}

func TestVPINOverflowSplitsAcrossBuckets(t *testing.T) {
	v := NewVPIN(10, 5)
	v.Record(trade(100, 7, model.SideBuy))
	v.Record(trade(100, 7, model.SideSell))
	// First bucket: 7 buy + 3 sell, imbalance 4/10.
	require.Equal(t, 1, v.CompletedBuckets())
	require.InDelta(t, 0.4, v.Value(), 1e-12)
}

func TestVPINZeroBeforeFirstBucket(t *testing.T) {
	v := NewVPIN(100, 5)
	v.Record(trade(100, 10, model.SideBuy))
	require.Zero(t, v.CompletedBuckets())
	require.Equal(t, 0.0, v.Value())
}

func TestVPINWindowRolls(t *testing.T) {
	v := NewVPIN(10, 2)
	v.Record(trade(100, 10, model.SideBuy))
	v.Record(trade(100, 10, model.SideBuy))
	v.Record(trade(100, 10, model.SideSell))
	// Three complete buckets; only the last two are kept, still one-sided each.
	require.Equal(t, 2, v.CompletedBuckets())
	require.Equal(t, 1.0, v.Value())
}

func TestKyleLambdaSlope(t *testing.T) {
	k := NewKyleLambda(100)
	k.Record(trade(100, 10, model.SideBuy)) // seeds the reference price
	require.Equal(t, 0.0, k.Value())

	k.Record(trade(102, 10, model.SideBuy)) // dp +2, v +10
	k.Record(trade(101, 5, model.SideSell)) // dp -1, v -5
	// lambda = (2*10 + (-1)(-5)) / (100 + 25) = 25/125
	require.InDelta(t, 0.2, k.Value(), 1e-12)
}

func TestKyleLambdaWindowRolls(t *testing.T) {
	k := NewKyleLambda(2)
	k.Record(trade(100, 10, model.SideBuy))
	k.Record(trade(110, 10, model.SideBuy)) // falls out of the window
	k.Record(trade(111, 10, model.SideBuy))
	k.Record(trade(112, 10, model.SideBuy))
	// Remaining observations: dp 1/v 10 twice.
	require.InDelta(t, 0.1, k.Value(), 1e-12)
}

// stubBook is a fixed bookView for feed cache tests.
type stubBook struct {
	bid, ask model.Price
}

func (s stubBook) L1Quote(ts model.Nanos) model.L1Quote {
	return model.L1Quote{
		Instrument: 1, Timestamp: ts,
		BidPrice: s.bid, BidSize: 10, HasBid: true,
		AskPrice: s.ask, AskSize: 10, HasAsk: true,
	}
}

func (s stubBook) L2Snapshot(depth int, ts model.Nanos) model.L2Snapshot {
	return model.L2Snapshot{
		Instrument: 1, Timestamp: ts,
		Bids: []model.L2Level{{Price: s.bid, Volume: 10, Orders: 1}},
		Asks: []model.L2Level{{Price: s.ask, Volume: 10, Orders: 1}},
	}
}

func TestFeedStaleness(t *testing.T) {
	f := NewFeed(Config{DirectLatency: 100, ConsolidatedLatency: 1100}, 10, zap.NewNop())
	f.UpdateFromBook(1, stubBook{bid: 9_990, ask: 10_010}, 5_000)

	direct, err := f.Quote(1, FeedDirect)
	require.NoError(t, err)
	require.Equal(t, model.Nanos(4_900), direct.Timestamp)
	require.Equal(t, model.Price(9_990), direct.BidPrice)

	consolidated, err := f.Quote(1, FeedConsolidated)
	require.NoError(t, err)
	require.Equal(t, model.Nanos(3_900), consolidated.Timestamp)
	// Same prices, older view.
	require.Equal(t, direct.BidPrice, consolidated.BidPrice)
	require.Equal(t, direct.AskPrice, consolidated.AskPrice)

	require.Equal(t, model.Nanos(1000), f.InformationAdvantage())
}

func TestFeedDepthCopies(t *testing.T) {
	f := NewFeed(DefaultConfig(), 10, zap.NewNop())
	f.UpdateFromBook(1, stubBook{bid: 100, ask: 101}, 10_000_000)

	d1, err := f.Depth(1, FeedDirect)
	require.NoError(t, err)
	d1.Bids[0].Price = 1 // must not affect the cache

	d2, err := f.Depth(1, FeedDirect)
	require.NoError(t, err)
	require.Equal(t, model.Price(100), d2.Bids[0].Price)
}

func TestFeedNoData(t *testing.T) {
	f := NewFeed(DefaultConfig(), 10, zap.NewNop())
	_, err := f.Quote(42, FeedDirect)
	require.ErrorIs(t, err, ErrNoData)
	_, err = f.Depth(42, FeedConsolidated)
	require.ErrorIs(t, err, ErrNoData)
}

func TestFeedStalenessClampsAtZero(t *testing.T) {
	f := NewFeed(Config{DirectLatency: 100, ConsolidatedLatency: 1100}, 10, zap.NewNop())
	f.UpdateFromBook(1, stubBook{bid: 100, ask: 101}, 50)

	q, err := f.Quote(1, FeedConsolidated)
	require.NoError(t, err)
	require.Equal(t, model.Nanos(0), q.Timestamp)
}

func TestRecordTradeFeedsEstimators(t *testing.T) {
	f := NewFeed(DefaultConfig(), 10, zap.NewNop())
	for i := 0; i < 3; i++ {
		f.RecordTrade(&model.Trade{Instrument: 1, Price: 100, Quantity: defaultBucketSize, Aggressor: model.SideBuy})
	}
	require.Equal(t, 1.0, f.VPINFor(1))
	require.Equal(t, 0.0, f.VPINFor(2)) // untouched instrument
}
