// Package marketdata delivers quote and depth views with feed-type-dependent
// staleness, and computes order-flow analytics (VPIN, Kyle's lambda) from the
// trade tape. Consolidated-feed consumers see the same cached view as direct
// consumers, shifted back in time by a fixed configured gap.
package marketdata

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// FeedType selects direct exchange connectivity or the consolidated tape.
type FeedType int

const (
	FeedDirect FeedType = iota
	FeedConsolidated
)

func (f FeedType) String() string {
	if f == FeedDirect {
		return "direct"
	}
	return "consolidated"
}

// ErrNoData is returned when no snapshot has been cached for an instrument.
var ErrNoData = fmt.Errorf("no market data cached")

// Config sets the per-feed delivery latencies.
type Config struct {
	DirectLatency       model.Nanos
	ConsolidatedLatency model.Nanos
}

// DefaultConfig gives the consolidated feed a 1ms disadvantage over direct.
func DefaultConfig() Config {
	return Config{DirectLatency: 50_000, ConsolidatedLatency: 1_050_000}
}

type cached struct {
	quote model.L1Quote
	depth model.L2Snapshot
}

// bookView is what the feed reads from the matching engine; it only ever
// receives derived copies, never references into the live book.
type bookView interface {
	L1Quote(ts model.Nanos) model.L1Quote
	L2Snapshot(depth int, ts model.Nanos) model.L2Snapshot
}

// Feed caches the latest views per instrument and serves them with the
// requesting feed's staleness applied.
type Feed struct {
	cfg    Config
	cache  map[model.InstrumentID]*cached
	depth  int
	logger *zap.Logger

	vpin map[model.InstrumentID]*VPIN
	kyle map[model.InstrumentID]*KyleLambda
}

// NewFeed builds a feed caching depth levels per side.
func NewFeed(cfg Config, depth int, logger *zap.Logger) *Feed {
	return &Feed{
		cfg:    cfg,
		cache:  make(map[model.InstrumentID]*cached),
		depth:  depth,
		logger: logger,
		vpin:   make(map[model.InstrumentID]*VPIN),
		kyle:   make(map[model.InstrumentID]*KyleLambda),
	}
}

// UpdateFromBook refreshes the cached L1/L2 views for one instrument.
func (f *Feed) UpdateFromBook(id model.InstrumentID, book bookView, now model.Nanos) {
	f.cache[id] = &cached{
		quote: book.L1Quote(now),
		depth: book.L2Snapshot(f.depth, now),
	}
}

// RecordTrade feeds the analytics estimators.
func (f *Feed) RecordTrade(t *model.Trade) {
	f.vpinFor(t.Instrument).Record(t)
	f.kyleFor(t.Instrument).Record(t)
}

// Quote returns the cached L1 view with the feed's latency subtracted from
// its timestamp, so consolidated consumers observe older information.
func (f *Feed) Quote(id model.InstrumentID, feed FeedType) (model.L1Quote, error) {
	c, ok := f.cache[id]
	if !ok {
		return model.L1Quote{}, fmt.Errorf("%w: instrument %d", ErrNoData, id)
	}
	q := c.quote
	q.Timestamp = shiftBack(q.Timestamp, f.latency(feed))
	return q, nil
}

// Depth returns the cached L2 view with the feed's staleness applied.
func (f *Feed) Depth(id model.InstrumentID, feed FeedType) (model.L2Snapshot, error) {
	c, ok := f.cache[id]
	if !ok {
		return model.L2Snapshot{}, fmt.Errorf("%w: instrument %d", ErrNoData, id)
	}
	d := c.depth
	d.Timestamp = shiftBack(d.Timestamp, f.latency(feed))
	// Levels are copied so callers never alias the cache.
	d.Bids = append([]model.L2Level(nil), d.Bids...)
	d.Asks = append([]model.L2Level(nil), d.Asks...)
	return d, nil
}

// InformationAdvantage reports how much earlier direct-feed consumers see the
// same update compared to the consolidated tape.
func (f *Feed) InformationAdvantage() model.Nanos {
	return f.cfg.ConsolidatedLatency - f.cfg.DirectLatency
}

// VPINFor returns the current toxicity estimate for an instrument.
func (f *Feed) VPINFor(id model.InstrumentID) float64 {
	return f.vpinFor(id).Value()
}

// KyleLambdaFor returns the current price-impact estimate for an instrument.
func (f *Feed) KyleLambdaFor(id model.InstrumentID) float64 {
	return f.kyleFor(id).Value()
}

func (f *Feed) vpinFor(id model.InstrumentID) *VPIN {
	v, ok := f.vpin[id]
	if !ok {
		v = NewVPIN(defaultBucketSize, defaultBucketCount)
		f.vpin[id] = v
	}
	return v
}

func (f *Feed) kyleFor(id model.InstrumentID) *KyleLambda {
	k, ok := f.kyle[id]
	if !ok {
		k = NewKyleLambda(defaultKyleWindow)
		f.kyle[id] = k
	}
	return k
}

func (f *Feed) latency(feed FeedType) model.Nanos {
	if feed == FeedDirect {
		return f.cfg.DirectLatency
	}
	return f.cfg.ConsolidatedLatency
}

func shiftBack(ts, by model.Nanos) model.Nanos {
	if by > ts {
		return 0
	}
	return ts - by
}
