package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/exchange"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/latency"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/price"
)

func TestBuildEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Build(File{})
	require.NoError(t, err)

	def := exchange.DefaultConfig()
	require.Equal(t, def.Seed, cfg.Seed)
	require.Equal(t, def.TickInterval, cfg.TickInterval)
	require.Equal(t, def.HorizonTicks, cfg.HorizonTicks)
	require.Len(t, cfg.Instruments, len(def.Instruments))
	require.Len(t, cfg.Participants, len(def.Participants))
}

func TestBuildOverrides(t *testing.T) {
	var f File
	f.Seed = 99
	f.TickIntervalNS = 2_000_000
	f.HorizonTicks = 500
	f.InitialMargin = 0.2
	f.Session.OpenAuctionTicks = 7

	cfg, err := Build(f)
	require.NoError(t, err)
	require.Equal(t, uint64(99), cfg.Seed)
	require.Equal(t, model.Nanos(2_000_000), cfg.TickInterval)
	require.Equal(t, uint64(500), cfg.HorizonTicks)
	require.Equal(t, uint64(7), cfg.Session.OpenAuctionTicks)
	require.True(t, cfg.InitialMarginRate.Equal(decimal.NewFromFloat(0.2)))
}

func TestBuildInstrumentList(t *testing.T) {
	var f File
	f.Instruments = append(f.Instruments, InstrumentFile{
		Symbol: "ABC", ReferencePrice: 5000, TickValue: 0.01,
		PriceBandPct: 0.2, Volatility: 0.4, PriceModel: "heston",
	})

	cfg, err := Build(f)
	require.NoError(t, err)
	require.Len(t, cfg.Instruments, 1)
	require.Equal(t, "ABC", cfg.Instruments[0].Symbol)
	require.Equal(t, model.Price(5000), cfg.Instruments[0].ReferencePrice)
	require.Equal(t, price.ModelHeston, cfg.Instruments[0].PriceModel)
}

func TestBuildRejectsBadValues(t *testing.T) {
	var f File
	f.Instruments = []InstrumentFile{{Symbol: "BAD", ReferencePrice: 100, PriceModel: "brownian-bridge"}}

	_, err := Build(f)
	require.ErrorContains(t, err, "unknown price model")

	f.Instruments[0].PriceModel = "gbm"
	f.Instruments[0].ReferencePrice = 0
	_, err = Build(f)
	require.ErrorContains(t, err, "reference_price")
}

func TestParseTier(t *testing.T) {
	tier, err := parseTier("colocated")
	require.NoError(t, err)
	require.Equal(t, latency.TierColocated, tier)

	tier, err = parseTier("")
	require.NoError(t, err)
	require.Equal(t, latency.TierDirect, tier)

	_, err = parseTier("carrier-pigeon")
	require.Error(t, err)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "marketsim.yaml"), zap.NewNop())
	require.Error(t, err) // explicit path must exist
	_ = cfg

	// With no explicit path and no file in the search locations the defaults
	// are used. Run from a temp dir so a real config cannot interfere.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	cfg, err = Load("", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, exchange.DefaultConfig().Seed, cfg.Seed)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketsim.yaml")
	yaml := `
seed: 123
horizon_ticks: 50
session:
  open_auction_ticks: 5
instruments:
  - symbol: XYZ
    reference_price: 2000
    tick_value: 0.01
    price_band_pct: 0.1
    volatility: 0.25
    price_model: jump_diffusion
participants:
  - count: 3
    tier: retail
    initial_cash: 50000
    order_prob: 0.1
    limits:
      max_order_qty: 500
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, uint64(123), cfg.Seed)
	require.Equal(t, uint64(50), cfg.HorizonTicks)
	require.Equal(t, uint64(5), cfg.Session.OpenAuctionTicks)

	require.Len(t, cfg.Instruments, 1)
	require.Equal(t, "XYZ", cfg.Instruments[0].Symbol)
	require.Equal(t, price.ModelJumpDiffusion, cfg.Instruments[0].PriceModel)

	require.Len(t, cfg.Participants, 1)
	require.Equal(t, 3, cfg.Participants[0].Count)
	require.Equal(t, latency.TierRetail, cfg.Participants[0].Tier)
	require.Equal(t, model.Qty(500), cfg.Participants[0].Limits.MaxOrderQty)
}
