package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/clearing"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/latency"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/marketdata"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/price"
)

// InstrumentConfig defines one tradable at start time.
type InstrumentConfig struct {
	Symbol         string
	ReferencePrice model.Price
	TickValue      decimal.Decimal
	LotSize        model.Qty
	MinQty         model.Qty
	MaxQty         model.Qty
	PriceBandPct   float64
	MakerFeeRate   decimal.Decimal
	TakerFeeRate   decimal.Decimal
	ShortSellOK    bool
	Volatility     float64
	PriceModel     price.Model
}

// ParticipantConfig defines one synthetic participant population slice.
type ParticipantConfig struct {
	Count       int
	Tier        latency.Tier
	InitialCash decimal.Decimal
	Limits      model.RiskLimits
	// OrderProb is the per-tick probability an agent submits an order.
	OrderProb float64
}

// SessionConfig sets the session phase schedule in ticks.
type SessionConfig struct {
	OpenAuctionTicks  uint64 // pre-open collection window
	CloseAuctionTicks uint64 // closing collection window before the horizon
	HaltPauseTicks    uint64 // volatility-halt duration before resumption auction
}

// Config is everything the coordinator needs to build one run.
type Config struct {
	Seed                  uint64
	TickInterval          model.Nanos // simulated nanoseconds per step
	HorizonTicks          uint64      // Run() stops here; 0 means Step-driven only
	Instruments           []InstrumentConfig
	Participants          []ParticipantConfig
	Session               SessionConfig
	Clearing              clearing.Config
	Feed                  marketdata.Config
	InitialMarginRate     decimal.Decimal
	MaintenanceMarginRate decimal.Decimal
	DepthLevels           int
	LogLevel              string
}

// DefaultConfig is a one-instrument, mixed-tier run suitable for smoke tests.
func DefaultConfig() Config {
	return Config{
		Seed:         42,
		TickInterval: 1_000_000, // 1ms
		HorizonTicks: 10_000,
		Instruments: []InstrumentConfig{{
			Symbol:         "SIM1",
			ReferencePrice: 10_000,
			TickValue:      decimal.New(1, -2), // 0.01 per tick
			LotSize:        1,
			MinQty:         1,
			MaxQty:         100_000,
			PriceBandPct:   0.10,
			MakerFeeRate:   decimal.New(2, -4),
			TakerFeeRate:   decimal.New(5, -4),
			ShortSellOK:    true,
			Volatility:     0.3,
			PriceModel:     price.ModelGBM,
		}},
		Participants: []ParticipantConfig{
			{Count: 2, Tier: latency.TierColocated, InitialCash: decimal.NewFromInt(10_000_000), OrderProb: 0.8,
				Limits: model.RiskLimits{MaxOrderQty: 10_000, MaxOrdersPerSecond: 1000, MaxPositionPerInstr: 500_000, MaxDrawdownPct: 0.5}},
			{Count: 3, Tier: latency.TierDirect, InitialCash: decimal.NewFromInt(1_000_000), OrderProb: 0.3,
				Limits: model.RiskLimits{MaxOrderQty: 5_000, MaxOrdersPerSecond: 100, MaxPositionPerInstr: 100_000, MaxDrawdownPct: 0.5}},
			{Count: 5, Tier: latency.TierRetail, InitialCash: decimal.NewFromInt(100_000), OrderProb: 0.05,
				Limits: model.RiskLimits{MaxOrderQty: 1_000, MaxOrdersPerSecond: 10, MaxPositionPerInstr: 10_000, MaxDrawdownPct: 0.5}},
		},
		Session: SessionConfig{
			OpenAuctionTicks:  100,
			CloseAuctionTicks: 100,
			HaltPauseTicks:    50,
		},
		Clearing:              clearing.DefaultConfig(),
		Feed:                  marketdata.DefaultConfig(),
		InitialMarginRate:     decimal.New(1, -1),  // 10%
		MaintenanceMarginRate: decimal.New(75, -3), // 7.5%
		DepthLevels:           10,
		LogLevel:              "info",
	}
}
