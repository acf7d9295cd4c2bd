// Package config loads simulation run configuration from YAML files and
// environment variables, falling back to built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/exchange"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/latency"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/price"
)

// File is the on-disk shape of a run configuration. Quantities that the
// engine holds as decimals or typed enums are plain numbers and strings
// here and converted in Build.
type File struct {
	Seed           uint64  `mapstructure:"seed"`
	TickIntervalNS int64   `mapstructure:"tick_interval_ns"`
	HorizonTicks   uint64  `mapstructure:"horizon_ticks"`
	LogLevel       string  `mapstructure:"log_level"`
	DepthLevels    int     `mapstructure:"depth_levels"`
	InitialMargin  float64 `mapstructure:"initial_margin_rate"`
	MaintMargin    float64 `mapstructure:"maintenance_margin_rate"`

	Session      SessionFile       `mapstructure:"session"`
	Clearing     ClearingFile      `mapstructure:"clearing"`
	Instruments  []InstrumentFile  `mapstructure:"instruments"`
	Participants []ParticipantFile `mapstructure:"participants"`
}

// SessionFile is the session schedule section.
type SessionFile struct {
	OpenAuctionTicks  uint64 `mapstructure:"open_auction_ticks"`
	CloseAuctionTicks uint64 `mapstructure:"close_auction_ticks"`
	HaltPauseTicks    uint64 `mapstructure:"halt_pause_ticks"`
}

// ClearingFile is the clearing-house section.
type ClearingFile struct {
	SettlementCycleNS int64   `mapstructure:"settlement_cycle_ns"`
	CCPCapital        float64 `mapstructure:"ccp_capital"`
	GuaranteeFundPer  float64 `mapstructure:"guarantee_fund_per_member"`
	MutualizedCapFrac float64 `mapstructure:"mutualized_cap_frac"`
}

// InstrumentFile describes one tradable.
type InstrumentFile struct {
	Symbol         string  `mapstructure:"symbol"`
	ReferencePrice int64   `mapstructure:"reference_price"`
	TickValue      float64 `mapstructure:"tick_value"`
	LotSize        int64   `mapstructure:"lot_size"`
	MinQty         int64   `mapstructure:"min_qty"`
	MaxQty         int64   `mapstructure:"max_qty"`
	PriceBandPct   float64 `mapstructure:"price_band_pct"`
	MakerFeeRate   float64 `mapstructure:"maker_fee_rate"`
	TakerFeeRate   float64 `mapstructure:"taker_fee_rate"`
	ShortSellOK    bool    `mapstructure:"short_sell_ok"`
	Volatility     float64 `mapstructure:"volatility"`
	PriceModel     string  `mapstructure:"price_model"`
}

// ParticipantFile describes one population slice of synthetic participants.
type ParticipantFile struct {
	Count       int        `mapstructure:"count"`
	Tier        string     `mapstructure:"tier"`
	InitialCash float64    `mapstructure:"initial_cash"`
	OrderProb   float64    `mapstructure:"order_prob"`
	Limits      LimitsFile `mapstructure:"limits"`
}

// LimitsFile is the per-participant risk limit section.
type LimitsFile struct {
	MaxOrderQty         int64   `mapstructure:"max_order_qty"`
	MaxOrderNotional    float64 `mapstructure:"max_order_notional"`
	MaxPositionPerInstr int64   `mapstructure:"max_position_per_instr"`
	MaxTotalPosition    int64   `mapstructure:"max_total_position"`
	MaxOrdersPerSecond  int     `mapstructure:"max_orders_per_second"`
	MaxDrawdownPct      float64 `mapstructure:"max_drawdown_pct"`
	MaxDailyLossPct     float64 `mapstructure:"max_daily_loss_pct"`
	MaxOrderTradeRatio  float64 `mapstructure:"max_order_trade_ratio"`
}

// Load reads a run configuration. An explicit path is used as-is; otherwise
// viper searches the usual locations for marketsim.yaml. Environment
// variables with the MARKETSIM_ prefix override file values. A missing file
// is not an error: the built-in defaults run a usable single-instrument
// session.
func Load(path string, logger *zap.Logger) (exchange.Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("marketsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/marketsim")
	}
	v.SetEnvPrefix("MARKETSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && path == "" {
			logger.Warn("configuration file not found, using defaults")
			return exchange.DefaultConfig(), nil
		}
		return exchange.Config{}, fmt.Errorf("read config: %w", err)
	}
	logger.Info("configuration loaded", zap.String("file", v.ConfigFileUsed()))

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return exchange.Config{}, fmt.Errorf("parse config: %w", err)
	}
	return Build(f)
}

// Build converts a parsed File into an engine configuration, applying
// defaults for anything left unset.
func Build(f File) (exchange.Config, error) {
	cfg := exchange.DefaultConfig()

	if f.Seed != 0 {
		cfg.Seed = f.Seed
	}
	if f.TickIntervalNS > 0 {
		cfg.TickInterval = model.Nanos(f.TickIntervalNS)
	}
	if f.HorizonTicks > 0 {
		cfg.HorizonTicks = f.HorizonTicks
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.DepthLevels > 0 {
		cfg.DepthLevels = f.DepthLevels
	}
	if f.InitialMargin > 0 {
		cfg.InitialMarginRate = decimal.NewFromFloat(f.InitialMargin)
	}
	if f.MaintMargin > 0 {
		cfg.MaintenanceMarginRate = decimal.NewFromFloat(f.MaintMargin)
	}
	if f.Session.OpenAuctionTicks > 0 {
		cfg.Session.OpenAuctionTicks = f.Session.OpenAuctionTicks
	}
	if f.Session.CloseAuctionTicks > 0 {
		cfg.Session.CloseAuctionTicks = f.Session.CloseAuctionTicks
	}
	if f.Session.HaltPauseTicks > 0 {
		cfg.Session.HaltPauseTicks = f.Session.HaltPauseTicks
	}
	if f.Clearing.SettlementCycleNS > 0 {
		cfg.Clearing.SettlementCycle = model.Nanos(f.Clearing.SettlementCycleNS)
	}
	if f.Clearing.CCPCapital > 0 {
		cfg.Clearing.CCPCapital = decimal.NewFromFloat(f.Clearing.CCPCapital)
	}
	if f.Clearing.GuaranteeFundPer > 0 {
		cfg.Clearing.GuaranteeFundPer = decimal.NewFromFloat(f.Clearing.GuaranteeFundPer)
	}
	if f.Clearing.MutualizedCapFrac > 0 {
		cfg.Clearing.MutualizedCapFrac = f.Clearing.MutualizedCapFrac
	}

	if len(f.Instruments) > 0 {
		cfg.Instruments = cfg.Instruments[:0]
		for _, ic := range f.Instruments {
			pm, err := parsePriceModel(ic.PriceModel)
			if err != nil {
				return exchange.Config{}, fmt.Errorf("instrument %s: %w", ic.Symbol, err)
			}
			if ic.ReferencePrice <= 0 {
				return exchange.Config{}, fmt.Errorf("instrument %s: reference_price must be positive", ic.Symbol)
			}
			cfg.Instruments = append(cfg.Instruments, exchange.InstrumentConfig{
				Symbol:         ic.Symbol,
				ReferencePrice: model.Price(ic.ReferencePrice),
				TickValue:      decimal.NewFromFloat(ic.TickValue),
				LotSize:        model.Qty(ic.LotSize),
				MinQty:         model.Qty(ic.MinQty),
				MaxQty:         model.Qty(ic.MaxQty),
				PriceBandPct:   ic.PriceBandPct,
				MakerFeeRate:   decimal.NewFromFloat(ic.MakerFeeRate),
				TakerFeeRate:   decimal.NewFromFloat(ic.TakerFeeRate),
				ShortSellOK:    ic.ShortSellOK,
				Volatility:     ic.Volatility,
				PriceModel:     pm,
			})
		}
	}

	if len(f.Participants) > 0 {
		cfg.Participants = cfg.Participants[:0]
		for i, pc := range f.Participants {
			tier, err := parseTier(pc.Tier)
			if err != nil {
				return exchange.Config{}, fmt.Errorf("participants[%d]: %w", i, err)
			}
			if pc.Count <= 0 {
				return exchange.Config{}, fmt.Errorf("participants[%d]: count must be positive", i)
			}
			cfg.Participants = append(cfg.Participants, exchange.ParticipantConfig{
				Count:       pc.Count,
				Tier:        tier,
				InitialCash: decimal.NewFromFloat(pc.InitialCash),
				OrderProb:   pc.OrderProb,
				Limits: model.RiskLimits{
					MaxOrderQty:         model.Qty(pc.Limits.MaxOrderQty),
					MaxOrderNotional:    decimal.NewFromFloat(pc.Limits.MaxOrderNotional),
					MaxPositionPerInstr: model.Qty(pc.Limits.MaxPositionPerInstr),
					MaxTotalPosition:    model.Qty(pc.Limits.MaxTotalPosition),
					MaxOrdersPerSecond:  pc.Limits.MaxOrdersPerSecond,
					MaxDrawdownPct:      pc.Limits.MaxDrawdownPct,
					MaxDailyLossPct:     pc.Limits.MaxDailyLossPct,
					MaxOrderTradeRatio:  pc.Limits.MaxOrderTradeRatio,
				},
			})
		}
	}
	return cfg, nil
}

func parsePriceModel(s string) (price.Model, error) {
	switch strings.ToLower(s) {
	case "", "gbm":
		return price.ModelGBM, nil
	case "jump_diffusion", "jump":
		return price.ModelJumpDiffusion, nil
	case "heston":
		return price.ModelHeston, nil
	}
	return 0, fmt.Errorf("unknown price model %q", s)
}

func parseTier(s string) (latency.Tier, error) {
	switch strings.ToLower(s) {
	case "colocated":
		return latency.TierColocated, nil
	case "proximity":
		return latency.TierProximity, nil
	case "", "direct":
		return latency.TierDirect, nil
	case "retail":
		return latency.TierRetail, nil
	}
	return 0, fmt.Errorf("unknown latency tier %q", s)
}
