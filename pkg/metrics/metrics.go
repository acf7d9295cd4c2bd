// Package metrics exposes engine throughput counters. Each simulation run
// owns its own registry so concurrent runs never share collector state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the collector set for one simulation run.
type Metrics struct {
	registry *prometheus.Registry

	OrdersSubmitted *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	TradesExecuted  prometheus.Counter
	TradedVolume    prometheus.Counter
	Settlements     *prometheus.CounterVec
	EventsLogged    prometheus.Counter
	Ticks           prometheus.Counter
}

// New builds and registers the run's collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_orders_submitted_total",
				Help: "Orders submitted for admission, by side",
			},
			[]string{"side"},
		),
		OrdersRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_orders_rejected_total",
				Help: "Orders rejected at admission, by reason",
			},
			[]string{"reason"},
		),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_trades_executed_total",
			Help: "Trades produced by matching and auctions",
		}),
		TradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_traded_volume_total",
			Help: "Total traded quantity",
		}),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketsim_settlements_total",
				Help: "Settlement outcomes, by status",
			},
			[]string{"status"},
		),
		EventsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_events_logged_total",
			Help: "Events appended to the simulation event log",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_ticks_total",
			Help: "Simulated ticks advanced",
		}),
	}
	m.registry.MustRegister(
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.TradesExecuted,
		m.TradedVolume,
		m.Settlements,
		m.EventsLogged,
		m.Ticks,
	)
	return m
}

// Registry returns the run's registry for scraping or test inspection.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
