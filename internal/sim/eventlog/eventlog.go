// Package eventlog is the append-only, time-ordered record of every state
// transition in a run. Two runs with the same seed and inputs produce
// identical logs; replay-based testing depends on it.
package eventlog

import (
	"fmt"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

// Log holds events ordered by timestamp. Append enforces monotonicity: an
// event timestamped before the log head is clamped forward and counted, so
// latency-shuffled deliveries cannot reorder the canonical record.
type Log struct {
	events  []model.Event
	last    model.Nanos
	clamped int64
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append records one event.
func (l *Log) Append(e model.Event) {
	ts := e.Time()
	if ts < l.last {
		l.clamped++
		ts = l.last
		e = clampedEvent{Event: e, ts: ts}
	}
	l.last = ts
	l.events = append(l.events, e)
}

// clampedEvent wraps a late event with its adjusted timestamp.
type clampedEvent struct {
	model.Event
	ts model.Nanos
}

func (c clampedEvent) Time() model.Nanos { return c.ts }

// Len returns the number of recorded events.
func (l *Log) Len() int { return len(l.events) }

// Clamped returns how many events arrived out of order.
func (l *Log) Clamped() int64 { return l.clamped }

// Range returns events with from <= Time < to, in log order.
func (l *Log) Range(from, to model.Nanos) []model.Event {
	var out []model.Event
	for _, e := range l.events {
		ts := e.Time()
		if ts >= from && ts < to {
			out = append(out, e)
		}
	}
	return out
}

// Trades extracts every executed trade from the log.
func (l *Log) Trades() []model.Trade {
	var out []model.Trade
	for _, e := range l.events {
		if ce, ok := e.(clampedEvent); ok {
			e = ce.Event
		}
		if te, ok := e.(model.TradeEvent); ok {
			out = append(out, te.Trade)
		}
	}
	return out
}

// Tail returns the most recent n events. Non-positive n yields an empty
// slice.
func (l *Log) Tail(n int) []model.Event {
	if n < 0 {
		n = 0
	}
	if n >= len(l.events) {
		n = len(l.events)
	}
	out := make([]model.Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}

// Describe renders one event as a human-readable record line.
func Describe(e model.Event) string {
	return fmt.Sprintf("[%d] %s %+v", e.Time(), e.Kind(), e)
}
