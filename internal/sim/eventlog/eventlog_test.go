package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fincept-Corporation/FinceptTerminal-sub002/internal/sim/model"
)

func orderEvent(ts model.Nanos, id model.OrderID) model.OrderEvent {
	return model.OrderEvent{EventKind: model.EventOrderAccepted, Timestamp: ts, OrderID: id}
}

func TestAppendKeepsMonotonicTime(t *testing.T) {
	l := New()
	l.Append(orderEvent(100, 1))
	l.Append(orderEvent(50, 2)) // late delivery, clamped forward
	l.Append(orderEvent(200, 3))

	require.Equal(t, 3, l.Len())
	require.Equal(t, int64(1), l.Clamped())

	var last model.Nanos
	for _, e := range l.Range(0, 1<<62) {
		require.GreaterOrEqual(t, e.Time(), last)
		last = e.Time()
	}
}

func TestClampPreservesPayload(t *testing.T) {
	l := New()
	l.Append(orderEvent(100, 1))
	l.Append(model.TradeEvent{Timestamp: 50, Trade: model.Trade{ID: 9, Price: 123, Quantity: 7}})

	trades := l.Trades()
	require.Len(t, trades, 1)
	require.Equal(t, model.TradeID(9), trades[0].ID)
	require.Equal(t, model.Price(123), trades[0].Price)

	// The clamped event reports the adjusted time.
	tail := l.Tail(1)
	require.Equal(t, model.Nanos(100), tail[0].Time())
	require.Equal(t, model.EventTradeExecuted, tail[0].Kind())
}

func TestRangeBounds(t *testing.T) {
	l := New()
	for i := model.Nanos(10); i <= 50; i += 10 {
		l.Append(orderEvent(i, model.OrderID(i)))
	}
	got := l.Range(20, 40) // [20, 40)
	require.Len(t, got, 2)
	require.Equal(t, model.Nanos(20), got[0].Time())
	require.Equal(t, model.Nanos(30), got[1].Time())
}

func TestTail(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		l.Append(orderEvent(model.Nanos(i), model.OrderID(i)))
	}
	require.Len(t, l.Tail(3), 3)
	require.Equal(t, model.Nanos(4), l.Tail(3)[2].Time())
	require.Len(t, l.Tail(100), 5)
	require.Empty(t, l.Tail(0))
	require.Empty(t, l.Tail(-1))
}

func TestDescribe(t *testing.T) {
	s := Describe(orderEvent(42, 7))
	require.Contains(t, s, "[42]")
	require.Contains(t, s, "order_accepted")
}
