package feed

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/solwatch/solwatch/core"
	zerolog "github.com/solwatch/solwatch/logger/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeActivator struct {
	symbols []string
}

func (f *fakeActivator) Activate(symbol string) {
	f.symbols = append(f.symbols, symbol)
}

func testLogger() core.Logger {
	return zerolog.New(core.Disabled)
}

func tick(symbol string, price int64) core.PriceTick {
	return core.PriceTick{Symbol: symbol, Price: decimal.NewFromInt(price), Timestamp: 1}
}

func TestRouter_SubscribeDispatch(t *testing.T) {
	router := NewRouter(nil, testLogger())
	received := make([]core.PriceTick, 0)

	router.Subscribe("SOL", 1, core.KindAlert, func(tk core.PriceTick) {
		received = append(received, tk)
	})

	router.Dispatch(tick("SOL", 100))
	router.Dispatch(tick("BTC", 50000))

	require.Len(t, received, 1)
	require.Equal(t, "SOL", received[0].Symbol)
}

func TestRouter_FirstSubscriberActivates(t *testing.T) {
	activator := &fakeActivator{}
	router := NewRouter(activator, testLogger())

	router.Subscribe("SOL", 1, core.KindAlert, func(core.PriceTick) {})
	router.Subscribe("SOL", 2, core.KindOrder, func(core.PriceTick) {})
	router.Subscribe("BTC", 3, core.KindAlert, func(core.PriceTick) {})

	require.Equal(t, []string{"SOL", "BTC"}, activator.symbols)
	require.Equal(t, []string{"SOL", "BTC"}, router.ActiveSymbols())
}

func TestRouter_ConcurrentSubscribe(t *testing.T) {
	activator := &fakeActivator{}
	router := NewRouter(activator, testLogger())

	// Repeat subscriptions to an already-subscribed symbol from many
	// goroutines. Activate runs under the router lock, so the fake needs
	// no synchronization of its own.
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				router.Subscribe("SOL", int64(g*100+i), core.KindAlert, func(core.PriceTick) {})
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, []string{"SOL"}, activator.symbols)
	require.Equal(t, []string{"SOL"}, router.ActiveSymbols())
}

func TestRouter_UnsubscribeByID(t *testing.T) {
	router := NewRouter(nil, testLogger())
	var alertCalls, orderCalls int

	router.Subscribe("SOL", 7, core.KindAlert, func(core.PriceTick) { alertCalls++ })
	router.Subscribe("SOL", 7, core.KindOrder, func(core.PriceTick) { orderCalls++ })

	// Same id, different kind: only the alert goes away
	router.UnsubscribeByID(7, core.KindAlert)
	router.Dispatch(tick("SOL", 100))

	require.Zero(t, alertCalls)
	require.Equal(t, 1, orderCalls)
	require.True(t, router.Subscribed("SOL"))

	router.UnsubscribeByID(7, core.KindOrder)
	require.False(t, router.Subscribed("SOL"))
}

func TestRouter_UnsubscribeUnknownIsNoop(t *testing.T) {
	router := NewRouter(nil, testLogger())
	router.Subscribe("SOL", 1, core.KindAlert, func(core.PriceTick) {})

	router.UnsubscribeByID(99, core.KindAlert)
	require.True(t, router.Subscribed("SOL"))
}

func TestRouter_PanicContainment(t *testing.T) {
	router := NewRouter(nil, testLogger())
	var delivered int

	router.Subscribe("SOL", 1, core.KindAlert, func(core.PriceTick) {
		panic("boom")
	})
	router.Subscribe("SOL", 2, core.KindAlert, func(core.PriceTick) {
		delivered++
	})

	require.NotPanics(t, func() {
		router.Dispatch(tick("SOL", 100))
	})
	require.Equal(t, 1, delivered)
}

func TestRouter_DispatchSnapshot(t *testing.T) {
	router := NewRouter(nil, testLogger())
	var secondCalled bool

	// The first handler unsubscribes the second mid-dispatch; the second
	// still sees the current tick because the subscriber set was
	// snapshotted.
	router.Subscribe("SOL", 1, core.KindAlert, func(core.PriceTick) {
		router.UnsubscribeByID(2, core.KindAlert)
	})
	router.Subscribe("SOL", 2, core.KindAlert, func(core.PriceTick) {
		secondCalled = true
	})

	router.Dispatch(tick("SOL", 100))
	require.True(t, secondCalled)

	secondCalled = false
	router.Dispatch(tick("SOL", 101))
	require.False(t, secondCalled)
}
