package watch

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/solwatch/solwatch/core"
	"github.com/solwatch/solwatch/feed"
	zerolog "github.com/solwatch/solwatch/logger/zerolog"
	"github.com/solwatch/solwatch/storage"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Send(_ int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *recordingNotifier) message(i int) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages[i]
}

type allSymbols struct{}

func (allSymbols) HasSymbol(string) bool { return true }

type noSymbols struct{}

func (noSymbols) HasSymbol(string) bool { return false }

func testLogger() core.Logger {
	return zerolog.New(core.Disabled)
}

func memStorage(t *testing.T) core.Storage {
	t.Helper()
	s, err := storage.NewFromMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func tick(symbol string, price string) core.PriceTick {
	return core.PriceTick{Symbol: symbol, Price: decimal.RequireFromString(price), Timestamp: 1}
}

func newAlertFixture(t *testing.T) (*AlertManager, *feed.Router, *recordingNotifier, core.Storage) {
	t.Helper()
	log := testLogger()
	store := memStorage(t)
	router := feed.NewRouter(nil, log)
	notifier := &recordingNotifier{}
	manager := NewAlertManager(context.Background(), store, router, allSymbols{}, notifier, log)
	return manager, router, notifier, store
}

func TestAlertManager_AddValidation(t *testing.T) {
	manager, _, _, _ := newAlertFixture(t)
	ctx := context.Background()
	target := decimal.NewFromInt(100)

	_, err := manager.Add(ctx, 1, "SOL", target, "sideways")
	require.ErrorIs(t, err, core.ErrInvalidCondition)

	_, err = manager.Add(ctx, 1, "SOL", decimal.Zero, core.ConditionAbove)
	require.ErrorIs(t, err, core.ErrInvalidPrice)

	_, err = manager.Add(ctx, 1, "SOL", decimal.NewFromInt(-5), core.ConditionAbove)
	require.ErrorIs(t, err, core.ErrInvalidPrice)

	log := testLogger()
	unknown := NewAlertManager(context.Background(), memStorage(t), feed.NewRouter(nil, log), noSymbols{}, &recordingNotifier{}, log)
	_, err = unknown.Add(ctx, 1, "DOGE", target, core.ConditionAbove)
	require.ErrorIs(t, err, core.ErrInvalidSymbol)
}

func TestAlertManager_TriggerAbove(t *testing.T) {
	manager, router, notifier, store := newAlertFixture(t)
	ctx := context.Background()

	alert, err := manager.Add(ctx, 1, "SOL", decimal.NewFromInt(100), core.ConditionAbove)
	require.NoError(t, err)
	require.NotZero(t, alert.ID)
	require.True(t, router.Subscribed("SOL"))

	// Below the target: nothing happens
	router.Dispatch(tick("SOL", "99.99"))
	require.Zero(t, notifier.count())

	// Boundary is inclusive
	router.Dispatch(tick("SOL", "100"))
	require.Equal(t, 1, notifier.count())
	require.Contains(t, notifier.message(0), "SOL")
	require.False(t, router.Subscribed("SOL"))

	active, err := store.Alerts(ctx, core.WithActiveAlerts())
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestAlertManager_TriggerBelow(t *testing.T) {
	manager, router, notifier, _ := newAlertFixture(t)
	ctx := context.Background()

	_, err := manager.Add(ctx, 1, "SOL", decimal.NewFromInt(90), core.ConditionBelow)
	require.NoError(t, err)

	router.Dispatch(tick("SOL", "90.01"))
	require.Zero(t, notifier.count())

	router.Dispatch(tick("SOL", "90"))
	require.Equal(t, 1, notifier.count())
}

func TestAlertManager_AtMostOnce(t *testing.T) {
	manager, router, notifier, _ := newAlertFixture(t)
	ctx := context.Background()

	_, err := manager.Add(ctx, 1, "SOL", decimal.NewFromInt(100), core.ConditionAbove)
	require.NoError(t, err)

	// Many qualifying ticks, exactly one notification
	for i := 0; i < 10; i++ {
		router.Dispatch(tick("SOL", "105"))
	}
	require.Equal(t, 1, notifier.count())
}

func TestAlertManager_IndependentAlertsOnOneSymbol(t *testing.T) {
	manager, router, notifier, _ := newAlertFixture(t)
	ctx := context.Background()

	a, err := manager.Add(ctx, 1, "SOL", decimal.NewFromInt(100), core.ConditionAbove)
	require.NoError(t, err)
	b, err := manager.Add(ctx, 2, "SOL", decimal.NewFromInt(90), core.ConditionBelow)
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	// 95 satisfies neither; both stay armed
	router.Dispatch(tick("SOL", "95"))
	require.Zero(t, notifier.count())

	// 105 fires only the above-100 alert
	router.Dispatch(tick("SOL", "105"))
	require.Equal(t, 1, notifier.count())
	require.True(t, router.Subscribed("SOL"))

	// 89 fires the remaining below-90 alert
	router.Dispatch(tick("SOL", "89"))
	require.Equal(t, 2, notifier.count())
	require.False(t, router.Subscribed("SOL"))
}

func TestAlertManager_RemoveIsIdempotent(t *testing.T) {
	manager, router, notifier, store := newAlertFixture(t)
	ctx := context.Background()

	alert, err := manager.Add(ctx, 1, "SOL", decimal.NewFromInt(100), core.ConditionAbove)
	require.NoError(t, err)

	require.NoError(t, manager.Remove(ctx, alert.ID))
	require.False(t, router.Subscribed("SOL"))

	// Second removal and unknown ids are no-ops
	require.NoError(t, manager.Remove(ctx, alert.ID))
	require.NoError(t, manager.Remove(ctx, 9999))

	// A removed alert never fires
	router.Dispatch(tick("SOL", "105"))
	require.Zero(t, notifier.count())

	active, err := store.Alerts(ctx, core.WithActiveAlerts())
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestAlertManager_RemoveAll(t *testing.T) {
	manager, router, _, _ := newAlertFixture(t)
	ctx := context.Background()

	_, err := manager.Add(ctx, 1, "SOL", decimal.NewFromInt(100), core.ConditionAbove)
	require.NoError(t, err)
	_, err = manager.Add(ctx, 1, "BTC", decimal.NewFromInt(60000), core.ConditionBelow)
	require.NoError(t, err)
	keep, err := manager.Add(ctx, 2, "SOL", decimal.NewFromInt(80), core.ConditionBelow)
	require.NoError(t, err)

	require.NoError(t, manager.RemoveAll(ctx, 1))

	mine, err := manager.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, mine)

	theirs, err := manager.ListActive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	require.Equal(t, keep.ID, theirs[0].ID)
	require.True(t, router.Subscribed("SOL"))
	require.False(t, router.Subscribed("BTC"))
}

func TestAlertManager_InitializeRestoresActive(t *testing.T) {
	log := testLogger()
	store := memStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAlert(ctx, &core.Alert{
		OwnerID: 1, Symbol: "SOL", TargetPrice: decimal.NewFromInt(100),
		Condition: core.ConditionAbove, Active: true,
	}))
	require.NoError(t, store.CreateAlert(ctx, &core.Alert{
		OwnerID: 1, Symbol: "BTC", TargetPrice: decimal.NewFromInt(50000),
		Condition: core.ConditionBelow, Active: false,
	}))

	router := feed.NewRouter(nil, log)
	notifier := &recordingNotifier{}
	manager := NewAlertManager(ctx, store, router, allSymbols{}, notifier, log)

	require.NoError(t, manager.Initialize(ctx))
	require.True(t, router.Subscribed("SOL"))
	require.False(t, router.Subscribed("BTC"))

	router.Dispatch(tick("SOL", "101"))
	require.Equal(t, 1, notifier.count())
}
