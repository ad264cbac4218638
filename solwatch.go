package solwatch

import (
	"context"
	"fmt"

	"github.com/solwatch/solwatch/core"
	"github.com/solwatch/solwatch/feed"
	"github.com/solwatch/solwatch/jupiter"
	"github.com/solwatch/solwatch/notification"
	"github.com/solwatch/solwatch/solana"
	"github.com/solwatch/solwatch/storage"
	"github.com/solwatch/solwatch/swap"
	"github.com/solwatch/solwatch/vybe"
	"github.com/solwatch/solwatch/watch"
)

// Engine wires the price feed, the watcher managers and the execution
// pipeline into a running watch service
type Engine struct {
	settings core.Settings
	log      core.Logger

	storage  core.Storage
	catalog  core.CatalogProvider
	resolver core.TokenResolver
	notifier core.Notifier
	executor watch.Executor

	conn     *feed.Conn
	router   *feed.Router
	alerts   *watch.AlertManager
	orders   *watch.OrderManager
	keypairs *solana.KeypairStore
}

// NewEngine creates an engine from settings, filling in the stock
// implementation for every component an option did not replace
func NewEngine(ctx context.Context, settings core.Settings, log core.Logger, options ...Option) (*Engine, error) {
	engine := &Engine{
		settings: settings,
		log:      log,
		keypairs: solana.NewKeypairStore(),
	}

	// Apply custom options
	for _, option := range options {
		option(engine)
	}

	if err := initializeStorage(engine); err != nil {
		return nil, err
	}

	if engine.catalog == nil {
		engine.catalog = vybe.NewClient(vybe.DefaultEndpoint, settings.Feed.APIKey)
	}
	if engine.resolver == nil {
		source, ok := engine.catalog.(vybe.TokenSource)
		if !ok {
			return nil, fmt.Errorf("catalog does not expose a token directory")
		}
		engine.resolver = vybe.NewResolver(source, vybe.DefaultResolverTTL)
	}

	if err := initializeNotifier(engine, settings); err != nil {
		return nil, err
	}

	if engine.executor == nil {
		rpc := solana.NewClient(settings.Solana.RPCEndpoint)
		submitter := solana.NewSubmitter(rpc, settings.Solana.ConfirmTimeout, log)
		engine.executor = swap.NewPipeline(
			settings.Solana,
			engine.keypairs,
			engine.resolver,
			jupiter.NewClient(settings.Jupiter),
			rpc,
			rpc,
			solana.MessageCompiler{},
			submitter,
			log,
		)
	}

	feedSettings := settings.Feed
	if feedSettings.Endpoint == "" {
		feedSettings.Endpoint = vybe.DefaultLiveEndpoint
	}

	engine.conn = feed.NewConn(feedSettings, engine.catalog, log)
	engine.router = feed.NewRouter(engine.conn, log)
	engine.alerts = watch.NewAlertManager(ctx, engine.storage, engine.router, engine.conn, engine.notifier, log)
	engine.orders = watch.NewOrderManager(ctx, engine.storage, engine.router, engine.resolver, engine.executor, engine.notifier, log)

	return engine, nil
}

// initializeStorage sets up the engine's watcher store
func initializeStorage(engine *Engine) error {
	if engine.storage != nil {
		return nil
	}

	var err error
	switch engine.settings.Storage.Driver {
	case "", "buntdb":
		engine.storage, err = storage.NewFromFile(engine.settings.Storage.Path)
	case "sqlite":
		engine.storage, err = storage.NewFromSQLite(engine.settings.Storage.Path, storage.DefaultConfig())
	default:
		err = fmt.Errorf("unknown storage driver: %s", engine.settings.Storage.Driver)
	}
	return err
}

// initializeNotifier sets up the engine's notification channel
func initializeNotifier(engine *Engine, settings core.Settings) error {
	if engine.notifier != nil {
		return nil
	}

	if settings.Telegram.Enabled {
		telegram, err := notification.NewTelegram(settings.Telegram, engine.log)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram: %w", err)
		}
		engine.notifier = telegram
		return nil
	}

	engine.notifier = logNotifier{log: engine.log}
	return nil
}

// Alerts returns the alert manager
func (e *Engine) Alerts() *watch.AlertManager {
	return e.alerts
}

// Orders returns the order manager
func (e *Engine) Orders() *watch.OrderManager {
	return e.orders
}

// Keypairs returns the signing key registry
func (e *Engine) Keypairs() *solana.KeypairStore {
	return e.keypairs
}

// Run connects the feed, restores persisted watchers and blocks until the
// context is cancelled or the feed is permanently lost
func (e *Engine) Run(ctx context.Context) error {
	defer e.storage.Close()
	defer e.conn.Close()

	e.conn.OnTick(e.router.Dispatch)

	if err := e.conn.Start(ctx); err != nil {
		return fmt.Errorf("failed to start price feed: %w", err)
	}

	if err := e.alerts.Initialize(ctx); err != nil {
		return err
	}
	if err := e.orders.Initialize(ctx); err != nil {
		return err
	}

	e.log.Info("engine started")

	select {
	case err := <-e.conn.Err():
		return fmt.Errorf("price feed lost: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logNotifier is the fallback delivery channel when no external notifier
// is configured
type logNotifier struct {
	log core.Logger
}

func (n logNotifier) Send(ownerID int64, text string) error {
	n.log.WithField("owner", ownerID).Info(text)
	return nil
}
