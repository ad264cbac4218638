package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"github.com/solwatch/solwatch/core"
)

// State is the connection lifecycle state
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// configureFrame is the single multiplexed subscription control frame
// understood by the provider
type configureFrame struct {
	Type    string           `json:"type"`
	Filters configureFilters `json:"filters"`
}

type configureFilters struct {
	OraclePrices []oracleFilter `json:"oraclePrices"`
}

type oracleFilter struct {
	PriceFeedAccount string `json:"priceFeedAccount"`
	ProductAccount   string `json:"productAccount"`
}

// wireFrame is one inbound provider frame. Price is a pointer so frames
// without a price field can be told apart and dropped.
type wireFrame struct {
	PriceFeedAccount string           `json:"priceFeedAccount"`
	Price            *decimal.Decimal `json:"price"`
	Timestamp        int64            `json:"timestamp"`
}

// Conn owns the single streaming session to the market-data provider and
// converts raw frames into typed ticks for its one consumer.
type Conn struct {
	settings core.FeedSettings
	catalog  core.CatalogProvider
	log      core.Logger

	mu           sync.Mutex
	ws           *websocket.Conn
	state        State
	symbolByFeed map[string]string
	feedBySymbol map[string]core.PriceFeed
	active       map[string]core.PriceFeed
	handler      TickHandler

	errc chan error
	done chan struct{}
	wg   sync.WaitGroup
}

// NewConn creates a feed connection. Start must be called before any
// ticks are delivered.
func NewConn(settings core.FeedSettings, catalog core.CatalogProvider, log core.Logger) *Conn {
	return &Conn{
		settings:     settings,
		catalog:      catalog,
		log:          log,
		state:        StateDisconnected,
		symbolByFeed: make(map[string]string),
		feedBySymbol: make(map[string]core.PriceFeed),
		active:       make(map[string]core.PriceFeed),
		errc:         make(chan error, 1),
		done:         make(chan struct{}),
	}
}

// OnTick registers the single tick consumer. Must be called before Start.
func (c *Conn) OnTick(handler TickHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// Start fetches the symbol catalog, opens the connection, subscribes to
// the full catalog and begins emitting ticks. A catalog fetch failure is
// fatal to feed startup; a dial failure runs through the same bounded
// reconnect sequence as a dropped session before giving up.
func (c *Conn) Start(ctx context.Context) error {
	feeds, err := c.catalog.SymbolCatalog(ctx)
	if err != nil {
		return fmt.Errorf("fetch symbol catalog: %w", err)
	}

	c.mu.Lock()
	for _, feed := range feeds {
		c.symbolByFeed[feed.FeedAccount] = feed.Symbol
		c.feedBySymbol[feed.Symbol] = feed
		c.active[feed.Symbol] = feed
	}
	c.mu.Unlock()

	c.log.Infof("price feed: %d symbols in catalog", len(feeds))

	if err := c.connect(ctx); err != nil {
		c.log.WithError(err).Warn("initial price feed connect failed")
		if !c.reconnect(ctx) {
			c.setState(StateDisconnected)
			return fmt.Errorf("connect price feed: %w: %d reconnect attempts failed",
				core.ErrFeedUnavailable, c.settings.MaxReconnectAttempts)
		}
	}

	c.wg.Add(1)
	go c.readLoop(ctx)
	return nil
}

// Err delivers the terminal feed error once reconnect attempts are
// exhausted. No further ticks will ever arrive after a receive here.
func (c *Conn) Err() <-chan error {
	return c.errc
}

// State returns the current connection state
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasSymbol reports whether the provider catalog carries the symbol
func (c *Conn) HasSymbol(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.feedBySymbol[symbol]
	return ok
}

// Activate adds a catalog symbol to the active set and re-sends the
// subscription frame. Unknown or already-active symbols are a no-op.
func (c *Conn) Activate(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	feed, ok := c.feedBySymbol[symbol]
	if !ok {
		return
	}
	if _, ok := c.active[symbol]; ok {
		return
	}
	c.active[symbol] = feed

	if c.state == StateConnected && c.ws != nil {
		if err := c.writeConfigureLocked(); err != nil {
			c.log.WithError(err).Warn("could not update feed subscription")
		}
	}
}

// Close tears the connection down. The read loop exits without
// reconnecting.
func (c *Conn) Close() error {
	close(c.done)
	c.mu.Lock()
	ws := c.ws
	c.state = StateDisconnected
	c.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
	c.wg.Wait()
	return nil
}

// connect dials the provider and sends the subscription frame
func (c *Conn) connect(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	if c.settings.APIKey != "" {
		header.Set("X-API-Key", c.settings.APIKey)
	}

	ws, resp, err := dialer.DialContext(ctx, c.settings.Endpoint, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.state = StateConnected
	err = c.writeConfigureLocked()
	c.mu.Unlock()

	if err != nil {
		_ = ws.Close()
		return fmt.Errorf("send subscription frame: %w", err)
	}
	return nil
}

// writeConfigureLocked sends the multiplexed subscription frame for the
// current active set. Caller holds c.mu.
func (c *Conn) writeConfigureLocked() error {
	frame := configureFrame{Type: "configure"}
	for _, feed := range c.active {
		frame.Filters.OraclePrices = append(frame.Filters.OraclePrices, oracleFilter{
			PriceFeedAccount: feed.FeedAccount,
			ProductAccount:   feed.ProductAccount,
		})
	}
	return c.ws.WriteJSON(frame)
}

// readLoop decodes frames until the transport fails, then runs the
// bounded reconnect sequence. Exhausting it is a hard failure.
func (c *Conn) readLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		ws := c.ws
		c.mu.Unlock()

		_, payload, err := ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case <-ctx.Done():
				return
			default:
			}

			c.log.WithError(err).Warn("price feed connection lost")
			if !c.reconnect(ctx) {
				c.setState(StateDisconnected)
				c.errc <- fmt.Errorf("%w: %d reconnect attempts failed",
					core.ErrFeedUnavailable, c.settings.MaxReconnectAttempts)
				return
			}
			continue
		}

		c.handleFrame(payload)
	}
}

// handleFrame converts one provider frame into a tick. Frames with an
// unknown feed account or a missing price are dropped silently.
func (c *Conn) handleFrame(payload []byte) {
	var frame wireFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.WithError(err).Debug("undecodable feed frame")
		return
	}
	if frame.Price == nil || frame.PriceFeedAccount == "" {
		return
	}

	c.mu.Lock()
	symbol, ok := c.symbolByFeed[frame.PriceFeedAccount]
	handler := c.handler
	c.mu.Unlock()

	if !ok || handler == nil {
		return
	}

	timestamp := frame.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	handler(core.PriceTick{
		Symbol:    symbol,
		Price:     *frame.Price,
		Timestamp: timestamp,
	})
}

// reconnect retries the connection up to the configured attempt budget
// with a fixed inter-attempt delay
func (c *Conn) reconnect(ctx context.Context) bool {
	c.setState(StateReconnecting)

	wait := &backoff.Backoff{
		Min:    c.settings.ReconnectDelay,
		Max:    c.settings.ReconnectDelay,
		Factor: 1,
	}

	for attempt := 1; attempt <= c.settings.MaxReconnectAttempts; attempt++ {
		select {
		case <-time.After(wait.Duration()):
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		}

		c.log.Infof("reconnecting price feed (%d/%d)", attempt, c.settings.MaxReconnectAttempts)
		if err := c.connect(ctx); err != nil {
			c.log.WithError(err).Warn("reconnect attempt failed")
			c.setState(StateReconnecting)
			continue
		}
		return true
	}
	return false
}

func (c *Conn) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
