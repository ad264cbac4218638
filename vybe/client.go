// Package vybe is a client for the market-data provider: the symbol
// catalog behind the live price feed and the token directory used for
// metadata resolution.
package vybe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solwatch/solwatch/core"
)

const (
	// DefaultEndpoint is the provider's REST base URL
	DefaultEndpoint = "https://api.vybenetwork.xyz"

	// DefaultLiveEndpoint is the provider's streaming price endpoint
	DefaultLiveEndpoint = "wss://api.vybenetwork.xyz/live"
)

// Client talks to the provider's REST API. Implements
// core.CatalogProvider.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates a provider client. An empty endpoint selects the
// public API.
func NewClient(endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// pythAccount is one catalog row as the provider serializes it. The raw
// symbol looks like "Crypto.SOL/USD".
type pythAccount struct {
	Symbol      string `json:"symbol"`
	PriceFeedID string `json:"priceFeedId"`
	ProductID   string `json:"productId"`
}

// SymbolCatalog fetches the oracle price-feed catalog, keeping only
// crypto feeds with complete account references. Implements
// core.CatalogProvider.
func (c *Client) SymbolCatalog(ctx context.Context) ([]core.PriceFeed, error) {
	var resp struct {
		Data []pythAccount `json:"data"`
	}
	if err := c.get(ctx, "/price/pyth-accounts", &resp); err != nil {
		return nil, err
	}

	feeds := make([]core.PriceFeed, 0, len(resp.Data))
	for _, account := range resp.Data {
		if account.PriceFeedID == "" || account.ProductID == "" {
			continue
		}
		symbol, ok := parseFeedSymbol(account.Symbol)
		if !ok {
			continue
		}
		feeds = append(feeds, core.PriceFeed{
			Symbol:         symbol,
			FeedAccount:    account.PriceFeedID,
			ProductAccount: account.ProductID,
		})
	}
	return feeds, nil
}

// Tokens fetches the provider's token directory
func (c *Client) Tokens(ctx context.Context) ([]core.TokenMetadata, error) {
	var resp struct {
		Data []core.TokenMetadata `json:"data"`
	}
	if err := c.get(ctx, "/tokens", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// parseFeedSymbol extracts the base symbol from a raw oracle symbol such
// as "Crypto.SOL/USD"
func parseFeedSymbol(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "Crypto.") {
		return "", false
	}
	base, _, ok := strings.Cut(strings.TrimPrefix(raw, "Crypto."), "/")
	if !ok || base == "" {
		return "", false
	}
	return base, true
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider error %d %s", resp.StatusCode, resp.Status)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
