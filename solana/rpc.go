package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
)

// Default RPC client configuration
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// Client is a Solana JSON-RPC 2.0 client with bounded retry for
// transient transport failures
type Client struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	requestID  atomic.Uint64
}

// ClientOption configures Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom http.Client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithMaxRetries sets the maximum retry attempts per call
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a JSON-RPC client for the endpoint
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC call, retrying transport-level failures with
// exponential backoff. RPC-level errors are returned immediately.
func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	wait := &backoff.Backoff{Min: c.retryDelay, Max: c.maxDelay}
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait.Duration()):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			// RPC errors are not transient, do not retry
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// LatestBlockhash returns a recent blockhash to bind a transaction to
func (c *Client) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]any{"commitment": "confirmed"}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", fmt.Errorf("getLatestBlockhash: %w", err)
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("getLatestBlockhash: empty blockhash")
	}
	return result.Value.Blockhash, nil
}

// LookupTables resolves address lookup tables, keyed by table account.
// Implements core.LookupResolver.
func (c *Client) LookupTables(ctx context.Context, accounts []string) (map[string][]string, error) {
	tables := make(map[string][]string)
	if len(accounts) == 0 {
		return tables, nil
	}

	var result struct {
		Value []*struct {
			Data struct {
				Parsed struct {
					Info struct {
						Addresses []string `json:"addresses"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}
	params := []any{accounts, map[string]any{"encoding": "jsonParsed"}}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, fmt.Errorf("getMultipleAccounts: %w", err)
	}
	if len(result.Value) != len(accounts) {
		return nil, fmt.Errorf("getMultipleAccounts: got %d accounts, want %d", len(result.Value), len(accounts))
	}

	for i, value := range result.Value {
		if value == nil {
			return nil, fmt.Errorf("lookup table %s not found", accounts[i])
		}
		tables[accounts[i]] = value.Data.Parsed.Info.Addresses
	}
	return tables, nil
}

// SendTransaction submits a base64-encoded signed transaction, skipping
// preflight simulation, and returns its signature
func (c *Client) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	var signature string
	params := []any{txBase64, map[string]any{"encoding": "base64", "skipPreflight": true}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}
	return signature, nil
}

// SignatureStatus is the confirmation state of a submitted transaction
type SignatureStatus struct {
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

// GetSignatureStatus returns the status of one signature, or nil when the
// cluster has not seen it yet
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []any{[]string{signature}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}
