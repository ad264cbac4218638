// Package jupiter is a client for the swap aggregator's quote and
// swap-instruction endpoints.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/solwatch/solwatch/core"
)

const (
	// DefaultEndpoint is the aggregator's swap API base URL
	DefaultEndpoint = "https://api.jup.ag/swap/v1"

	// defaultSlippageBps is applied when a quote is requested
	defaultSlippageBps = 50
)

// Client talks to the swap aggregator. Implements core.SwapProvider.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient creates an aggregator client. An empty endpoint selects the
// public API.
func NewClient(settings core.JupiterSettings) *Client {
	endpoint := settings.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   settings.APIKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// wireInstruction is an instruction as the aggregator serializes it
type wireInstruction struct {
	ProgramID string             `json:"programId"`
	Accounts  []core.AccountMeta `json:"accounts"`
	Data      string             `json:"data"`
}

func (w *wireInstruction) toInstruction() (core.Instruction, error) {
	data, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return core.Instruction{}, fmt.Errorf("decode instruction data: %w", err)
	}
	return core.Instruction{
		ProgramID: w.ProgramID,
		Accounts:  w.Accounts,
		Data:      data,
	}, nil
}

// swapInstructionsResponse is the aggregator's swap-instructions answer.
// The quote is passed back verbatim, so it stays a raw message here.
type swapInstructionsResponse struct {
	SetupInstructions           []wireInstruction `json:"setupInstructions"`
	SwapInstruction             *wireInstruction  `json:"swapInstruction"`
	CleanupInstruction          *wireInstruction  `json:"cleanupInstruction"`
	AddressLookupTableAddresses []string          `json:"addressLookupTableAddresses"`
}

// UnsignedSwap fetches a quote for the pair and exchanges it for the
// unsigned instruction list. Implements core.SwapProvider.
func (c *Client) UnsignedSwap(ctx context.Context, req core.SwapRequest) (*core.SwapInstructions, error) {
	quote, err := c.quote(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"quoteResponse":    quote,
		"userPublicKey":    req.Taker,
		"wrapAndUnwrapSol": true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap-instructions request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoint+"/swap-instructions", payload)
	if err != nil {
		return nil, err
	}

	var resp swapInstructionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode swap-instructions response: %w", err)
	}
	if resp.SwapInstruction == nil {
		return nil, fmt.Errorf("swap-instructions response missing swap instruction")
	}

	wires := make([]wireInstruction, 0, len(resp.SetupInstructions)+2)
	wires = append(wires, resp.SetupInstructions...)
	wires = append(wires, *resp.SwapInstruction)
	if resp.CleanupInstruction != nil {
		wires = append(wires, *resp.CleanupInstruction)
	}

	instructions := make([]core.Instruction, 0, len(wires))
	for _, wire := range wires {
		ix, err := wire.toInstruction()
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ix)
	}

	return &core.SwapInstructions{
		Instructions:        instructions,
		LookupTableAccounts: resp.AddressLookupTableAddresses,
	}, nil
}

// quote fetches a swap quote, returned raw for the swap-instructions call
func (c *Client) quote(ctx context.Context, req core.SwapRequest) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", req.Amount.String())
	params.Set("slippageBps", fmt.Sprint(defaultSlippageBps))
	params.Set("onlyDirectRoutes", "false")

	body, err := c.do(ctx, http.MethodGet, c.endpoint+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aggregator request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read aggregator response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
