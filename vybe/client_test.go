package vybe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFeedSymbol(t *testing.T) {
	cases := []struct {
		raw    string
		symbol string
		ok     bool
	}{
		{"Crypto.SOL/USD", "SOL", true},
		{"Crypto.BTC/USD", "BTC", true},
		{"FX.EUR/USD", "", false},
		{"Crypto.SOL", "", false},
		{"Crypto./USD", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		symbol, ok := parseFeedSymbol(tc.raw)
		require.Equal(t, tc.ok, ok, "raw=%q", tc.raw)
		require.Equal(t, tc.symbol, symbol, "raw=%q", tc.raw)
	}
}

func TestClient_SymbolCatalog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/price/pyth-accounts", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		fmt.Fprint(w, `{"data":[
			{"symbol":"Crypto.SOL/USD","priceFeedId":"feed-sol","productId":"product-sol"},
			{"symbol":"Crypto.BTC/USD","priceFeedId":"","productId":"product-btc"},
			{"symbol":"FX.EUR/USD","priceFeedId":"feed-eur","productId":"product-eur"},
			{"symbol":"Crypto.ETH/USD","priceFeedId":"feed-eth","productId":"product-eth"}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	feeds, err := client.SymbolCatalog(context.Background())
	require.NoError(t, err)

	// Rows with missing accounts or non-crypto symbols are dropped
	require.Len(t, feeds, 2)
	require.Equal(t, "SOL", feeds[0].Symbol)
	require.Equal(t, "feed-sol", feeds[0].FeedAccount)
	require.Equal(t, "product-sol", feeds[0].ProductAccount)
	require.Equal(t, "ETH", feeds[1].Symbol)
}

func TestClient_SymbolCatalogError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").SymbolCatalog(context.Background())
	require.Error(t, err)
}

func TestClient_Tokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tokens", r.URL.Path)
		fmt.Fprint(w, `{"data":[
			{"mintAddress":"mint-sol","symbol":"SOL","name":"Wrapped SOL","decimals":9}
		]}`)
	}))
	defer server.Close()

	tokens, err := NewClient(server.URL, "").Tokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "mint-sol", tokens[0].MintAddress)
	require.Equal(t, int32(9), tokens[0].Decimals)
}
