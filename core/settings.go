package core

import "time"

// Settings holds the engine configuration
type Settings struct {
	Feed     FeedSettings     // Upstream price feed connection settings
	Telegram TelegramSettings // Telegram notification settings
	Jupiter  JupiterSettings  // Swap-quote provider settings
	Solana   SolanaSettings   // RPC endpoint and confirmation settings
	Storage  StorageSettings  // Watcher store settings
}

// FeedSettings holds configuration for the upstream price feed
type FeedSettings struct {
	Endpoint             string        // Websocket endpoint for live prices
	APIKey               string        // Provider API key
	MaxReconnectAttempts int           // Consecutive reconnect attempts before giving up
	ReconnectDelay       time.Duration // Fixed delay between reconnect attempts
}

// TelegramSettings holds configuration for Telegram integration
type TelegramSettings struct {
	Enabled bool   // Whether Telegram notifications are enabled
	Token   string // Telegram bot token
}

// JupiterSettings holds configuration for the swap aggregator
type JupiterSettings struct {
	Endpoint string // REST base URL
	APIKey   string // Aggregator API key
}

// SolanaSettings holds configuration for chain access
type SolanaSettings struct {
	RPCEndpoint    string        // JSON-RPC endpoint
	ConfirmTimeout time.Duration // Max time to wait for a confirmation
	MaxAttempts    int           // Execution pipeline attempts per trigger
	AttemptDelay   time.Duration // Fixed delay between pipeline attempts
}

// StorageSettings selects and configures the persistent store
type StorageSettings struct {
	Driver string // "buntdb" or "sqlite"
	Path   string // Database file path, ":memory:" for ephemeral
}

// Defaults returns settings with the stock retry budgets filled in
func Defaults() Settings {
	return Settings{
		Feed: FeedSettings{
			MaxReconnectAttempts: 5,
			ReconnectDelay:       5 * time.Second,
		},
		Solana: SolanaSettings{
			ConfirmTimeout: 60 * time.Second,
			MaxAttempts:    3,
			AttemptDelay:   2 * time.Second,
		},
		Storage: StorageSettings{
			Driver: "buntdb",
			Path:   "solwatch.db",
		},
	}
}
