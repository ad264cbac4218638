package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/solwatch/solwatch"
	"github.com/solwatch/solwatch/core"
	zerolog "github.com/solwatch/solwatch/logger/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Command line flags
var (
	configFile string
	verbose    bool
)

// fileConfig mirrors core.Settings with string durations so values like
// "5s" and "1m" work in the config file and environment
type fileConfig struct {
	Feed struct {
		Endpoint             string `mapstructure:"endpoint"`
		APIKey               string `mapstructure:"api_key"`
		MaxReconnectAttempts int    `mapstructure:"max_reconnect_attempts"`
		ReconnectDelay       string `mapstructure:"reconnect_delay"`
	} `mapstructure:"feed"`

	Telegram struct {
		Enabled bool   `mapstructure:"enabled"`
		Token   string `mapstructure:"token"`
	} `mapstructure:"telegram"`

	Jupiter struct {
		Endpoint string `mapstructure:"endpoint"`
		APIKey   string `mapstructure:"api_key"`
	} `mapstructure:"jupiter"`

	Solana struct {
		RPCEndpoint    string `mapstructure:"rpc_endpoint"`
		ConfirmTimeout string `mapstructure:"confirm_timeout"`
		MaxAttempts    int    `mapstructure:"max_attempts"`
		AttemptDelay   string `mapstructure:"attempt_delay"`
	} `mapstructure:"solana"`

	Storage struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
	} `mapstructure:"storage"`

	Wallets []struct {
		OwnerID int64  `mapstructure:"owner_id"`
		Secret  string `mapstructure:"secret"`
	} `mapstructure:"wallets"`
}

// configKeys lists every scalar setting so it can be supplied through
// the environment (SOLWATCH_FEED_API_KEY and friends) without a file
var configKeys = []string{
	"feed.endpoint",
	"feed.api_key",
	"feed.max_reconnect_attempts",
	"feed.reconnect_delay",
	"telegram.enabled",
	"telegram.token",
	"jupiter.endpoint",
	"jupiter.api_key",
	"solana.rpc_endpoint",
	"solana.confirm_timeout",
	"solana.max_attempts",
	"solana.attempt_delay",
	"storage.driver",
	"storage.path",
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "solwatch",
		Short:   "Price alert and limit order watcher for Solana tokens",
		Version: "1.0.0",
		RunE:    run,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Config file path (e.g. ./solwatch.yml)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := core.InfoLevel
	if verbose {
		level = core.DebugLevel
	}
	log := zerolog.New(level)

	settings, wallets, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := solwatch.NewEngine(ctx, settings, log)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	for ownerID, secret := range wallets {
		if err := engine.Keypairs().Register(ownerID, secret); err != nil {
			return fmt.Errorf("failed to register wallet for owner %d: %w", ownerID, err)
		}
	}

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadSettings merges the config file, environment variables and defaults
func loadSettings() (core.Settings, map[int64]string, error) {
	settings := core.Defaults()

	v := viper.New()
	v.SetEnvPrefix("SOLWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every scalar key is
	// bound explicitly; AutomaticEnv alone does not surface env-only keys.
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return settings, nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("solwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.solwatch")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return settings, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return settings, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyString(&settings.Feed.Endpoint, cfg.Feed.Endpoint)
	applyString(&settings.Feed.APIKey, cfg.Feed.APIKey)
	applyInt(&settings.Feed.MaxReconnectAttempts, cfg.Feed.MaxReconnectAttempts)
	if err := applyDuration(&settings.Feed.ReconnectDelay, cfg.Feed.ReconnectDelay); err != nil {
		return settings, nil, fmt.Errorf("invalid feed.reconnect_delay: %w", err)
	}

	settings.Telegram.Enabled = cfg.Telegram.Enabled
	applyString(&settings.Telegram.Token, cfg.Telegram.Token)

	applyString(&settings.Jupiter.Endpoint, cfg.Jupiter.Endpoint)
	applyString(&settings.Jupiter.APIKey, cfg.Jupiter.APIKey)

	applyString(&settings.Solana.RPCEndpoint, cfg.Solana.RPCEndpoint)
	applyInt(&settings.Solana.MaxAttempts, cfg.Solana.MaxAttempts)
	if err := applyDuration(&settings.Solana.ConfirmTimeout, cfg.Solana.ConfirmTimeout); err != nil {
		return settings, nil, fmt.Errorf("invalid solana.confirm_timeout: %w", err)
	}
	if err := applyDuration(&settings.Solana.AttemptDelay, cfg.Solana.AttemptDelay); err != nil {
		return settings, nil, fmt.Errorf("invalid solana.attempt_delay: %w", err)
	}

	applyString(&settings.Storage.Driver, cfg.Storage.Driver)
	applyString(&settings.Storage.Path, cfg.Storage.Path)

	wallets := make(map[int64]string, len(cfg.Wallets))
	for _, wallet := range cfg.Wallets {
		wallets[wallet.OwnerID] = wallet.Secret
	}

	return settings, wallets, nil
}

func applyString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func applyInt(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}

func applyDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := str2duration.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
