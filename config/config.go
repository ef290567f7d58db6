package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Nodes      NodesConfig      `mapstructure:"nodes"`
	Price      PriceConfig      `mapstructure:"price"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// NodesConfig configures the ledger node failover client.
type NodesConfig struct {
	Endpoints      []string      `mapstructure:"endpoints"`       // ordered node base URLs
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // per-attempt HTTP timeout
	Cooldown       time.Duration `mapstructure:"cooldown"`        // unhealthy node cool-down window
	RateLimit      float64       `mapstructure:"rate_limit"`      // requests/sec per node
}

// PriceConfig configures the price oracle and its quote source.
type PriceConfig struct {
	QuoteURL        string        `mapstructure:"quote_url"`
	Pair            string        `mapstructure:"pair"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	FreshFor        time.Duration `mapstructure:"fresh_for"`     // serve cached quote without refetch
	StaleCeiling    time.Duration `mapstructure:"stale_ceiling"` // hard ceiling, beyond = PriceUnavailable
}

// WalletConfig holds operator wallet and business guards.
type WalletConfig struct {
	OperatorAddress     string `mapstructure:"operator_address"`    // shared receiving/hot-wallet address
	CashbackPercent     int64  `mapstructure:"cashback_percent"`    // default cashback for new accounts
	MinSwapFiatCents    int64  `mapstructure:"min_swap_fiat_cents"` // minimum fiat->coin swap amount
	MinSwapCoinSubunits int64  `mapstructure:"min_swap_coin_subunits"`
}

// ReconcilerConfig configures the deposit/withdrawal reconciliation loop.
type ReconcilerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"` // submitted withdrawals older than this are failed and refunded
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CWC_ (Coin Wallet Core).
// Nested keys use underscore: CWC_DATABASE_HOST, CWC_NODES_COOLDOWN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "coin_wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("nodes.endpoints", []string{})
	v.SetDefault("nodes.request_timeout", "10s")
	v.SetDefault("nodes.cooldown", "45s")
	v.SetDefault("nodes.rate_limit", 10.0)
	v.SetDefault("price.quote_url", "")
	v.SetDefault("price.pair", "COIN-USD")
	v.SetDefault("price.request_timeout", "5s")
	v.SetDefault("price.refresh_interval", "30s")
	v.SetDefault("price.fresh_for", "60s")
	v.SetDefault("price.stale_ceiling", "10m")
	v.SetDefault("wallet.operator_address", "")
	v.SetDefault("wallet.cashback_percent", 10)
	v.SetDefault("wallet.min_swap_fiat_cents", 100)
	v.SetDefault("wallet.min_swap_coin_subunits", 100)
	v.SetDefault("reconciler.interval", "30s")
	v.SetDefault("reconciler.confirm_timeout", "15m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CWC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CWC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
