// Package config loads clmm-kit settings from a YAML file and CLMM_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CLMM_ROUTING_BASE_URL.
const EnvPrefix = "CLMM"

// Config holds all configuration for clmm-kit
type Config struct {
	Ethereum      EthereumConfig      `mapstructure:"ethereum"`
	Routing       RoutingConfig       `mapstructure:"routing"`
	Trading       TradingConfig       `mapstructure:"trading"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// EthereumConfig holds chain connection configuration
type EthereumConfig struct {
	ChainID             uint64        `mapstructure:"chain_id"`
	RPCEndpoints        []RPCEndpoint `mapstructure:"rpc_endpoints"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	CallTimeout         time.Duration `mapstructure:"call_timeout"`
}

// RPCEndpoint represents an Ethereum RPC endpoint
type RPCEndpoint struct {
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

// RoutingConfig configures the routing API client
type RoutingConfig struct {
	BaseURL   string          `mapstructure:"base_url"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Debounce  time.Duration   `mapstructure:"debounce"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// RetryConfig holds retry settings for outbound calls
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// TradingConfig holds user-facing defaults for built transactions. The
// transaction deadline window is fixed in code.
type TradingConfig struct {
	SlippagePercent string `mapstructure:"slippage_percent"`
	Recipient       string `mapstructure:"recipient"`

	slippage decimal.Decimal
}

// Slippage returns the parsed default slippage tolerance in percent
func (t TradingConfig) Slippage() decimal.Decimal {
	return t.slippage
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	L1MaxSize int           `mapstructure:"l1_max_size"`
	L1TTL     time.Duration `mapstructure:"l1_ttl"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"` // host:port, empty for pull only
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Sampler     string  `mapstructure:"sampler"` // always, never, ratio
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// HTTPConfig holds the metrics/health listener configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables. An empty
// configPath searches ./config and the working directory for config.yaml;
// a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.rpc_endpoints", []map[string]any{{"url": "https://ethereum-rpc.publicnode.com", "weight": 1}})
	v.SetDefault("ethereum.health_check_interval", "30s")
	v.SetDefault("ethereum.call_timeout", "10s")

	v.SetDefault("routing.base_url", "https://api.uniswap.org/v1")
	v.SetDefault("routing.timeout", "10s")
	v.SetDefault("routing.debounce", "500ms")
	v.SetDefault("routing.rate_limit.requests_per_minute", 120)
	v.SetDefault("routing.rate_limit.burst", 5)
	v.SetDefault("routing.retry.max_attempts", 3)
	v.SetDefault("routing.retry.base_delay", "250ms")
	v.SetDefault("routing.retry.max_delay", "2s")
	v.SetDefault("routing.breaker.failure_threshold", 5)
	v.SetDefault("routing.breaker.timeout", "30s")

	v.SetDefault("trading.slippage_percent", "0.5")
	v.SetDefault("trading.recipient", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "clmm:")

	v.SetDefault("cache.l1_max_size", 1000)
	v.SetDefault("cache.l1_ttl", "1m")
	v.SetDefault("cache.token_ttl", "24h")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("observability.metrics.enabled", false)
	v.SetDefault("observability.metrics.otlp_endpoint", "")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sampler", "always")
	v.SetDefault("observability.tracing.sample_ratio", 0.1)

	v.SetDefault("http.port", 9091)
}

// parse parses string values into their proper types
func (c *Config) parse() error {
	slippage, err := decimal.NewFromString(strings.TrimSpace(c.Trading.SlippagePercent))
	if err != nil {
		return fmt.Errorf("invalid slippage percent %q: %w", c.Trading.SlippagePercent, err)
	}
	c.Trading.slippage = slippage
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Ethereum.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	for _, ep := range c.Ethereum.RPCEndpoints {
		if ep.URL == "" {
			return fmt.Errorf("rpc endpoint url is required")
		}
	}

	if _, err := url.ParseRequestURI(c.Routing.BaseURL); err != nil {
		return fmt.Errorf("invalid routing base url %q: %w", c.Routing.BaseURL, err)
	}
	if c.Routing.Timeout <= 0 {
		return fmt.Errorf("routing timeout must be > 0")
	}
	if c.Routing.Debounce < 0 {
		return fmt.Errorf("routing debounce must be >= 0")
	}

	if c.Trading.slippage.IsNegative() || c.Trading.slippage.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("slippage percent must be within [0, 100], got %s", c.Trading.slippage)
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
