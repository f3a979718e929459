package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Regime   RegimeConfig   `mapstructure:"regime"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the rankings cache
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ExchangeConfig contains settings for the public exchange client
type ExchangeConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
	MaxConcurrency int    `mapstructure:"max_concurrency"` // in-flight request cap
	SpacingMS      int    `mapstructure:"spacing_ms"`      // minimum inter-request spacing
	MaxRetries     int    `mapstructure:"max_retries"`
}

// PipelineConfig contains pipeline runner settings
type PipelineConfig struct {
	MinQuoteVolume float64        `mapstructure:"min_quote_volume"` // USDT floor for the symbol universe
	CandleLimit    int            `mapstructure:"candle_limit"`     // candles fetched per symbol
	MinCandles     int            `mapstructure:"min_candles"`      // symbols below this are dropped
	TopRankings    int            `mapstructure:"top_rankings"`     // rankings exposed to agents
	Cadences       map[string]int `mapstructure:"cadences"`         // timeframe -> minutes between runs
}

// TradingConfig contains paper-trading settings
type TradingConfig struct {
	FeeRate         float64        `mapstructure:"fee_rate"`          // per leg, 0.001 = 0.1%
	MaxPositionSize float64        `mapstructure:"max_position_size"` // fraction of equity, 0.25
	MaxPositions    int            `mapstructure:"max_positions"`     // default concurrent cap
	ArchetypeCaps   map[string]int `mapstructure:"archetype_caps"`    // archetype -> lower cap
}

// RegimeConfig contains regime classification thresholds
type RegimeConfig struct {
	BandwidthThreshold float64 `mapstructure:"bandwidth_threshold"` // volatile above this
	ADXThreshold       float64 `mapstructure:"adx_threshold"`       // trending above this
	BullScore          float64 `mapstructure:"bull_score"`
	BearScore          float64 `mapstructure:"bear_score"`
	TopSnapshots       int     `mapstructure:"top_snapshots"` // snapshots aggregated per run
}

// TelegramConfig contains notification settings
type TelegramConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	BotToken string  `mapstructure:"bot_token"`
	ChatIDs  []int64 `mapstructure:"chat_ids"`
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("ALPHABOARD")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "AlphaBoard")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "alphaboard")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Exchange defaults
	v.SetDefault("exchange.base_url", "https://api.binance.com")
	v.SetDefault("exchange.request_timeout", 30)
	v.SetDefault("exchange.max_concurrency", 10)
	v.SetDefault("exchange.spacing_ms", 50)
	v.SetDefault("exchange.max_retries", 3)

	// Pipeline defaults
	v.SetDefault("pipeline.min_quote_volume", 1_000_000.0)
	v.SetDefault("pipeline.candle_limit", 250)
	v.SetDefault("pipeline.min_candles", 50)
	v.SetDefault("pipeline.top_rankings", 50)
	v.SetDefault("pipeline.cadences", map[string]int{
		"15m": 5, "30m": 10, "1h": 15, "4h": 60, "1d": 240, "1w": 1440,
	})

	// Trading defaults
	v.SetDefault("trading.fee_rate", 0.001)
	v.SetDefault("trading.max_position_size", 0.25)
	v.SetDefault("trading.max_positions", 5)
	v.SetDefault("trading.archetype_caps", map[string]int{
		"swing": 3, "breakout": 2, "cross_confluence": 3, "cross_divergence": 5,
		"cross_cascade": 3, "cross_regime": 3,
	})

	// Regime defaults
	v.SetDefault("regime.bandwidth_threshold", 10.0)
	v.SetDefault("regime.adx_threshold", 25.0)
	v.SetDefault("regime.bull_score", 0.60)
	v.SetDefault("regime.bear_score", 0.40)
	v.SetDefault("regime.top_snapshots", 20)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9100)
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.Trading.FeeRate < 0 || c.Trading.FeeRate >= 1 {
		return fmt.Errorf("trading.fee_rate must be in [0, 1): %f", c.Trading.FeeRate)
	}
	if c.Trading.MaxPositionSize <= 0 || c.Trading.MaxPositionSize > 1 {
		return fmt.Errorf("trading.max_position_size must be in (0, 1]: %f", c.Trading.MaxPositionSize)
	}
	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("trading.max_positions must be >= 1: %d", c.Trading.MaxPositions)
	}
	if c.Pipeline.MinCandles < 1 {
		return fmt.Errorf("pipeline.min_candles must be >= 1: %d", c.Pipeline.MinCandles)
	}
	if c.Pipeline.CandleLimit < c.Pipeline.MinCandles {
		return fmt.Errorf("pipeline.candle_limit (%d) must be >= pipeline.min_candles (%d)",
			c.Pipeline.CandleLimit, c.Pipeline.MinCandles)
	}
	if c.Exchange.MaxConcurrency < 1 {
		return fmt.Errorf("exchange.max_concurrency must be >= 1: %d", c.Exchange.MaxConcurrency)
	}
	for tf, minutes := range c.Pipeline.Cadences {
		if minutes < 1 {
			return fmt.Errorf("pipeline.cadences[%s] must be >= 1 minute: %d", tf, minutes)
		}
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetRequestTimeout returns the exchange request timeout as a Duration
func (c *ExchangeConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetSpacing returns the minimum inter-request spacing as a Duration
func (c *ExchangeConfig) GetSpacing() time.Duration {
	return time.Duration(c.SpacingMS) * time.Millisecond
}

// MaxPositionsFor returns the concurrent position cap for an archetype,
// falling back to the global default.
func (c *TradingConfig) MaxPositionsFor(archetype string) int {
	if cap, ok := c.ArchetypeCaps[archetype]; ok {
		return cap
	}
	return c.MaxPositions
}
