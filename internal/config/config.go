package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server        Server        `mapstructure:"server"`
	Database      Database      `mapstructure:"database"`
	Logger        Logger        `mapstructure:"logger"`
	CoinGecko     CoinGecko     `mapstructure:"coingecko"`
	Market        Market        `mapstructure:"market"`
	Alerts        Alerts        `mapstructure:"alerts"`
	Notifications Notifications `mapstructure:"notifications"`
	Auth          Auth          `mapstructure:"auth"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Service string `mapstructure:"service"` // attached to every entry
	Caller  bool   `mapstructure:"caller"`
}

// CoinGecko holds the configuration for the market data API.
type CoinGecko struct {
	BaseURL        string        `mapstructure:"base_url"`
	ApiKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// Market holds the caching policy for market data.
type Market struct {
	VsCurrency  string        `mapstructure:"vs_currency"`
	PerPage     int           `mapstructure:"per_page"`
	Pages       int           `mapstructure:"pages"`
	CacheExpiry time.Duration `mapstructure:"cache_expiry"`

	// share of the owner's movers flagged as outliers
	OutlierContamination float64 `mapstructure:"outlier_contamination"`
}

// Alerts holds the configuration for the periodic alert check.
type Alerts struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	MaxConcurrent int64         `mapstructure:"max_concurrent"`
}

// Notifications holds the configuration for the notification side channel.
// Redis publishing is disabled when RedisAddr is empty.
type Notifications struct {
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`
}

// Auth holds the configuration for session tokens.
type Auth struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	AdminUsers []string      `mapstructure:"admin_users"` // usernames granted admin on registration
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment apply.
func LoadConfig(path string) (config Config, err error) {
	// Values from a local .env become environment variables before viper reads them.
	if err = godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return
	}
	err = nil

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "crypto_portfolio.db?_busy_timeout=5000")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service", "portfolio-tracker")
	v.SetDefault("logger.caller", true)

	// Keys without a default are invisible to Unmarshal's env lookup, so
	// secrets get empty defaults.
	v.SetDefault("coingecko.api_key", "")
	v.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko.timeout", 10*time.Second)
	v.SetDefault("coingecko.rate_limit", 0.5) // requests per second
	v.SetDefault("coingecko.rate_limit_burst", 5)

	v.SetDefault("market.vs_currency", "usd")
	v.SetDefault("market.per_page", 250)
	v.SetDefault("market.pages", 4)
	v.SetDefault("market.cache_expiry", 120*time.Second)
	v.SetDefault("market.outlier_contamination", 0.1)

	v.SetDefault("alerts.check_interval", time.Minute)
	v.SetDefault("alerts.max_concurrent", 1)

	v.SetDefault("notifications.redis_addr", "")
	v.SetDefault("notifications.redis_channel", "price_alerts")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_users", []string{})
}
