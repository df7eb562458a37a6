package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Backend   Backend   `mapstructure:"backend"`
	Auth      Auth      `mapstructure:"auth"`
	Trading   Trading   `mapstructure:"trading"`
	History   History   `mapstructure:"history"`
	Bot       Bot       `mapstructure:"bot"`
	Logger    Logger    `mapstructure:"logger"`
	Database  Database  `mapstructure:"database"`
	Dashboard Dashboard `mapstructure:"dashboard"`
}

// Backend holds the configuration for the trading-bot backend API.
type Backend struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// Token is a static bearer token used when no session is stored.
	Token string `mapstructure:"token"`
}

// Auth holds the configuration for the identity provider.
type Auth struct {
	APIKey      string `mapstructure:"api_key"`
	IdentityURL string `mapstructure:"identity_url"`
	TokenURL    string `mapstructure:"token_url"`
}

// Trading holds the ambient trading mode.
type Trading struct {
	Mode string `mapstructure:"mode"`
}

// History holds the configuration for the trade history view.
type History struct {
	Limit     int    `mapstructure:"limit"`
	Fallback  bool   `mapstructure:"fallback"`
	Product   string `mapstructure:"product"`
	ExportDir string `mapstructure:"export_dir"`
	Timezone  string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to time.Local.
func (h History) Location() *time.Location {
	if h.Timezone == "" || strings.EqualFold(h.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Bot holds the defaults offered when configuring the remote bot.
type Bot struct {
	Strategy            string  `mapstructure:"strategy"`
	MinConfidence       float64 `mapstructure:"min_confidence"`
	TradeAmount         float64 `mapstructure:"trade_amount"`
	MaxPortfolioPercent float64 `mapstructure:"max_portfolio_percent"`
	MaxDailyRisk        float64 `mapstructure:"max_daily_risk"`
	MaxTradesPerDay     int     `mapstructure:"max_trades_per_day"`
	EnableStopLoss      bool    `mapstructure:"enable_stop_loss"`
	StopLossPercent     float64 `mapstructure:"stop_loss_percent"`
	EnableTakeProfit    bool    `mapstructure:"enable_take_profit"`
	TakeProfitPercent   float64 `mapstructure:"take_profit_percent"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the local database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Dashboard holds the configuration for the local dashboard server.
type Dashboard struct {
	Port                int           `mapstructure:"port"`
	PermissionsInterval time.Duration `mapstructure:"permissions_interval"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and the environment apply.
func LoadConfig(path string) (config Config, err error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
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
	v.SetDefault("backend.base_url", "http://localhost:3001/api")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.max_retries", 3)
	v.SetDefault("backend.rate_limit", 10) // requests per second
	v.SetDefault("backend.rate_limit_burst", 5)
	v.SetDefault("backend.token", "")

	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.identity_url", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("auth.token_url", "https://securetoken.googleapis.com/v1")

	v.SetDefault("trading.mode", "demo")

	v.SetDefault("history.limit", 100)
	v.SetDefault("history.fallback", true)
	v.SetDefault("history.product", "cryptobotx")
	v.SetDefault("history.export_dir", ".")
	v.SetDefault("history.timezone", "Local")

	v.SetDefault("bot.strategy", "Conservative growth focusing on major cryptocurrencies")
	v.SetDefault("bot.min_confidence", 70)
	v.SetDefault("bot.trade_amount", 10)
	v.SetDefault("bot.max_portfolio_percent", 5)
	v.SetDefault("bot.max_daily_risk", 50)
	v.SetDefault("bot.max_trades_per_day", 3)
	v.SetDefault("bot.enable_stop_loss", true)
	v.SetDefault("bot.stop_loss_percent", 5)
	v.SetDefault("bot.enable_take_profit", true)
	v.SetDefault("bot.take_profit_percent", 10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("database.dsn", "cryptobotx.db")

	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.permissions_interval", 30*time.Second)
}
