// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	WhatsApp   WhatsAppConfig   `mapstructure:"whatsapp"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Media      MediaConfig      `mapstructure:"media"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Reclaimer  ReclaimerConfig  `mapstructure:"reclaimer"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WhatsAppConfig holds provider credentials. VerifyToken answers the
// webhook handshake, AppSecret signs inbound payloads, Token authorizes
// Graph API calls (media download, message send).
type WhatsAppConfig struct {
	VerifyToken   string `mapstructure:"verify_token"`
	Token         string `mapstructure:"token"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AppSecret     string `mapstructure:"app_secret"`
	GraphBaseURL  string `mapstructure:"graph_base_url"`
}

// BrokerConfig holds queue broker credentials. CurrentSigningKey and
// NextSigningKey are both accepted on delivery so a broker-side key
// rotation does not reject in-flight messages.
type BrokerConfig struct {
	URL               string `mapstructure:"url"`
	Token             string `mapstructure:"token"`
	CurrentSigningKey string `mapstructure:"current_signing_key"`
	NextSigningKey    string `mapstructure:"next_signing_key"`
	WorkerURL         string `mapstructure:"worker_url"`
}

type MediaConfig struct {
	MaxAttempts   int `mapstructure:"max_attempts"`
	BaseBackoffMs int `mapstructure:"base_backoff_ms"`
	TimeoutSec    int `mapstructure:"timeout_sec"`
}

// ExtractorConfig controls the language-model fallback. An empty APIKey
// disables the fallback; the regex grammar still runs.
type ExtractorConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type NotifierConfig struct {
	TimeoutSec     int                  `mapstructure:"timeout_sec"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

// ReclaimerConfig controls the stale-claim sweep: ledger records claimed
// but not completed within StaleAfterMinutes are re-published.
type ReclaimerConfig struct {
	IntervalMinutes   int `mapstructure:"interval_minutes"`
	StaleAfterMinutes int `mapstructure:"stale_after_minutes"`
	BatchSize         int `mapstructure:"batch_size"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("whatsapp.graph_base_url", "https://graph.facebook.com/v19.0")
	viper.SetDefault("media.max_attempts", 4)
	viper.SetDefault("media.base_backoff_ms", 800)
	viper.SetDefault("media.timeout_sec", 30)
	viper.SetDefault("extractor.model", "gpt-4o-mini")
	viper.SetDefault("extractor.base_url", "https://api.openai.com/v1")
	viper.SetDefault("notifier.timeout_sec", 30)
	viper.SetDefault("notifier.circuit_breaker.max_requests", 3)
	viper.SetDefault("notifier.circuit_breaker.interval", 60)
	viper.SetDefault("notifier.circuit_breaker.timeout", 60)
	viper.SetDefault("notifier.circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("notifier.circuit_breaker.consecutive_fails", 5)
	viper.SetDefault("reclaimer.interval_minutes", 5)
	viper.SetDefault("reclaimer.stale_after_minutes", 15)
	viper.SetDefault("reclaimer.batch_size", 20)
	viper.SetDefault("middleware.rate_limit", 100)
	viper.SetDefault("middleware.rate_limit_burst", 1000)
	viper.SetDefault("middleware.enable_cors", false)
	viper.SetDefault("middleware.allowed_origins", []string{"*"})

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports the first missing required setting. The process must
// not serve requests with an incomplete configuration.
func (c *Config) Validate() error {
	required := []struct {
		value string
		name  string
	}{
		{c.Database.Host, "database.host"},
		{c.Database.User, "database.user"},
		{c.Database.DBName, "database.dbname"},
		{c.WhatsApp.VerifyToken, "whatsapp.verify_token"},
		{c.WhatsApp.Token, "whatsapp.token"},
		{c.WhatsApp.PhoneNumberID, "whatsapp.phone_number_id"},
		{c.WhatsApp.AppSecret, "whatsapp.app_secret"},
		{c.Broker.URL, "broker.url"},
		{c.Broker.Token, "broker.token"},
		{c.Broker.CurrentSigningKey, "broker.current_signing_key"},
		{c.Broker.NextSigningKey, "broker.next_signing_key"},
		{c.Broker.WorkerURL, "broker.worker_url"},
	}

	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("missing required configuration: %s", r.name)
		}
	}

	return nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}
