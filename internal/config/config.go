package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BotModeWebhook = "webhook"
	BotModePolling = "polling"
)

// Config is the runtime configuration of the server and the admin CLI.
type Config struct {
	Env      string
	HTTPAddr string

	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Retry    RetryConfig

	DefaultLanguage  string
	PolicyCacheTTL   time.Duration
	WebhookRateLimit int
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelegramConfig struct {
	Token         string
	BotUsername   string
	Mode          string
	WebhookPath   string
	WebhookSecret string
}

type RetryConfig struct {
	MaxAttempts uint64
	MaxElapsed  time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:      v.GetString("ENV"),
		HTTPAddr: v.GetString("HTTP_ADDR"),
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Telegram: TelegramConfig{
			Token:         v.GetString("TELEGRAM_BOT_TOKEN"),
			BotUsername:   strings.TrimPrefix(v.GetString("TELEGRAM_BOT_USERNAME"), "@"),
			Mode:          strings.ToLower(v.GetString("BOT_MODE")),
			WebhookPath:   v.GetString("WEBHOOK_PATH"),
			WebhookSecret: v.GetString("WEBHOOK_SECRET"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetUint64("RETRY_MAX_ATTEMPTS"),
			MaxElapsed:  v.GetDuration("RETRY_MAX_ELAPSED"),
		},
		DefaultLanguage:  v.GetString("DEFAULT_LANGUAGE"),
		PolicyCacheTTL:   v.GetDuration("POLICY_CACHE_TTL"),
		WebhookRateLimit: v.GetInt("WEBHOOK_RATE_LIMIT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "modguard")
	v.SetDefault("DB_PASSWORD", "modguard")
	v.SetDefault("DB_NAME", "modguard")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BOT_MODE", BotModeWebhook)
	v.SetDefault("WEBHOOK_PATH", "/webhook")
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_MAX_ELAPSED", "5s")
	v.SetDefault("DEFAULT_LANGUAGE", DefaultLanguage)
	v.SetDefault("POLICY_CACHE_TTL", "5m")
	v.SetDefault("WEBHOOK_RATE_LIMIT", 50)
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	switch c.Telegram.Mode {
	case BotModeWebhook, BotModePolling:
	default:
		return fmt.Errorf("unknown BOT_MODE %q", c.Telegram.Mode)
	}
	if !strings.HasPrefix(c.Telegram.WebhookPath, "/") {
		return fmt.Errorf("WEBHOOK_PATH must start with '/': %q", c.Telegram.WebhookPath)
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the DB_* settings.
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Database.Host,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.Port,
		c.Database.SSLMode,
	)
}

// IsDevelopment reports whether the service runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
